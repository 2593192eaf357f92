// Package monitor samples process heap usage and logs threshold breaches.
// It observes only; it never takes corrective action.
package monitor

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Config holds the sampling interval and thresholds in mebibytes. A zero
// threshold disables that level.
type Config struct {
	SampleInterval time.Duration
	WarnMB         uint64
	CriticalMB     uint64
}

// Memory periodically samples runtime heap statistics.
type Memory struct {
	cfg    Config
	logger *slog.Logger
}

// NewMemory creates a memory monitor.
func NewMemory(cfg Config, logger *slog.Logger) *Memory {
	return &Memory{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "memory_monitor")),
	}
}

// Run samples on a ticker until ctx is cancelled.
func (m *Memory) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

// sample reads heap stats and logs at the level the usage warrants.
func (m *Memory) sample(ctx context.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	heapMB := ms.HeapAlloc / (1 << 20)
	attrs := []any{
		slog.Uint64("heap_alloc_mb", heapMB),
		slog.Uint64("heap_sys_mb", ms.HeapSys/(1<<20)),
		slog.Uint64("num_gc", uint64(ms.NumGC)),
		slog.Int("goroutines", runtime.NumGoroutine()),
	}

	switch {
	case m.cfg.CriticalMB > 0 && heapMB >= m.cfg.CriticalMB:
		m.logger.ErrorContext(ctx, "heap usage critical", attrs...)
	case m.cfg.WarnMB > 0 && heapMB >= m.cfg.WarnMB:
		m.logger.WarnContext(ctx, "heap usage high", attrs...)
	default:
		m.logger.DebugContext(ctx, "heap sample", attrs...)
	}
}
