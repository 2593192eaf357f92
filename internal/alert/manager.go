package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polytrack/internal/domain"
	"github.com/alanyoungcy/polytrack/internal/notify"
	"github.com/alanyoungcy/polytrack/internal/store"
)

// ManagerConfig tunes deduplication and history retention.
type ManagerConfig struct {
	DedupWindow time.Duration
	HistoryCap  int
}

// Manager deduplicates alert events by fingerprint, records the survivors as
// immutable history, persists them, and hands them to the dispatcher.
type Manager struct {
	cfg        ManagerConfig
	store      *store.AlertStore
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
	history  []domain.AlertRecord
}

// NewManager creates a Manager seeded with previously persisted history.
// dispatcher may be nil when no webhooks are configured.
func NewManager(cfg ManagerConfig, st *store.AlertStore, dispatcher *notify.Dispatcher, history []domain.AlertRecord, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      st,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "alert_manager")),
		now:        time.Now,
		lastSent:   make(map[string]time.Time),
		history:    history,
	}
}

// Raise runs the event through deduplication and, when it survives, appends
// an AlertRecord, persists the history, and dispatches the event to the
// configured webhooks. Dispatch is fire-and-forget; persistence failures are
// logged and the in-memory history stays authoritative.
func (m *Manager) Raise(ctx context.Context, pos domain.Position, event domain.AlertEvent) {
	record, ok := m.admit(pos, event)
	if !ok {
		return
	}

	m.logger.InfoContext(ctx, "alert raised",
		slog.String("type", string(event.Type)),
		slog.String("severity", string(event.Severity)),
		slog.String("market", event.MarketKey),
		slog.String("position_id", pos.ID),
		slog.String("message", event.Message),
	)

	if err := m.Flush(ctx); err != nil {
		m.logger.WarnContext(ctx, "alert history persist failed",
			slog.String("error", err.Error()),
		)
	}

	if m.dispatcher != nil {
		go m.dispatcher.Dispatch(pos, record)
	}
}

// admit performs the atomic check-and-record: the dedup lookup and the
// history append happen in one critical section so two concurrent callers
// cannot both send the same alert.
func (m *Manager) admit(pos domain.Position, event domain.AlertEvent) (domain.AlertRecord, bool) {
	fp := event.Fingerprint()
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastSent[fp]; ok && now.Sub(last) < m.cfg.DedupWindow {
		return domain.AlertRecord{}, false
	}
	m.lastSent[fp] = now

	record := domain.AlertRecord{
		ID:         uuid.New().String(),
		PositionID: pos.ID,
		Type:       event.Type,
		Severity:   event.Severity,
		MarketKey:  event.MarketKey,
		Message:    event.Message,
		CreatedAt:  event.Timestamp,
	}
	m.history = append(m.history, record)

	// On overflow drop the oldest half, keeping recent context.
	if len(m.history) > m.cfg.HistoryCap {
		keep := len(m.history) / 2
		m.history = append(m.history[:0:0], m.history[len(m.history)-keep:]...)
	}

	return record, true
}

// History returns the records matching filter, newest first.
func (m *Manager) History(filter domain.AlertFilter) []domain.AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.AlertRecord, 0, len(m.history))
	for i := len(m.history) - 1; i >= 0; i-- {
		r := m.history[i]
		if filter.PositionID != "" && r.PositionID != filter.PositionID {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.Severity != "" && r.Severity != filter.Severity {
			continue
		}
		if !filter.Since.IsZero() && r.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Purge drops dedup entries older than twice the window. Run periodically to
// keep the map bounded.
func (m *Manager) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-2 * m.cfg.DedupWindow)
	dropped := 0
	for fp, last := range m.lastSent {
		if last.Before(cutoff) {
			delete(m.lastSent, fp)
			dropped++
		}
	}
	return dropped
}

// Flush persists the current history snapshot.
func (m *Manager) Flush(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.mu.Lock()
	snapshot := append([]domain.AlertRecord(nil), m.history...)
	m.mu.Unlock()

	return m.store.Save(ctx, snapshot)
}
