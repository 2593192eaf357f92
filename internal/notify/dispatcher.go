// Package notify delivers alerts to configured channels: generic JSON
// webhooks, Discord, and Telegram. Delivery is best-effort and at-most-once:
// each channel gets one attempt with its own timeout, and failures are
// logged, never propagated.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// Sender is the interface each delivery channel must implement.
type Sender interface {
	// Send delivers the alert and its position to the channel.
	Send(ctx context.Context, pos domain.Position, record domain.AlertRecord) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Dispatcher fans an alert out to all senders concurrently. It never blocks
// the update cycle: every delivery runs under its own timeout and errors are
// swallowed after logging.
type Dispatcher struct {
	senders []Sender
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given senders.
func NewDispatcher(senders []Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: senders,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch delivers the alert to every sender concurrently and waits for all
// deliveries to finish or time out.
func (d *Dispatcher) Dispatch(pos domain.Position, record domain.AlertRecord) {
	if len(d.senders) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, s := range d.senders {
		wg.Add(1)
		go func(s Sender) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := s.Send(ctx, pos, record); err != nil {
				d.logger.Warn("alert delivery failed",
					slog.String("sender", s.Name()),
					slog.String("alert_id", record.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			d.logger.Debug("alert delivered",
				slog.String("sender", s.Name()),
				slog.String("alert_id", record.ID),
			)
		}(s)
	}
	wg.Wait()
}
