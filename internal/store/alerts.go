package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

func timeNow() time.Time { return time.Now().UTC() }

// AlertStore persists the alert history as one atomic snapshot file.
type AlertStore struct {
	path     string
	archiver domain.SnapshotArchiver
	logger   *slog.Logger
}

// NewAlertStore creates an AlertStore writing to dir/alerts.json. archiver
// may be nil.
func NewAlertStore(dir string, archiver domain.SnapshotArchiver, logger *slog.Logger) (*AlertStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &AlertStore{
		path:     filepath.Join(dir, "alerts.json"),
		archiver: archiver,
		logger:   logger.With(slog.String("component", "alert_store")),
	}, nil
}

// Save writes the alert history atomically and archives a copy.
func (s *AlertStore) Save(ctx context.Context, records []domain.AlertRecord) error {
	if err := saveSnapshot(s.path, records); err != nil {
		return fmt.Errorf("store: save alerts: %w", err)
	}
	if s.archiver != nil {
		if data, err := os.ReadFile(s.path); err == nil {
			if err := s.archiver.ArchiveSnapshot(ctx, "alerts", data, timeNow()); err != nil {
				s.logger.WarnContext(ctx, "snapshot archive failed",
					slog.String("name", "alerts"),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return nil
}

// Load reads the persisted alert history. Missing or corrupt files load as
// an empty history.
func (s *AlertStore) Load(ctx context.Context) ([]domain.AlertRecord, error) {
	var records []domain.AlertRecord
	ok, err := loadSnapshot(s.path, &records)
	if err != nil {
		return nil, fmt.Errorf("store: load alerts: %w", err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "no usable alerts snapshot, starting empty",
			slog.String("path", s.path),
		)
		return nil, nil
	}
	return records, nil
}
