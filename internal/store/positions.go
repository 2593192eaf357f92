package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// PositionStore persists the full position set as one atomic snapshot file.
type PositionStore struct {
	path     string
	archiver domain.SnapshotArchiver
	logger   *slog.Logger
}

// NewPositionStore creates a PositionStore writing to dir/positions.json.
// archiver may be nil; when set, each successful save is also shipped to cold
// storage best-effort.
func NewPositionStore(dir string, archiver domain.SnapshotArchiver, logger *slog.Logger) (*PositionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &PositionStore{
		path:     filepath.Join(dir, "positions.json"),
		archiver: archiver,
		logger:   logger.With(slog.String("component", "position_store")),
	}, nil
}

// Save writes the position set atomically and archives a copy.
func (s *PositionStore) Save(ctx context.Context, positions []domain.Position) error {
	if err := saveSnapshot(s.path, positions); err != nil {
		return fmt.Errorf("store: save positions: %w", err)
	}
	s.archive(ctx, "positions")
	return nil
}

// Load reads the persisted position set. Missing or corrupt files load as an
// empty set.
func (s *PositionStore) Load(ctx context.Context) ([]domain.Position, error) {
	var positions []domain.Position
	ok, err := loadSnapshot(s.path, &positions)
	if err != nil {
		return nil, fmt.Errorf("store: load positions: %w", err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "no usable positions snapshot, starting empty",
			slog.String("path", s.path),
		)
		return nil, nil
	}
	return positions, nil
}

// archive ships the current snapshot file to cold storage. Failures are
// logged only; local state stays authoritative.
func (s *PositionStore) archive(ctx context.Context, name string) {
	if s.archiver == nil {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	if err := s.archiver.ArchiveSnapshot(ctx, name, data, timeNow()); err != nil {
		s.logger.WarnContext(ctx, "snapshot archive failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}
