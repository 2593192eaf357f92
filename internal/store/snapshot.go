package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// snapshotVersion is written into every snapshot envelope.
const snapshotVersion = 1

// snapshot is the on-disk envelope wrapping every persisted collection.
type snapshot struct {
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

// saveSnapshot marshals v into a versioned envelope and writes it atomically.
func saveSnapshot(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot data: %w", err)
	}

	env, err := json.MarshalIndent(snapshot{
		Version:   snapshotVersion,
		UpdatedAt: time.Now().UTC(),
		Data:      data,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal snapshot envelope: %w", err)
	}

	return WriteFileAtomic(path, env, 0o644)
}

// loadSnapshot reads the snapshot at path into v. A missing or corrupt file
// is reported via the ok flag rather than an error, so callers can fall back
// to an empty collection; only unexpected I/O failures return an error.
func loadSnapshot(path string, v any) (ok bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("store: read snapshot %s: %w", path, err)
	}

	var env snapshot
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, nil // corrupt envelope, treat as empty
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return false, nil // corrupt payload, treat as empty
	}
	return true, nil
}
