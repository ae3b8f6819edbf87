package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// FileStore keeps one JSON snapshot file per event per kind under a base
// directory. Writes go through a temp file and rename so readers never
// observe a partial snapshot.
type FileStore struct {
	dir string
}

// NewFileStore creates the backing directories if needed.
func NewFileStore(dir string) (*FileStore, error) {
	for _, kind := range []Kind{KindLeads, KindEngagement} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}
	return &FileStore{dir: dir}, nil
}

// Get loads the snapshot for the given event and kind, or (nil, nil) when no
// snapshot exists yet.
func (s *FileStore) Get(ctx context.Context, eventID string, kind Kind) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(eventID, kind))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt snapshot is treated as absent so the caller re-fetches.
		return nil, nil
	}
	return &snap, nil
}

// Put atomically replaces the snapshot for the given event and kind.
func (s *FileStore) Put(ctx context.Context, eventID string, kind Kind, payload []byte, syncedAt time.Time) error {
	snap := Snapshot{
		EventID:  eventID,
		Kind:     kind,
		Payload:  payload,
		SyncedAt: syncedAt,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	target := s.path(eventID, kind)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(eventID string, kind Kind) string {
	// Event IDs are opaque upstream tokens; encode so they are filename-safe.
	name := base64.RawURLEncoding.EncodeToString([]byte(eventID))
	return filepath.Join(s.dir, string(kind), name+".json")
}
