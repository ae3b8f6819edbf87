package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// BadgerStore keeps snapshots in an embedded BadgerDB. Suitable when the
// snapshot population is large enough that one-file-per-event becomes a
// filesystem burden.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at the given path.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get retrieves the snapshot for the given event and kind, or (nil, nil) when
// no snapshot exists.
func (s *BadgerStore) Get(ctx context.Context, eventID string, kind Kind) (*Snapshot, error) {
	var snap Snapshot

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(eventID, kind))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Put replaces the snapshot for the given event and kind in one transaction.
func (s *BadgerStore) Put(ctx context.Context, eventID string, kind Kind, payload []byte, syncedAt time.Time) error {
	snap := Snapshot{
		EventID:  eventID,
		Kind:     kind,
		Payload:  payload,
		SyncedAt: syncedAt,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(eventID, kind), data)
	})
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func snapshotKey(eventID string, kind Kind) []byte {
	return []byte("snapshot:" + string(kind) + ":" + eventID)
}
