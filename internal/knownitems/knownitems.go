// Package knownitems records which source files have been imported into a
// library and where they were placed.
//
// The store is append-only and deduplicating: recording the same
// (sourcePath, destinationPath) pair twice keeps the first record. Each source
// has its own bucket; keys are "sourcePath NUL destinationPath" and values are
// the time the pair was recorded.
package knownitems

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bolet777/mediahub/internal/types"
)

// lockTimeout bounds the wait for another process holding the database.
const lockTimeout = 1 * time.Second

// ErrLocked is returned when another process holds the store.
var ErrLocked = errors.New("known-items store is locked by another process")

// Item is one recorded import.
type Item struct {
	SourcePath      string
	DestinationPath string
	RecordedAt      string
}

// Store is an open known-items database. A Store opened read-only on a
// missing file is empty and never creates it.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (creating if needed) the store at path for writing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("open known items: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenReadOnly opens the store at path for queries only.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &Store{now: time.Now}, nil
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true, Timeout: lockTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("open known items: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func makeKey(sourcePath, destinationPath string) []byte {
	key := make([]byte, 0, len(sourcePath)+1+len(destinationPath))
	key = append(key, sourcePath...)
	key = append(key, 0)
	return append(key, destinationPath...)
}

func splitKey(key []byte) (sourcePath, destinationPath string) {
	src, dst, _ := bytes.Cut(key, []byte{0})
	return string(src), string(dst)
}

// Record appends a pair for sourceID. It reports false if the pair was
// already present.
func (s *Store) Record(sourceID, sourcePath, destinationPath string) (bool, error) {
	if s.db == nil {
		return false, errors.New("known-items store opened read-only")
	}
	added := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(sourceID))
		if err != nil {
			return err
		}
		key := makeKey(sourcePath, destinationPath)
		if b.Get(key) != nil {
			return nil
		}
		added = true
		return b.Put(key, []byte(types.FormatTime(s.now())))
	})
	if err != nil {
		return false, fmt.Errorf("record known item: %w", err)
	}
	return added, nil
}

// Contains reports whether sourcePath was recorded for sourceID, under any
// destination.
func (s *Store) Contains(sourceID, sourcePath string) (bool, error) {
	found := false
	err := s.view(sourceID, func(b *bolt.Bucket) error {
		prefix := makeKey(sourcePath, "")
		k, _ := b.Cursor().Seek(prefix)
		found = k != nil && bytes.HasPrefix(k, prefix)
		return nil
	})
	return found, err
}

// SourcePaths returns every source path recorded for sourceID.
func (s *Store) SourcePaths(sourceID string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := s.view(sourceID, func(b *bolt.Bucket) error {
		return b.ForEach(func(k, _ []byte) error {
			src, _ := splitKey(k)
			out[src] = struct{}{}
			return nil
		})
	})
	return out, err
}

// Items returns all records for sourceID in key order.
func (s *Store) Items(sourceID string) ([]Item, error) {
	var items []Item
	err := s.view(sourceID, func(b *bolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			src, dst := splitKey(k)
			items = append(items, Item{SourcePath: src, DestinationPath: dst, RecordedAt: string(v)})
			return nil
		})
	})
	return items, err
}

// view runs fn against the bucket of sourceID; a missing bucket is empty.
func (s *Store) view(sourceID string, fn func(*bolt.Bucket) error) error {
	if s.db == nil {
		return nil
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sourceID))
		if b == nil {
			return nil
		}
		return fn(b)
	})
	if err != nil {
		return fmt.Errorf("read known items: %w", err)
	}
	return nil
}
