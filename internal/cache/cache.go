// Package cache persists content hashes of library files between runs.
package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bolet777/mediahub/internal/hasher"
)

const (
	bucketName = "hashes"
	digestSize = 32
)

// Cache maps (library-relative path, size, mtime) to a content hash.
//
// Every Open starts a fresh database next to the old one. Entries are copied
// forward only when looked up or stored, so Close leaves behind just the
// hashes of files the run actually touched.
type Cache struct {
	path    string
	old     *bolt.DB // previous run, read-only; nil when absent or unreadable
	next    *bolt.DB // path + ".new", swapped into place on Close
	enabled bool

	hits, misses int
}

// Open opens the hash cache at path. An empty path returns a disabled cache
// whose methods are no-ops. A second process holding the cache makes Open
// fail after a one second wait.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true, old: openPrevious(path)}
	next, err := openNext(path + ".new")
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.next = next
	return c, nil
}

func openPrevious(path string) *bolt.DB {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		slog.Warn("previous hash cache unreadable, starting empty", "path", path, "error", err)
		return nil
	}
	return db
}

func openNext(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open hash cache %s (locked by another process?): %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Stats returns the lookup hit and miss counts since Open.
func (c *Cache) Stats() (hits, misses int) {
	if c == nil {
		return 0, 0
	}
	return c.hits, c.misses
}

// Close closes both databases and moves the new one over the old. The swap
// is skipped when the new database failed to close.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.old != nil {
		errs = append(errs, c.old.Close())
	}
	if c.next != nil {
		if err := c.next.Close(); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, os.Rename(c.path+".new", c.path))
		}
	}
	return errors.Join(errs...)
}

const keyVersion byte = 1 // Increment when key format changes

// makeKey builds deterministic byte key for BoltDB lookup.
// Key = ver(1) + relPath + NUL + size(8) + mtime(8)
func makeKey(relPath string, size int64, mtime time.Time) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(relPath)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, size)
	_ = binary.Write(buf, binary.BigEndian, mtime.UnixNano())
	return buf.Bytes()
}

// Lookup retrieves a cached "sha256:" hash. Any change to path, size or
// mtime is a miss. On a hit the entry is carried over to the new database.
// Returns ("", nil) if not found.
func (c *Cache) Lookup(relPath string, size int64, mtime time.Time) (string, error) {
	if c == nil || !c.enabled {
		return "", nil
	}
	if c.old == nil {
		c.misses++
		return "", nil
	}

	key := makeKey(relPath, size, mtime)
	var digest []byte

	err := c.old.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		data := b.Get(key)
		if len(data) == digestSize {
			digest = make([]byte, digestSize)
			copy(digest, data)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("cache lookup: %w", err)
	}
	if digest == nil {
		c.misses++
		return "", nil
	}
	c.hits++

	hash := hasher.Prefix + hex.EncodeToString(digest)
	_ = c.Store(relPath, size, mtime, hash)
	return hash, nil
}

// Store saves a "sha256:" hash to the new database. Malformed hashes are ignored.
func (c *Cache) Store(relPath string, size int64, mtime time.Time, hash string) error {
	if c == nil || !c.enabled || c.next == nil || !hasher.Valid(hash) {
		return nil
	}
	digest, err := hex.DecodeString(strings.TrimPrefix(hash, hasher.Prefix))
	if err != nil {
		return nil
	}

	err = c.next.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(relPath, size, mtime), digest)
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
