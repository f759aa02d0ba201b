// Package cache remembers file digests between scans. An entry is reused only
// while the file's size and modification time are unchanged.
package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
)

// Cache is a persistent digest cache keyed by algorithm and path.
// It is safe for concurrent use.
type Cache struct {
	store  *Store
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports lookup counters since the cache was opened.
type Stats struct {
	Hits   int64
	Misses int64
}

// DefaultPath returns the default on-disk location of the cache.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "salvage", "digests")
}

// Open opens or creates a cache in dir.
func Open(dir string) (*Cache, error) {
	store, err := OpenStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening digest cache %s: %w", dir, err)
	}
	return &Cache{store: store}, nil
}

// OpenInMemory opens a cache that is discarded on Close.
func OpenInMemory() (*Cache, error) {
	store, err := OpenMemoryStore()
	if err != nil {
		return nil, fmt.Errorf("opening in-memory digest cache: %w", err)
	}
	return &Cache{store: store}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Lookup returns the remembered digest of path if it was computed with the
// same algorithm from a file of the same size and mtime.
func (c *Cache) Lookup(algorithm, path string, size int64, mtime time.Time) (string, bool) {
	entry, err := c.store.Get(MakeKey(algorithm, path))
	if err != nil || !entry.Matches(size, mtime) {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return entry.Digest, true
}

// Remember stores the digest of path along with the file state it describes.
func (c *Cache) Remember(algorithm, path string, size int64, mtime time.Time, digest string) error {
	return c.store.Put(MakeKey(algorithm, path), &DigestEntry{
		Version: FormatVersion,
		Size:    size,
		Mtime:   mtime.UnixNano(),
		Digest:  digest,
	})
}

// Record is a computed digest and the file state it was computed from.
type Record struct {
	Path   string
	Size   int64
	Mtime  time.Time
	Digest string
}

// RememberAll stores many digests for one algorithm in a single write batch.
func (c *Cache) RememberAll(algorithm string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	entries := make(map[string]*DigestEntry, len(records))
	for _, r := range records {
		entries[string(MakeKey(algorithm, r.Path))] = &DigestEntry{
			Version: FormatVersion,
			Size:    r.Size,
			Mtime:   r.Mtime.UnixNano(),
			Digest:  r.Digest,
		}
	}
	return c.store.PutBatch(entries)
}

// Forget drops every algorithm's entry for path.
func (c *Cache) Forget(path string, algorithms ...string) error {
	var errs []error
	for _, a := range algorithms {
		errs = append(errs, c.store.Delete(MakeKey(a, path)))
	}
	return errors.Join(errs...)
}

// Len returns the number of entries for an algorithm, or all entries when
// algorithm is empty.
func (c *Cache) Len(algorithm string) (int, error) {
	if algorithm == "" {
		return c.store.Count(nil)
	}
	return c.store.Count(MakeKeyPrefix(algorithm))
}

// Clear removes all entries for an algorithm.
func (c *Cache) Clear(algorithm string) error {
	return c.store.DeletePrefix(MakeKeyPrefix(algorithm))
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() error {
	return c.store.DeletePrefix(nil)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
