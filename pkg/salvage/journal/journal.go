// Package journal keeps a history of recovery, backup, and restore runs as
// one JSON file per run.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("journal entry not found")

const entryExt = ".json"

// Entry is one journaled run.
type Entry struct {
	Timestamp time.Time            `json:"timestamp" yaml:"timestamp"`
	Result    types.RecoveryResult `json:"result" yaml:"result"`
}

// ID returns the run id.
func (e *Entry) ID() string {
	return e.Result.ID
}

// Journal manages run entries in a directory.
type Journal struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// DefaultDir returns the default journal directory.
func DefaultDir() string {
	return filepath.Join(xdg.StateHome, "salvage", "journal")
}

// New creates a Journal in dir. The directory is created on first write.
func New(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Record persists a run. A result without an id is assigned one.
func (j *Journal) Record(res *types.RecoveryResult) (*Entry, error) {
	if res == nil {
		return nil, errors.New("journal: nil result")
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{Timestamp: j.now().UTC(), Result: *res}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	if err := j.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("writing journal entry %s: %w", res.ID, err)
	}
	return entry, nil
}

// writeEntry writes an entry atomically via a temp file and rename.
func (j *Journal) writeEntry(entry *Entry) error {
	path := j.entryPath(entry.ID())

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (j *Journal) entryPath(id string) string {
	return filepath.Join(j.dir, id+entryExt)
}

// List returns entries newest first. A non-positive limit returns all.
// Unparseable files are skipped.
func (j *Journal) List(limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Timestamp.After(entries[b].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given id.
func (j *Journal) Get(id string) (*Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry, err := readEntry(j.entryPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return entry, nil
}

// Cleanup removes entries recorded more than retentionDays ago and returns
// how many were removed.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	entries, err := j.readAll()
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	for i := range entries {
		if !entries[i].Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(j.entryPath(entries[i].ID())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (j *Journal) readAll() ([]Entry, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("reading journal directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), entryExt) {
			continue
		}
		entry, err := readEntry(filepath.Join(j.dir, f.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &entry, nil
}
