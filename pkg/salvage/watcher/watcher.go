// Package watcher turns live filesystem notifications into timeline entries.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/logging"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// Watcher watches directory trees and reports created, modified, and
// deleted entries.
type Watcher struct {
	watcher       *fsnotify.Watcher
	paths         map[string]bool
	mu            sync.RWMutex
	closed        bool
	includeHidden bool
	now           func() time.Time
	events        *events.Emitter
	log           *logging.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithObserver attaches an event observer for watch errors.
func WithObserver(o events.Observer) Option {
	return func(w *Watcher) {
		if o != nil {
			w.events = events.NewEmitter(o)
		}
	}
}

// WithIncludeHidden reports and descends into dot-prefixed entries.
func WithIncludeHidden(b bool) Option {
	return func(w *Watcher) {
		w.includeHidden = b
	}
}

// New creates a Watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		watcher: fsw,
		paths:   make(map[string]bool),
		now:     time.Now,
		log:     logging.Get("watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts watching root and every directory below it.
// Symlinks are not followed.
func (w *Watcher) Watch(root string) error {
	if err := types.ValidatePath(root); err != nil {
		return err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return fmt.Errorf("watching %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watching %s: %w: not a directory", absRoot, types.ErrInvalidPath)
	}

	if err := w.addWatch(absRoot); err != nil {
		return fmt.Errorf("watching %s: %w", absRoot, err)
	}
	w.addTree(absRoot)
	return nil
}

// addTree watches the directories below dir. Failures are logged.
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if path == dir || !d.IsDir() {
			return nil
		}
		if !w.includeHidden && types.IsHiddenName(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.addWatch(path); err != nil {
			w.events.Warn(path, "cannot watch: %v", err)
		}
		return nil
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

// Watched returns the number of directories being watched.
func (w *Watcher) Watched() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.paths)
}

// Unwatch stops watching root and its subdirectories.
func (w *Watcher) Unwatch(root string) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropLocked(absRoot)
}

// dropLocked removes watches on path and below. w.mu must be held.
func (w *Watcher) dropLocked(path string) {
	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// Run delivers timeline entries to onEntry until ctx is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context, onEntry func(types.TimelineEntry)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if entry, ok := w.handleEvent(event); ok && onEntry != nil {
				onEntry(entry)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
			w.events.Error("", "watch error: %v", err)
		}
	}
}

// handleEvent maps one notification to a timeline entry. Rename is
// reported as deleted; the new name arrives as its own create.
func (w *Watcher) handleEvent(event fsnotify.Event) (types.TimelineEntry, bool) {
	path := event.Name
	if !w.includeHidden && types.IsHiddenName(filepath.Base(path)) {
		return types.TimelineEntry{}, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return w.present(path, types.EventCreated)
	case event.Has(fsnotify.Write):
		return w.present(path, types.EventModified)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		w.dropLocked(path)
		w.mu.Unlock()
		return w.entry(types.EventDeleted, types.FileRecord{
			Path:     path,
			IsHidden: types.IsHiddenName(filepath.Base(path)),
		}), true
	}
	return types.TimelineEntry{}, false
}

// present builds an entry for a path that should exist. A path that is
// already gone produces nothing; its removal is reported separately.
func (w *Watcher) present(path string, kind types.EventKind) (types.TimelineEntry, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return types.TimelineEntry{}, false
	}

	if kind == types.EventCreated && info.IsDir() {
		_ = w.addWatch(path)
		w.addTree(path)
	}

	rec := types.FileRecord{
		Path:      path,
		Size:      uint64(max(info.Size(), 0)),
		Created:   info.ModTime(),
		Modified:  info.ModTime(),
		Accessed:  info.ModTime(),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&fs.ModeSymlink != 0,
		IsHidden:  types.IsHiddenName(info.Name()),
	}
	if rec.IsDir {
		rec.Size = 0
	} else {
		rec.MimeType = types.MimeTypeOf(path)
	}
	return w.entry(kind, rec), true
}

func (w *Watcher) entry(kind types.EventKind, rec types.FileRecord) types.TimelineEntry {
	return types.TimelineEntry{Time: w.now(), Kind: kind, Record: rec}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
