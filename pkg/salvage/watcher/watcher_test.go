package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// collector gathers entries delivered by Run.
type collector struct {
	mu      sync.Mutex
	entries []types.TimelineEntry
}

func (c *collector) add(e types.TimelineEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *collector) has(path string, kind types.EventKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Record.Path == path && e.Kind == kind {
			return true
		}
	}
	return false
}

func start(t *testing.T, root string, opts ...Option) (*Watcher, *collector) {
	t.Helper()
	w, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, c.add)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w, c
}

func TestWatchRegistersSubdirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o755))

	w, err := New()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(root))
	assert.Equal(t, 3, w.Watched())

	w.Unwatch(filepath.Join(root, "a"))
	assert.Equal(t, 1, w.Watched())
}

func TestWatchRejectsBadRoots(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing")))

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.ErrorIs(t, w.Watch(file), types.ErrInvalidPath)

	assert.ErrorIs(t, w.Watch(""), types.ErrInvalidPath)
}

func TestRunReportsLifecycle(t *testing.T) {
	root := t.TempDir()
	_, c := start(t, root)

	file := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))
	require.Eventually(t, func() bool { return c.has(file, types.EventCreated) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(file))
	require.Eventually(t, func() bool { return c.has(file, types.EventDeleted) }, 5*time.Second, 10*time.Millisecond)
}

func TestRunWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, c := start(t, root)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool { return c.has(sub, types.EventCreated) }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return w.Watched() == 2 }, 5*time.Second, 10*time.Millisecond)

	inner := filepath.Join(sub, "inner.txt")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0o644))
	require.Eventually(t, func() bool { return c.has(inner, types.EventCreated) }, 5*time.Second, 10*time.Millisecond)
}

func TestHandleEvent(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.log")
	require.NoError(t, os.WriteFile(file, []byte("abc"), 0o644))

	w, err := New()
	require.NoError(t, err)
	defer w.Close()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	entry, ok := w.handleEvent(fsnotify.Event{Name: file, Op: fsnotify.Write})
	require.True(t, ok)
	assert.Equal(t, types.EventModified, entry.Kind)
	assert.Equal(t, fixed, entry.Time)
	assert.Equal(t, uint64(3), entry.Record.Size)
	assert.Equal(t, "text/plain", entry.Record.MimeType)

	entry, ok = w.handleEvent(fsnotify.Event{Name: file, Op: fsnotify.Rename})
	require.True(t, ok)
	assert.Equal(t, types.EventDeleted, entry.Kind)

	_, ok = w.handleEvent(fsnotify.Event{Name: file, Op: fsnotify.Chmod})
	assert.False(t, ok)

	_, ok = w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "gone"), Op: fsnotify.Create})
	assert.False(t, ok, "a create for a vanished path is dropped")

	_, ok = w.handleEvent(fsnotify.Event{Name: filepath.Join(root, ".swp"), Op: fsnotify.Remove})
	assert.False(t, ok, "hidden entries are ignored by default")

	hidden, err := New(WithIncludeHidden(true))
	require.NoError(t, err)
	defer hidden.Close()
	_, ok = hidden.handleEvent(fsnotify.Event{Name: filepath.Join(root, ".swp"), Op: fsnotify.Remove})
	assert.True(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Zero(t, w.Watched())
}
