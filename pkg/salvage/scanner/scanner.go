// Package scanner walks a directory tree in parallel and produces a FileRecord
// for every entry, with content digests for regular files. Per-entry and
// per-directory failures are reported as events and collected in the result;
// only a failure on the root aborts a scan.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/salvage/pkg/salvage/cache"
	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/hasher"
	"github.com/jamesainslie/salvage/pkg/salvage/logging"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// Result is the output of a scan.
type Result struct {
	// Records are in depth-first pre-order with siblings sorted by name.
	Records []types.FileRecord `json:"records" yaml:"records"`

	// Errors lists entries and directories that could not be read.
	Errors []types.ScanError `json:"errors" yaml:"errors"`

	DirsScanned  int64         `json:"dirs_scanned" yaml:"dirs_scanned"`
	FilesScanned int64         `json:"files_scanned" yaml:"files_scanned"`
	TotalSize    uint64        `json:"total_size" yaml:"total_size"`
	CacheHits    int64         `json:"cache_hits" yaml:"cache_hits"`
	Elapsed      time.Duration `json:"elapsed" yaml:"elapsed"`

	// HiddenSkipped counts hidden entries left out by the hidden policy.
	// A skipped directory counts once; its contents are not visited.
	HiddenSkipped int64 `json:"hidden_skipped" yaml:"hidden_skipped"`
}

// Scanner performs parallel directory scanning using fastwalk.
// Scan may be called more than once; every call starts from empty state.
type Scanner struct {
	opts   Options
	hasher *hasher.Hasher
	events *events.Emitter
	log    *logging.Logger

	// root is the resolved absolute path being scanned.
	root string

	dirsScanned  atomic.Int64
	filesScanned atomic.Int64
	bytesScanned atomic.Uint64
	cacheHits    atomic.Int64
	hidden       atomic.Int64

	// lastProgress throttles progress events.
	lastProgress atomic.Int64

	mu      sync.Mutex
	records []types.FileRecord
	errors  []types.ScanError
	pending []cache.Record
}

// New creates a Scanner. Options are validated and defaults applied.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	h, err := hasher.New(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	s := &Scanner{
		opts:   opts,
		hasher: h,
		log:    logging.Get("scanner"),
	}
	if opts.Observer != nil {
		s.events = events.NewEmitter(opts.Observer)
	}
	return s, nil
}

// Scan is a convenience wrapper that scans root with opts.
func Scan(ctx context.Context, root string, opts Options) (*Result, error) {
	opts.Root = root
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx)
}

// Scan walks the tree and returns the collected records.
// It blocks until complete or the context is cancelled.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()

	root, err := s.validateRoot()
	if err != nil {
		return nil, err
	}
	s.root = root
	s.reset()
	s.log.Debug("scan started", "root", root, "max_depth", s.opts.MaxDepth, "workers", s.opts.Workers)
	s.events.Info(root, "scanning %s", root)

	conf := fastwalk.Config{
		Follow:     s.opts.FollowSymlinks,
		NumWorkers: s.opts.Workers,
	}
	if s.opts.MaxDepth != Unlimited {
		// fastwalk counts the root's children as depth 1.
		conf.MaxDepth = s.opts.MaxDepth + 1
	}

	if err := fastwalk.Walk(&conf, root, s.walkCallback(ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sortPreOrder(s.records)
	s.flushCache()

	res := &Result{
		Records:      s.records,
		Errors:       s.errors,
		DirsScanned:  s.dirsScanned.Load(),
		FilesScanned: s.filesScanned.Load(),
		TotalSize:    s.bytesScanned.Load(),
		CacheHits:    s.cacheHits.Load(),
		Elapsed:      time.Since(start),

		HiddenSkipped: s.hidden.Load(),
	}
	if res.Records == nil {
		res.Records = []types.FileRecord{}
	}

	s.log.Info("scan complete", "root", root, "records", len(res.Records), "errors", len(res.Errors), "elapsed", res.Elapsed)
	s.events.Info(root, "scan complete: %d entries, %d errors", len(res.Records), len(res.Errors))
	return res, nil
}

// reset clears everything a previous Scan collected.
func (s *Scanner) reset() {
	s.dirsScanned.Store(0)
	s.filesScanned.Store(0)
	s.bytesScanned.Store(0)
	s.cacheHits.Store(0)
	s.hidden.Store(0)
	s.lastProgress.Store(0)

	s.mu.Lock()
	s.records = nil
	s.errors = nil
	s.pending = nil
	s.mu.Unlock()
}

// flushCache writes the digests computed by this scan.
func (s *Scanner) flushCache() {
	if s.opts.Cache == nil || len(s.pending) == 0 {
		return
	}
	if err := s.opts.Cache.RememberAll(string(s.opts.Algorithm), s.pending); err != nil {
		s.log.Warn("digest cache write failed", "entries", len(s.pending), "error", err)
	}
	s.pending = nil
}

// validateRoot resolves the root path to absolute and verifies it is a directory.
func (s *Scanner) validateRoot() (string, error) {
	root, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", s.opts.Root, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scanning %s: %w: not a directory", root, types.ErrInvalidPath)
	}
	return root, nil
}

// walkCallback returns the callback for fastwalk.Walk. It is called
// concurrently from the walk workers.
func (s *Scanner) walkCallback(ctx context.Context) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path == s.root {
			// An unreadable root is fatal; anything else about it is not recorded.
			return err
		}

		if err != nil {
			// Directory read failure: the directory itself was already
			// recorded, its subtree is abandoned.
			s.events.Error(path, "cannot read directory: %v", err)
			s.addError(path, err)
			return nil
		}

		if !s.opts.IncludeHidden && types.IsHiddenName(d.Name()) {
			s.hidden.Add(1)
			return skip(d)
		}

		if s.opts.MaxDepth != Unlimited && s.depth(path) > s.opts.MaxDepth {
			return skip(d)
		}

		return s.visit(ctx, path, d)
	}
}

// skip drops an entry. Directories and symlinks are not descended.
func skip(d fs.DirEntry) error {
	if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
		return fastwalk.SkipDir
	}
	return nil
}

// depth returns the depth of path below the root; direct children are 0.
func (s *Scanner) depth(path string) int {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator))
}

// visit builds the record for one entry.
func (s *Scanner) visit(ctx context.Context, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		s.events.Warn(path, "cannot read metadata: %v", err)
		s.addError(path, err)
		if s.opts.IncludeDeleted {
			s.addRecord(placeholder(path))
		}
		return nil
	}

	rec := s.buildRecord(path, info)

	switch {
	case rec.IsDir:
		s.dirsScanned.Add(1)
	case rec.IsSymlink:
		s.filesScanned.Add(1)
		if target, statErr := os.Stat(path); statErr == nil && target.Mode().IsRegular() {
			s.hashInto(ctx, &rec, target)
		}
	default:
		s.filesScanned.Add(1)
		s.bytesScanned.Add(rec.Size)
		if info.Mode().IsRegular() {
			s.hashInto(ctx, &rec, info)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.addRecord(rec)
	s.reportProgress(path)
	return nil
}

// buildRecord fills every metadata field that does not require reading content.
func (s *Scanner) buildRecord(path string, info os.FileInfo) types.FileRecord {
	created, accessed := fileTimes(path, info)
	rec := types.FileRecord{
		Path:        path,
		Size:        uint64(max(info.Size(), 0)),
		Created:     created,
		Modified:    info.ModTime(),
		Accessed:    accessed,
		Permissions: info.Mode().Perm().String()[1:],
		IsDir:       info.IsDir(),
		IsSymlink:   info.Mode()&os.ModeSymlink != 0,
		IsHidden:    types.IsHiddenName(info.Name()),
	}
	rec.Owner, rec.Group = ownership(info)
	if rec.IsDir {
		rec.Size = 0
	} else {
		rec.MimeType = types.MimeTypeOf(path)
	}
	return rec
}

// hashInto digests the file behind rec, consulting the cache first.
// Failures leave the hash empty and are reported as warnings.
func (s *Scanner) hashInto(ctx context.Context, rec *types.FileRecord, info os.FileInfo) {
	if s.opts.SkipHash {
		return
	}

	algo := string(s.opts.Algorithm)
	if s.opts.Cache != nil {
		if digest, ok := s.opts.Cache.Lookup(algo, rec.Path, info.Size(), info.ModTime()); ok {
			s.cacheHits.Add(1)
			rec.Hash = digest
			return
		}
	}

	digest, err := s.hasher.HashFile(ctx, rec.Path)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.events.Warn(rec.Path, "cannot hash: %v", err)
		s.addError(rec.Path, err)
		return
	}
	rec.Hash = digest

	if s.opts.Cache != nil {
		s.mu.Lock()
		s.pending = append(s.pending, cache.Record{Path: rec.Path, Size: info.Size(), Mtime: info.ModTime(), Digest: digest})
		s.mu.Unlock()
	}
}

func placeholder(path string) types.FileRecord {
	return types.FileRecord{
		Path:     path,
		IsHidden: types.IsHiddenName(filepath.Base(path)),
		MimeType: types.MimeTypeOf(path),
	}
}

func (s *Scanner) addRecord(rec types.FileRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

// addError adds an error to the error list thread-safely.
func (s *Scanner) addError(path string, err error) {
	s.mu.Lock()
	s.errors = append(s.errors, types.ScanError{Path: path, Error: err.Error()})
	s.mu.Unlock()
}

// reportProgress emits a progress event at most every 10ms.
func (s *Scanner) reportProgress(path string) {
	if s.events == nil {
		return
	}

	now := time.Now().UnixMilli()
	last := s.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !s.lastProgress.CompareAndSwap(last, now) {
		return
	}

	s.events.Progress(path, "%d files, %d directories", s.filesScanned.Load(), s.dirsScanned.Load())
}

// sortPreOrder orders records depth-first with siblings sorted by name, so
// every directory precedes its contents.
func sortPreOrder(records []types.FileRecord) {
	key := func(p string) string {
		return strings.ReplaceAll(p, string(filepath.Separator), "\x00")
	}
	sort.SliceStable(records, func(i, j int) bool {
		return key(records[i].Path) < key(records[j].Path)
	})
}
