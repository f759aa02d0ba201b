// Package recovery copies, backs up, and restores directory trees with
// content verification.
//
// Bulk operations are partial-failure tolerant: a file that cannot be copied
// or verified is recorded in the result's Errors and the run continues.
// Only problems with the operation's source, destination, or archive as a
// whole are returned as errors.
//
// Runs against overlapping destinations must not be started concurrently;
// no locking is performed.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/salvage/pkg/salvage/archive"
	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/hasher"
	"github.com/jamesainslie/salvage/pkg/salvage/journal"
	"github.com/jamesainslie/salvage/pkg/salvage/logging"
	"github.com/jamesainslie/salvage/pkg/salvage/scanner"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// BackupPrefix starts the name of archives created in a destination directory.
const BackupPrefix = "backup-"

// backupTimeFormat is the timestamp layout used in archive names.
const backupTimeFormat = "20060102-150405"

// Journal records completed runs. *journal.Journal satisfies it.
type Journal interface {
	Record(res *types.RecoveryResult) (*journal.Entry, error)
}

// Options configures a Pipeline.
type Options struct {
	// PreserveTimestamps restores access and modification times on copies.
	PreserveTimestamps bool

	// Verify compares source and destination digests after every copy.
	Verify bool

	// Algorithm is the digest used for verification.
	Algorithm hasher.Algorithm

	// Level is the gzip level for compressed backups. Zero selects
	// archive.DefaultLevel.
	Level int

	// Scan controls how sources are traversed. Root and Algorithm are set
	// per run.
	Scan scanner.Options

	// Observer receives pipeline and scan events. May be nil.
	Observer events.Observer

	// Journal records every completed run. May be nil.
	Journal Journal
}

// DefaultOptions returns options with verification and timestamp preservation enabled.
func DefaultOptions() Options {
	return Options{
		PreserveTimestamps: true,
		Verify:             true,
		Algorithm:          hasher.DefaultAlgorithm,
		Level:              archive.DefaultLevel,
		Scan:               scanner.DefaultOptions(),
	}
}

// Pipeline runs recovery, backup, and restore operations.
type Pipeline struct {
	opts   Options
	hasher *hasher.Hasher
	codec  *archive.Codec
	events *events.Emitter
	log    *logging.Logger
	now    func() time.Time
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	algo, err := hasher.ParseAlgorithm(string(opts.Algorithm))
	if err != nil {
		return nil, err
	}
	opts.Algorithm = algo

	h, err := hasher.New(algo)
	if err != nil {
		return nil, err
	}

	if opts.Level == 0 {
		opts.Level = archive.DefaultLevel
	}

	p := &Pipeline{
		opts:   opts,
		hasher: h,
		codec:  archive.New(archive.WithLevel(opts.Level), archive.WithObserver(opts.Observer)),
		log:    logging.Get("recovery"),
		now:    time.Now,
	}
	if opts.Observer != nil {
		p.events = events.NewEmitter(opts.Observer)
	}
	return p, nil
}

// run carries the bookkeeping shared by every operation.
type run struct {
	res   *types.RecoveryResult
	start time.Time
}

func (p *Pipeline) begin(op types.Operation, src, dst string) *run {
	p.events.Info(src, "%s started: %s -> %s", op, src, dst)
	p.log.Info("operation started", "operation", op, "source", src, "destination", dst)
	return &run{
		res: &types.RecoveryResult{
			ID:             uuid.NewString(),
			Operation:      op,
			Source:         src,
			Destination:    dst,
			RecoveredFiles: []types.FileRecord{},
			Errors:         []string{},
		},
		start: p.now(),
	}
}

// fail records a per-file failure without stopping the run.
func (p *Pipeline) fail(r *run, path string, err error) {
	r.res.Errors = append(r.res.Errors, fmt.Sprintf("%s: %v", path, err))
	p.events.Warn(path, "%v", err)
	p.log.Warn("file failed", "operation", r.res.Operation, "path", path, "error", err)
}

// recovered adds a file to the result. Directories are not listed.
func (p *Pipeline) recovered(r *run, rec types.FileRecord) {
	if rec.IsDir {
		return
	}
	r.res.RecoveredFiles = append(r.res.RecoveredFiles, rec)
	r.res.TotalFiles++
	r.res.TotalBytes += rec.Size
}

// finish stamps the result and records it in the journal.
func (p *Pipeline) finish(r *run) *types.RecoveryResult {
	res := r.res
	res.Success = len(res.Errors) == 0
	res.Duration = p.now().Sub(r.start)

	if p.opts.Journal != nil {
		if _, err := p.opts.Journal.Record(res); err != nil {
			p.log.Warn("journal write failed", "id", res.ID, "error", err)
			p.events.Warn(res.Destination, "cannot record run in journal: %v", err)
		}
	}

	p.log.Info("operation complete",
		"operation", res.Operation,
		"id", res.ID,
		"files", res.TotalFiles,
		"bytes", res.TotalBytes,
		"errors", len(res.Errors),
		"duration", res.Duration)
	p.events.Info(res.Destination, "%s complete: %d files, %d errors", res.Operation, res.TotalFiles, len(res.Errors))
	return res
}

// RecoverDirectory copies every entry under src into dst, verifying each
// copy. Per-file failures are collected in the result.
func (p *Pipeline) RecoverDirectory(ctx context.Context, src, dst string) (*types.RecoveryResult, error) {
	return p.copyTree(ctx, types.OpRecover, src, dst)
}

// CreateBackup copies src into dst, or with compress archives every regular
// file under src into a single archive. dst names the archive when it ends
// in archive.FileExt; otherwise the archive is created inside dst.
func (p *Pipeline) CreateBackup(ctx context.Context, src, dst string, compress bool) (*types.RecoveryResult, error) {
	if !compress {
		return p.copyTree(ctx, types.OpBackup, src, dst)
	}

	srcAbs, dstAbs, err := resolvePair(src, dst)
	if err != nil {
		return nil, err
	}
	out := dstAbs
	if !strings.EqualFold(filepath.Ext(dstAbs), archive.FileExt) {
		out = filepath.Join(dstAbs, BackupPrefix+p.now().Format(backupTimeFormat)+archive.FileExt)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("creating backup destination %s: %w", filepath.Dir(out), err)
	}

	r := p.begin(types.OpBackup, srcAbs, out)
	scan, err := p.scan(ctx, srcAbs, true)
	if err != nil {
		return nil, err
	}
	p.scanFailures(r, scan)

	files := make([]types.FileRecord, 0, len(scan.Records))
	paths := make([]string, 0, len(scan.Records))
	for _, rec := range scan.Records {
		if rec.IsDir || rec.IsSymlink || rec.Path == out {
			continue
		}
		files = append(files, rec)
		paths = append(paths, rec.Path)
	}

	entries, err := p.codec.Compress(ctx, paths, out, srcAbs)
	if err != nil {
		return nil, err
	}

	archived := make(map[string]bool, len(entries))
	for _, e := range entries {
		archived[filepath.Join(srcAbs, filepath.FromSlash(e.Path))] = true
	}
	for _, rec := range files {
		if archived[rec.Path] {
			r.res.RecoveredFiles = append(r.res.RecoveredFiles, rec)
			r.res.TotalFiles++
		}
	}

	info, err := os.Stat(out)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", out, err)
	}
	r.res.TotalBytes = uint64(info.Size())
	r.res.ArchivePath = out
	return p.finish(r), nil
}

// RestoreBackup extracts an archive into dst. A corrupt archive aborts the
// whole restore.
func (p *Pipeline) RestoreBackup(ctx context.Context, archivePath, dst string) (*types.RecoveryResult, error) {
	archiveAbs, dstAbs, err := resolvePair(archivePath, dst)
	if err != nil {
		return nil, err
	}

	r := p.begin(types.OpRestore, archiveAbs, dstAbs)
	entries, err := p.codec.Extract(ctx, archiveAbs, dstAbs)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		p.recovered(r, entryRecord(dstAbs, e))
	}
	r.res.ArchivePath = archiveAbs
	return p.finish(r), nil
}

// VerifyBackup extracts an archive into a temporary directory and compares
// every entry with the corresponding file under src. Mismatches and missing
// files are reported in the result's Errors.
func (p *Pipeline) VerifyBackup(ctx context.Context, archivePath, src string) (*types.RecoveryResult, error) {
	archiveAbs, srcAbs, err := resolvePair(archivePath, src)
	if err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp("", "salvage-verify-")
	if err != nil {
		return nil, fmt.Errorf("creating verification directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	r := p.begin(types.OpVerify, archiveAbs, srcAbs)
	entries, err := p.codec.Extract(ctx, archiveAbs, tmp)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		original := filepath.Join(srcAbs, filepath.FromSlash(e.Path))
		same, err := p.hasher.CompareFiles(ctx, filepath.Join(tmp, filepath.FromSlash(e.Path)), original)
		switch {
		case err != nil:
			p.fail(r, original, err)
		case !same:
			p.fail(r, original, types.ErrIntegrity)
		default:
			p.recovered(r, entryRecord(srcAbs, e))
		}
	}
	r.res.ArchivePath = archiveAbs
	return p.finish(r), nil
}

// RecoverDeleted is a placeholder. Recovering deleted files from unallocated
// space is not supported; the result is empty and marked Unsupported.
func (p *Pipeline) RecoverDeleted(_ context.Context, path string) (*types.RecoveryResult, error) {
	p.events.Warn(path, "deleted file recovery is not implemented")
	p.log.Warn("deleted file recovery requested", "path", path, "error", types.ErrNotImplemented)
	return &types.RecoveryResult{
		ID:             uuid.NewString(),
		Operation:      types.OpRecoverDeleted,
		Source:         path,
		RecoveredFiles: []types.FileRecord{},
		Errors:         []string{},
		Unsupported:    true,
	}, nil
}

// copyTree scans src and recreates it under dst.
func (p *Pipeline) copyTree(ctx context.Context, op types.Operation, src, dst string) (*types.RecoveryResult, error) {
	srcAbs, dstAbs, err := resolvePair(src, dst)
	if err != nil {
		return nil, err
	}
	if srcAbs == dstAbs {
		return nil, fmt.Errorf("%w: source and destination are both %s", types.ErrInvalidPath, srcAbs)
	}
	// A destination below the source shows up in the scan; its entries
	// are not copied into themselves.
	nested := within(dstAbs, srcAbs)
	if err := os.MkdirAll(dstAbs, 0o755); err != nil {
		return nil, fmt.Errorf("creating destination %s: %w", dstAbs, err)
	}

	r := p.begin(op, srcAbs, dstAbs)
	scan, err := p.scan(ctx, srcAbs, !p.opts.Verify)
	if err != nil {
		return nil, err
	}
	p.scanFailures(r, scan)

	var dirs []types.FileRecord
	for i, rec := range scan.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if nested && within(rec.Path, dstAbs) {
			continue
		}

		rel, err := filepath.Rel(srcAbs, rec.Path)
		if err != nil {
			p.fail(r, rec.Path, err)
			continue
		}
		target := filepath.Join(dstAbs, rel)

		if err := p.copyEntry(ctx, rec, target); err != nil {
			p.fail(r, rec.Path, err)
			continue
		}
		if rec.IsDir {
			dirs = append(dirs, rec)
		}
		p.recovered(r, rec)
		p.events.Progress(rec.Path, "%d/%d", i+1, len(scan.Records))
	}

	// Directory times change as their contents are written, so they are
	// restored last and deepest first.
	if p.opts.PreserveTimestamps {
		slices.Reverse(dirs)
		for _, d := range dirs {
			rel, _ := filepath.Rel(srcAbs, d.Path)
			if err := os.Chtimes(filepath.Join(dstAbs, rel), d.Accessed, d.Modified); err != nil {
				p.log.Debug("cannot restore directory times", "path", d.Path, "error", err)
			}
		}
	}
	return p.finish(r), nil
}

// copyEntry recreates one scanned entry at target.
func (p *Pipeline) copyEntry(ctx context.Context, rec types.FileRecord, target string) error {
	switch {
	case rec.IsDir:
		return os.MkdirAll(target, 0o755)
	case rec.IsSymlink:
		return copySymlink(rec.Path, target)
	}

	info, err := os.Lstat(rec.Path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("unsupported file type %s", info.Mode().Type())
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := copyFile(ctx, rec.Path, target, info.Mode().Perm()); err != nil {
		return err
	}
	if p.opts.Verify {
		if err := p.verify(ctx, rec, target); err != nil {
			return err
		}
	}
	if p.opts.PreserveTimestamps {
		if err := os.Chtimes(target, rec.Accessed, rec.Modified); err != nil {
			return fmt.Errorf("restoring timestamps: %w", err)
		}
	}
	return nil
}

// verify compares the copy with its source. The scan digest is used for
// the source when present.
func (p *Pipeline) verify(ctx context.Context, rec types.FileRecord, target string) error {
	want := rec.Hash
	if want == "" {
		sum, err := p.hasher.HashFile(ctx, rec.Path)
		if err != nil {
			return err
		}
		want = sum
	}
	ok, err := p.hasher.VerifyFile(ctx, target, want)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s does not match its source", types.ErrIntegrity, target)
	}
	return nil
}

func (p *Pipeline) scan(ctx context.Context, root string, skipHash bool) (*scanner.Result, error) {
	opts := p.opts.Scan
	opts.Algorithm = p.opts.Algorithm
	opts.SkipHash = opts.SkipHash || skipHash
	if opts.Observer == nil {
		opts.Observer = p.opts.Observer
	}
	return scanner.Scan(ctx, root, opts)
}

// scanFailures carries entries the scanner could not read into the result
// and reports hidden entries the scan left out.
func (p *Pipeline) scanFailures(r *run, scan *scanner.Result) {
	for _, e := range scan.Errors {
		r.res.Errors = append(r.res.Errors, fmt.Sprintf("%s: %s", e.Path, e.Error))
	}
	if scan.HiddenSkipped > 0 {
		p.events.Warn(r.res.Source, "%d hidden entries skipped; set include_hidden to copy them", scan.HiddenSkipped)
		p.log.Info("hidden entries skipped", "source", r.res.Source, "count", scan.HiddenSkipped)
	}
}

func copyFile(ctx context.Context, src, dst string, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return out.Close()
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Symlink(link, dst)
}

// resolvePair validates and absolutizes an operation's two paths.
func resolvePair(a, b string) (string, string, error) {
	if err := types.ValidatePath(a); err != nil {
		return "", "", err
	}
	if err := types.ValidatePath(b); err != nil {
		return "", "", err
	}
	absA, err := filepath.Abs(a)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", a, err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", b, err)
	}
	return absA, absB, nil
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

func entryRecord(base string, e archive.Entry) types.FileRecord {
	p := filepath.Join(base, filepath.FromSlash(e.Path))
	return types.FileRecord{
		Path:     p,
		Size:     e.Size,
		Created:  e.Modified,
		Modified: e.Modified,
		Accessed: e.Modified,
		MimeType: types.MimeTypeOf(p),
		IsHidden: types.IsHiddenName(filepath.Base(p)),
	}
}
