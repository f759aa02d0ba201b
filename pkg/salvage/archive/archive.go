// Package archive implements the salvage container format: a JSON manifest
// and independently compressed file payloads, wrapped in one more
// compression pass.
//
// Decompressed, the body of an archive is
//
//	[8 ASCII decimal digits: manifest length][manifest JSON][payload 1][payload 2]...
//
// where payload i is the gzip stream of the i-th manifest entry and its
// length is the entry's CompressedSize. There is no padding between payloads.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// FileExt is the conventional extension for salvage archives.
const FileExt = ".salv"

// headerLen is the width of the zero-padded manifest length prefix.
const headerLen = 8

// DefaultLevel is the gzip level used when none is configured.
const DefaultLevel = gzip.DefaultCompression

// maxManifestLen is the largest manifest the header can describe.
const maxManifestLen = 99_999_999

// Entry describes one file stored in an archive.
type Entry struct {
	// Path is slash-separated and relative to the archive's base directory.
	Path           string    `json:"relativePath"`
	Size           uint64    `json:"originalSize"`
	CompressedSize uint64    `json:"compressedSize"`
	Modified       time.Time `json:"modifiedAt"`
}

// Codec compresses and extracts archives.
type Codec struct {
	level  int
	events *events.Emitter
}

// Option configures a Codec.
type Option func(*Codec)

// WithLevel sets the gzip compression level.
func WithLevel(level int) Option {
	return func(c *Codec) {
		c.level = level
	}
}

// WithObserver attaches an event observer.
func WithObserver(o events.Observer) Option {
	return func(c *Codec) {
		if o != nil {
			c.events = events.NewEmitter(o)
		}
	}
}

// New creates a codec using DefaultLevel unless WithLevel is given.
func New(opts ...Option) *Codec {
	c := &Codec{level: DefaultLevel}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compress archives the regular files among paths into outputPath. Entry
// paths are recorded relative to baseDir, which must contain every file.
// Paths that are not regular files are skipped with a warning. Any I/O error
// aborts the whole operation; a partially written output is not removed.
func (c *Codec) Compress(ctx context.Context, paths []string, outputPath, baseDir string) ([]Entry, error) {
	if err := types.ValidatePath(outputPath); err != nil {
		return nil, err
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving base directory %s: %w", baseDir, err)
	}

	entries := make([]Entry, 0, len(paths))
	var payloads bytes.Buffer

	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, ok, err := c.appendFile(&payloads, p, base)
		if err != nil {
			return nil, fmt.Errorf("archiving %s into %s: %w", p, outputPath, err)
		}
		if !ok {
			continue
		}
		entries = append(entries, entry)
		c.events.Progress(p, "archived %d/%d", i+1, len(paths))
	}

	manifest, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest for %s: %w", outputPath, err)
	}
	if len(manifest) > maxManifestLen {
		return nil, fmt.Errorf("manifest for %s is %d bytes, limit is %d", outputPath, len(manifest), maxManifestLen)
	}

	var body bytes.Buffer
	body.Grow(headerLen + len(manifest) + payloads.Len())
	fmt.Fprintf(&body, "%0*d", headerLen, len(manifest))
	body.Write(manifest)
	body.Write(payloads.Bytes())

	outer, err := c.compress(body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compressing archive %s: %w", outputPath, err)
	}

	if err := writeAtomic(outputPath, outer); err != nil {
		return nil, fmt.Errorf("writing archive %s: %w", outputPath, err)
	}

	c.events.Info(outputPath, "archive written: %d files, %s", len(entries), types.FormatSize(int64(len(outer))))
	return entries, nil
}

// appendFile compresses one file onto payloads. ok is false when the path is
// skipped because it is not a regular file.
func (c *Codec) appendFile(payloads *bytes.Buffer, path, base string) (Entry, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, false, err
	}
	if !info.Mode().IsRegular() {
		c.events.Warn(path, "skipping non-regular file")
		return Entry{}, false, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, false, err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return Entry{}, false, err
	}
	rel = filepath.ToSlash(rel)
	if err := types.ValidateRelative(rel); err != nil {
		return Entry{}, false, fmt.Errorf("file is outside %s: %w", base, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return Entry{}, false, err
	}
	compressed, err := c.compress(data)
	if err != nil {
		return Entry{}, false, err
	}
	payloads.Write(compressed)

	return Entry{
		Path:           rel,
		Size:           uint64(len(data)),
		CompressedSize: uint64(len(compressed)),
		Modified:       info.ModTime(),
	}, true, nil
}

// Extract restores every file in the archive under outputDir and returns the
// manifest. Modification times are restored. Format errors wrap
// types.ErrCorruptArchive; files written before an error are left in place.
func (c *Codec) Extract(ctx context.Context, archivePath, outputDir string) ([]Entry, error) {
	if err := types.ValidatePath(outputDir); err != nil {
		return nil, err
	}
	entries, payloads, err := c.open(archivePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("extracting %s: %w", archivePath, err)
	}

	var offset uint64
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := offset + e.CompressedSize
		if end < offset || end > uint64(len(payloads)) {
			return nil, fmt.Errorf("extracting %s: %w: payload for %s exceeds archive body", archivePath, types.ErrCorruptArchive, e.Path)
		}

		data, err := decompress(payloads[offset:end])
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w: payload for %s: %v", archivePath, types.ErrCorruptArchive, e.Path, err)
		}
		if uint64(len(data)) != e.Size {
			return nil, fmt.Errorf("extracting %s: %w: %s is %d bytes, manifest says %d",
				archivePath, types.ErrCorruptArchive, e.Path, len(data), e.Size)
		}
		offset = end

		target := filepath.Join(outputDir, filepath.FromSlash(e.Path))
		if err := writeFile(target, data, e.Modified); err != nil {
			return nil, fmt.Errorf("extracting %s: %w", archivePath, err)
		}
		c.events.Progress(target, "extracted %d/%d", i+1, len(entries))
	}

	if offset != uint64(len(payloads)) {
		c.events.Warn(archivePath, "%d trailing bytes after last payload", uint64(len(payloads))-offset)
	}

	return entries, nil
}

// List returns the archive's manifest without decompressing any payload.
func (c *Codec) List(_ context.Context, archivePath string) ([]Entry, error) {
	entries, _, err := c.open(archivePath)
	return entries, err
}

// open reads and unwraps an archive, returning the validated manifest and the
// concatenated payload bytes that follow it.
func (c *Codec) open(archivePath string) ([]Entry, []byte, error) {
	if err := types.ValidatePath(archivePath); err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive %s: %w", archivePath, err)
	}

	body, err := decompress(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive %s: %w: %v", archivePath, types.ErrCorruptArchive, err)
	}

	entries, rest, err := parseBody(body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive %s: %w", archivePath, err)
	}
	return entries, rest, nil
}

// parseBody splits a decompressed body into manifest entries and payload bytes.
func parseBody(body []byte) ([]Entry, []byte, error) {
	if len(body) < headerLen {
		return nil, nil, fmt.Errorf("%w: body shorter than header", types.ErrCorruptArchive)
	}
	header := string(body[:headerLen])
	for _, r := range header {
		if r < '0' || r > '9' {
			return nil, nil, fmt.Errorf("%w: malformed length header %q", types.ErrCorruptArchive, header)
		}
	}
	n, err := strconv.Atoi(header)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: malformed length header %q", types.ErrCorruptArchive, header)
	}
	if headerLen+n > len(body) {
		return nil, nil, fmt.Errorf("%w: manifest length %d exceeds body", types.ErrCorruptArchive, n)
	}

	var entries []Entry
	if err := json.Unmarshal(body[headerLen:headerLen+n], &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: manifest: %v", types.ErrCorruptArchive, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	for _, e := range entries {
		if err := types.ValidateRelative(e.Path); err != nil {
			return nil, nil, err
		}
	}

	return entries, body[headerLen+n:], nil
}

func (c *Codec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	// A payload slice holds exactly one gzip member.
	zr.Multistream(false)
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func writeFile(path string, data []byte, modified time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	if modified.IsZero() {
		return nil
	}
	return os.Chtimes(path, modified, modified)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return nil
}
