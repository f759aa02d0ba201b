// Package search finds files by name, size, date, type, and content.
//
// A search scans the tree once and then narrows the records through a fixed
// pipeline: name, size, modified time, type, content. Each stage only removes
// records.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/logging"
	"github.com/jamesainslie/salvage/pkg/salvage/scanner"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// Result is the outcome of a search.
type Result struct {
	Matches      []types.FileRecord `json:"matches" yaml:"matches"`
	TotalMatches int                `json:"total_matches" yaml:"total_matches"`
	Elapsed      time.Duration      `json:"elapsed" yaml:"elapsed"`
	Query        *Query             `json:"query" yaml:"query"`
}

// NameGroup is a set of files sharing a base name.
type NameGroup struct {
	Name  string             `json:"name" yaml:"name"`
	Files []types.FileRecord `json:"files" yaml:"files"`
}

// Engine runs searches over scanned trees.
type Engine struct {
	scan   scanner.Options
	events *events.Emitter
	log    *logging.Logger
}

// New creates an Engine. opts controls the traversal; hashing is always
// disabled since no stage needs digests.
func New(opts scanner.Options, observer events.Observer) *Engine {
	opts.SkipHash = true
	opts.Observer = observer
	e := &Engine{
		scan: opts,
		log:  logging.Get("search"),
	}
	if observer != nil {
		e.events = events.NewEmitter(observer)
	}
	return e
}

// Search scans root and returns the records that pass every stage of q.
// An invalid query is reported before the tree is touched.
func (e *Engine) Search(ctx context.Context, root string, q *Query) (*Result, error) {
	start := time.Now()
	if q == nil {
		q = NewQuery()
	}
	if err := q.Compile(); err != nil {
		return nil, err
	}

	records, err := e.records(ctx, root)
	if err != nil {
		return nil, err
	}

	matches, err := e.Filter(ctx, records, q)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Matches:      matches,
		TotalMatches: len(matches),
		Elapsed:      time.Since(start),
		Query:        q,
	}
	e.log.Info("search complete", "root", root, "pattern", q.Pattern, "matches", res.TotalMatches, "elapsed", res.Elapsed)
	e.events.Info(root, "search complete: %d matches", res.TotalMatches)
	return res, nil
}

// Filter runs the query pipeline over already-scanned records.
func (e *Engine) Filter(ctx context.Context, records []types.FileRecord, q *Query) ([]types.FileRecord, error) {
	if err := q.Compile(); err != nil {
		return nil, err
	}

	out := lo.Filter(records, func(r types.FileRecord, _ int) bool {
		return q.Directories || !r.IsDir
	})

	if !q.Content {
		out = lo.Filter(out, func(r types.FileRecord, _ int) bool { return q.Match(r.Name()) })
	}
	out = lo.Filter(out, func(r types.FileRecord, _ int) bool { return q.sizeOK(r.Size) })
	out = lo.Filter(out, func(r types.FileRecord, _ int) bool { return q.modifiedOK(r.Modified) })
	if q.Type != "" {
		out = lo.Filter(out, func(r types.FileRecord, _ int) bool { return matchType(&r, q.Type) })
	}
	if q.Content && q.Pattern != "" {
		var err error
		out, err = e.contentStage(ctx, out, q)
		if err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []types.FileRecord{}
	}
	return out, nil
}

// FindDuplicateNames scans root and groups files by base name.
func (e *Engine) FindDuplicateNames(ctx context.Context, root string) ([]NameGroup, error) {
	records, err := e.records(ctx, root)
	if err != nil {
		return nil, err
	}
	return DuplicateNames(records), nil
}

// FindEmpty scans root and returns zero-length files.
func (e *Engine) FindEmpty(ctx context.Context, root string) ([]types.FileRecord, error) {
	records, err := e.records(ctx, root)
	if err != nil {
		return nil, err
	}
	return Empty(records), nil
}

// FindLarge scans root and returns files of at least threshold bytes, largest first.
func (e *Engine) FindLarge(ctx context.Context, root string, threshold uint64) ([]types.FileRecord, error) {
	records, err := e.records(ctx, root)
	if err != nil {
		return nil, err
	}
	return Large(records, threshold), nil
}

// DuplicateNames groups non-directory records by base name, keeping groups
// with two or more members in order of first occurrence. Names compare
// exactly; content is not considered.
func DuplicateNames(records []types.FileRecord) []NameGroup {
	files := lo.Filter(records, func(r types.FileRecord, _ int) bool { return !r.IsDir })

	groups := make([]NameGroup, 0)
	for _, members := range lo.PartitionBy(files, func(r types.FileRecord) string { return r.Name() }) {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, NameGroup{Name: members[0].Name(), Files: members})
	}
	return groups
}

// Empty returns the non-directory records of size zero.
func Empty(records []types.FileRecord) []types.FileRecord {
	return lo.Filter(records, func(r types.FileRecord, _ int) bool {
		return !r.IsDir && r.Size == 0
	})
}

// Large returns the non-directory records of at least threshold bytes,
// sorted descending by size. Ties keep scan order.
func Large(records []types.FileRecord, threshold uint64) []types.FileRecord {
	out := lo.Filter(records, func(r types.FileRecord, _ int) bool {
		return !r.IsDir && r.Size >= threshold
	})
	slices.SortStableFunc(out, func(x, y types.FileRecord) int {
		switch {
		case x.Size > y.Size:
			return -1
		case x.Size < y.Size:
			return 1
		}
		return 0
	})
	return out
}

func (e *Engine) records(ctx context.Context, root string) ([]types.FileRecord, error) {
	res, err := scanner.Scan(ctx, root, e.scan)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

func (q *Query) sizeOK(size uint64) bool {
	if size < q.MinSize {
		return false
	}
	return q.MaxSize == 0 || size <= q.MaxSize
}

func (q *Query) modifiedOK(t time.Time) bool {
	if !q.ModifiedAfter.IsZero() && t.Before(q.ModifiedAfter) {
		return false
	}
	if !q.ModifiedBefore.IsZero() && t.After(q.ModifiedBefore) {
		return false
	}
	return true
}

// contentStage keeps text files no larger than MaxContentSize whose content
// matches the pattern. Unreadable files are dropped with a warning.
func (e *Engine) contentStage(ctx context.Context, records []types.FileRecord, q *Query) ([]types.FileRecord, error) {
	var out []types.FileRecord
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &records[i]
		if rec.IsDir || rec.Size > MaxContentSize || !isText(rec) {
			continue
		}

		data, err := readLimited(rec.Path, MaxContentSize)
		if err != nil {
			e.events.Warn(rec.Path, "cannot read content: %v", err)
			e.log.Debug("content read failed", "path", rec.Path, "error", err)
			continue
		}
		if q.Match(string(data)) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

var errTooLarge = errors.New("file exceeds content search limit")

// readLimited reads at most limit bytes of path. A file that grew past the
// limit since it was scanned is an error.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}
