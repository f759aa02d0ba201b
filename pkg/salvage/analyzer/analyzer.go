// Package analyzer derives statistics, duplicate groups, suspicious files,
// and an event timeline from scan records. It never touches the filesystem.
package analyzer

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/logging"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// NoExtension is the histogram key for files without an extension.
const NoExtension = "(none)"

// DefaultTopN is the number of largest files reported.
const DefaultTopN = 10

// Analyzer computes an AnalysisResult from records.
type Analyzer struct {
	rules  []Rule
	now    func() time.Time
	topN   int
	events *events.Emitter
	log    *logging.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRules replaces the suspicious-file policy table.
func WithRules(rules ...Rule) Option {
	return func(a *Analyzer) {
		a.rules = rules
	}
}

// WithClock sets the source of "now" for timestamp heuristics.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTopN sets how many largest files are reported.
// Values below 1 keep the default.
func WithTopN(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.topN = n
		}
	}
}

// WithObserver attaches an event observer.
func WithObserver(o events.Observer) Option {
	return func(a *Analyzer) {
		if o != nil {
			a.events = events.NewEmitter(o)
		}
	}
}

// New creates an Analyzer with the default rules.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		rules: DefaultRules(),
		now:   time.Now,
		topN:  DefaultTopN,
		log:   logging.Get("analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs every pass over records. Records are not modified.
func (a *Analyzer) Analyze(records []types.FileRecord) *types.AnalysisResult {
	now := a.now()
	a.events.Info("", "analyzing %d records", len(records))

	res := &types.AnalysisResult{
		Extensions: make(map[string]int),
		AnalyzedAt: now,
	}
	a.statistics(records, res)
	res.LargestFiles = a.Largest(records)
	res.Duplicates = Duplicates(records)
	res.Suspicious = a.Suspicious(records)
	res.Timeline = Timeline(records)

	a.log.Info("analysis complete",
		"files", res.TotalFiles,
		"directories", res.TotalDirectories,
		"duplicate_groups", len(res.Duplicates),
		"suspicious", len(res.Suspicious))
	a.events.Info("", "analysis complete: %d duplicate groups, %d suspicious files",
		len(res.Duplicates), len(res.Suspicious))
	return res
}

// statistics computes totals and the extension histogram in one pass.
// Directories count only toward TotalDirectories.
func (a *Analyzer) statistics(records []types.FileRecord, res *types.AnalysisResult) {
	for i := range records {
		rec := &records[i]
		if rec.IsDir {
			res.TotalDirectories++
			continue
		}
		res.TotalFiles++
		res.TotalSize += rec.Size

		ext := rec.Ext()
		if ext == "" {
			ext = NoExtension
		}
		res.Extensions[ext]++
	}
}

// Largest returns the topN biggest non-directory records, descending.
// Ties keep scan order.
func (a *Analyzer) Largest(records []types.FileRecord) []types.FileRecord {
	files := lo.Filter(records, func(r types.FileRecord, _ int) bool { return !r.IsDir })
	slices.SortStableFunc(files, func(x, y types.FileRecord) int {
		switch {
		case x.Size > y.Size:
			return -1
		case x.Size < y.Size:
			return 1
		}
		return 0
	})
	if len(files) > a.topN {
		files = files[:a.topN]
	}
	return files
}

// Duplicates groups non-directory, non-empty, hashed records by content hash
// and returns the groups with two or more members, ordered by first occurrence.
func Duplicates(records []types.FileRecord) []types.DuplicateGroup {
	candidates := lo.Filter(records, func(r types.FileRecord, _ int) bool {
		return !r.IsDir && r.Size > 0 && r.Hash != ""
	})

	groups := make([]types.DuplicateGroup, 0)
	for _, members := range lo.PartitionBy(candidates, func(r types.FileRecord) string { return r.Hash }) {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, types.DuplicateGroup{
			Hash:  members[0].Hash,
			Size:  members[0].Size,
			Files: members,
		})
	}
	return groups
}

// Suspicious evaluates every rule against every non-directory record.
// A file is listed once with one reason per rule that fired.
func (a *Analyzer) Suspicious(records []types.FileRecord) []types.SuspiciousFile {
	now := a.now()
	out := make([]types.SuspiciousFile, 0)

	for i := range records {
		rec := &records[i]
		if rec.IsDir {
			continue
		}

		var reasons []string
		for _, rule := range a.rules {
			if reason, flagged := rule.Check(rec, now); flagged {
				reasons = append(reasons, reason)
			}
		}
		if len(reasons) == 0 {
			continue
		}

		out = append(out, types.SuspiciousFile{Record: *rec, Reasons: reasons})
		a.events.Warn(rec.Path, "suspicious: %v", reasons)
	}
	return out
}

// Timeline reconstructs created, modified, and accessed events for every
// record. Modified is emitted only when it differs from created, accessed
// only when it differs from modified. Entries are sorted ascending; equal
// times keep record order.
func Timeline(records []types.FileRecord) []types.TimelineEntry {
	out := make([]types.TimelineEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, types.TimelineEntry{Time: rec.Created, Kind: types.EventCreated, Record: rec})
		if !rec.Modified.Equal(rec.Created) {
			out = append(out, types.TimelineEntry{Time: rec.Modified, Kind: types.EventModified, Record: rec})
		}
		if !rec.Accessed.Equal(rec.Modified) {
			out = append(out, types.TimelineEntry{Time: rec.Accessed, Kind: types.EventAccessed, Record: rec})
		}
	}
	slices.SortStableFunc(out, func(x, y types.TimelineEntry) int {
		return x.Time.Compare(y.Time)
	})
	return out
}
