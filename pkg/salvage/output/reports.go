package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/salvage/pkg/salvage/archive"
	"github.com/jamesainslie/salvage/pkg/salvage/hasher"
	"github.com/jamesainslie/salvage/pkg/salvage/journal"
	"github.com/jamesainslie/salvage/pkg/salvage/scanner"
	"github.com/jamesainslie/salvage/pkg/salvage/search"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// TimeLayout is used for every timestamp in text output.
const TimeLayout = "2006-01-02 15:04:05"

// hashWidth is the number of digest characters shown in tables.
const hashWidth = 12

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(TimeLayout)
}

func short(digest string) string {
	if digest == "" {
		return "-"
	}
	if len(digest) > hashWidth {
		return digest[:hashWidth]
	}
	return digest
}

func size(n uint64) string {
	return humanize.IBytes(n)
}

func kind(r *types.FileRecord) string {
	switch {
	case r.IsDir:
		return "dir"
	case r.IsSymlink:
		return "link"
	default:
		return "file"
	}
}

func filePaths(records []types.FileRecord) []string {
	out := make([]string, 0, len(records))
	for i := range records {
		if !records[i].IsDir {
			out = append(out, records[i].Path)
		}
	}
	return out
}

func recordRows(records []types.FileRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for i := range records {
		r := &records[i]
		rows = append(rows, []string{r.Path, kind(r), size(r.Size), stamp(r.Modified), r.Permissions, short(r.Hash)})
	}
	return rows
}

var recordHeader = []string{"PATH", "TYPE", "SIZE", "MODIFIED", "MODE", "HASH"}

// ScanReport is the result of scanning one root.
type ScanReport struct {
	Root           string `json:"root" yaml:"root"`
	scanner.Result `yaml:",inline"`
}

// Table implements Report.
func (r *ScanReport) Table() Table {
	footer := []string{fmt.Sprintf("Scanned %s files in %s directories, %s total, in %s",
		humanize.Comma(r.FilesScanned), humanize.Comma(r.DirsScanned), size(r.TotalSize), r.Elapsed.Round(time.Millisecond))}
	if r.CacheHits > 0 {
		footer = append(footer, fmt.Sprintf("%s digests served from cache", humanize.Comma(r.CacheHits)))
	}
	for _, e := range r.Errors {
		footer = append(footer, fmt.Sprintf("error: %s: %s", e.Path, e.Error))
	}
	return Table{
		Header: recordHeader,
		Rows:   recordRows(r.Records),
		Footer: footer,
		Paths:  filePaths(r.Records),
	}
}

// AnalysisReport is the result of analyzing one root.
type AnalysisReport struct {
	Root                 string `json:"root" yaml:"root"`
	types.AnalysisResult `yaml:",inline"`

	// Recent holds the newest timeline entries, newest first.
	Recent []types.TimelineEntry `json:"recent" yaml:"recent"`
}

// Table implements Report.
func (r *AnalysisReport) Table() Table {
	var rows [][]string
	var paths []string
	for i := range r.LargestFiles {
		f := &r.LargestFiles[i]
		rows = append(rows, []string{"largest", f.Path, size(f.Size), ""})
	}
	for i := range r.Duplicates {
		g := &r.Duplicates[i]
		for j := range g.Files {
			rows = append(rows, []string{"duplicate", g.Files[j].Path, size(g.Size), short(g.Hash)})
		}
	}
	for i := range r.Suspicious {
		s := &r.Suspicious[i]
		rows = append(rows, []string{"suspicious", s.Record.Path, size(s.Record.Size), strings.Join(s.Reasons, "; ")})
		paths = append(paths, s.Record.Path)
	}
	for i := range r.Recent {
		e := &r.Recent[i]
		rows = append(rows, []string{"recent", e.Record.Path, string(e.Kind), stamp(e.Time)})
	}

	var wasted uint64
	for i := range r.Duplicates {
		wasted += r.Duplicates[i].Wasted()
	}
	footer := []string{
		fmt.Sprintf("%s files, %s directories, %s total",
			humanize.Comma(int64(r.TotalFiles)), humanize.Comma(int64(r.TotalDirectories)), size(r.TotalSize)),
		fmt.Sprintf("%d duplicate groups (%s reclaimable), %d suspicious files",
			len(r.Duplicates), size(wasted), len(r.Suspicious)),
	}
	if top := topExtensions(r.Extensions, 5); top != "" {
		footer = append(footer, "extensions: "+top)
	}

	return Table{
		Header: []string{"SECTION", "PATH", "SIZE", "DETAIL"},
		Rows:   rows,
		Footer: footer,
		Paths:  paths,
	}
}

// topExtensions renders the n most common extensions, most frequent first.
func topExtensions(counts map[string]int, n int) string {
	exts := make([]string, 0, len(counts))
	for ext := range counts {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if counts[exts[i]] != counts[exts[j]] {
			return counts[exts[i]] > counts[exts[j]]
		}
		return exts[i] < exts[j]
	})
	if len(exts) > n {
		exts = exts[:n]
	}
	parts := make([]string, len(exts))
	for i, ext := range exts {
		parts[i] = ext + "=" + strconv.Itoa(counts[ext])
	}
	return strings.Join(parts, " ")
}

// SearchReport is the result of a query.
type SearchReport struct {
	Root          string `json:"root" yaml:"root"`
	search.Result `yaml:",inline"`
}

// Table implements Report.
func (r *SearchReport) Table() Table {
	return Table{
		Header: recordHeader,
		Rows:   recordRows(r.Matches),
		Footer: []string{fmt.Sprintf("%d matches in %s", r.TotalMatches, r.Elapsed.Round(time.Millisecond))},
		Paths:  filePaths(r.Matches),
	}
}

// FilesReport is a titled list of records.
type FilesReport struct {
	Title string             `json:"title" yaml:"title"`
	Files []types.FileRecord `json:"files" yaml:"files"`
}

// Table implements Report.
func (r *FilesReport) Table() Table {
	var total uint64
	for i := range r.Files {
		total += r.Files[i].Size
	}
	return Table{
		Header: recordHeader,
		Rows:   recordRows(r.Files),
		Footer: []string{fmt.Sprintf("%s: %d files, %s", r.Title, len(r.Files), size(total))},
		Paths:  filePaths(r.Files),
	}
}

// NameGroupsReport lists files that share a base name.
type NameGroupsReport struct {
	Groups []search.NameGroup `json:"groups" yaml:"groups"`
}

// Table implements Report.
func (r *NameGroupsReport) Table() Table {
	var rows [][]string
	var paths []string
	for _, g := range r.Groups {
		for i := range g.Files {
			f := &g.Files[i]
			rows = append(rows, []string{g.Name, f.Path, size(f.Size), stamp(f.Modified)})
			paths = append(paths, f.Path)
		}
	}
	return Table{
		Header: []string{"NAME", "PATH", "SIZE", "MODIFIED"},
		Rows:   rows,
		Footer: []string{fmt.Sprintf("%d names shared by %d files", len(r.Groups), len(paths))},
		Paths:  paths,
	}
}

// RecoveryReport is the outcome of a pipeline run.
type RecoveryReport struct {
	types.RecoveryResult `yaml:",inline"`
}

// Table implements Report.
func (r *RecoveryReport) Table() Table {
	rows := make([][]string, 0, len(r.RecoveredFiles))
	for i := range r.RecoveredFiles {
		f := &r.RecoveredFiles[i]
		rows = append(rows, []string{f.Path, size(f.Size), short(f.Hash)})
	}

	status := "ok"
	switch {
	case r.Unsupported:
		status = "unsupported"
	case !r.Success:
		status = "completed with errors"
	}
	footer := []string{fmt.Sprintf("%s %s: %d files, %s in %s",
		r.Operation, status, r.TotalFiles, size(r.TotalBytes), r.Duration.Round(time.Millisecond))}
	if r.ArchivePath != "" {
		footer = append(footer, "archive: "+r.ArchivePath)
	}
	for _, e := range r.Errors {
		footer = append(footer, "error: "+e)
	}

	return Table{
		Header: []string{"PATH", "SIZE", "HASH"},
		Rows:   rows,
		Footer: footer,
		Paths:  filePaths(r.RecoveredFiles),
	}
}

// ArchiveReport lists the entries of an archive.
type ArchiveReport struct {
	Archive string          `json:"archive" yaml:"archive"`
	Entries []archive.Entry `json:"entries" yaml:"entries"`
}

// Table implements Report.
func (r *ArchiveReport) Table() Table {
	rows := make([][]string, 0, len(r.Entries))
	paths := make([]string, 0, len(r.Entries))
	var original, compressed uint64
	for _, e := range r.Entries {
		rows = append(rows, []string{e.Path, size(e.Size), size(e.CompressedSize), stamp(e.Modified)})
		paths = append(paths, e.Path)
		original += e.Size
		compressed += e.CompressedSize
	}
	return Table{
		Header: []string{"PATH", "SIZE", "COMPRESSED", "MODIFIED"},
		Rows:   rows,
		Footer: []string{fmt.Sprintf("%d entries, %s (%s compressed)", len(r.Entries), size(original), size(compressed))},
		Paths:  paths,
	}
}

// Digest pairs a path with its content digest.
type Digest struct {
	Path   string `json:"path" yaml:"path"`
	Digest string `json:"digest" yaml:"digest"`
}

// DigestReport lists computed digests.
type DigestReport struct {
	Algorithm hasher.Algorithm `json:"algorithm" yaml:"algorithm"`
	Digests   []Digest         `json:"digests" yaml:"digests"`
}

// Table implements Report. Rows use the "digest  path" layout of sha256sum.
func (r *DigestReport) Table() Table {
	rows := make([][]string, 0, len(r.Digests))
	paths := make([]string, 0, len(r.Digests))
	for _, d := range r.Digests {
		rows = append(rows, []string{d.Digest, d.Path})
		paths = append(paths, d.Path)
	}
	return Table{Rows: rows, Paths: paths}
}

// CheckReport is a single pass/fail verdict.
type CheckReport struct {
	Subject string `json:"subject" yaml:"subject"`
	OK      bool   `json:"ok" yaml:"ok"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Table implements Report.
func (r *CheckReport) Table() Table {
	verdict := "OK"
	if !r.OK {
		verdict = "FAILED"
	}
	line := fmt.Sprintf("%s: %s", r.Subject, verdict)
	if r.Detail != "" {
		line += " (" + r.Detail + ")"
	}
	return Table{Footer: []string{line}, Paths: []string{r.Subject}}
}

// ManifestReport is the outcome of verifying a manifest.
type ManifestReport struct {
	Manifest            string `json:"manifest" yaml:"manifest"`
	hasher.VerifyReport `yaml:",inline"`
}

// Table implements Report.
func (r *ManifestReport) Table() Table {
	rows := make([][]string, 0, len(r.Verified)+len(r.Failures))
	for _, p := range r.Verified {
		rows = append(rows, []string{"OK", p, ""})
	}
	paths := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		detail := f.Err
		if detail == "" {
			detail = "digest mismatch"
		}
		rows = append(rows, []string{"FAILED", f.Path, detail})
		paths = append(paths, f.Path)
	}
	return Table{
		Header: []string{"STATUS", "PATH", "DETAIL"},
		Rows:   rows,
		Footer: []string{fmt.Sprintf("%d verified, %d failed", len(r.Verified), len(r.Failures))},
		Paths:  paths,
	}
}

// HistoryReport lists journal entries, newest first.
type HistoryReport struct {
	Entries []journal.Entry `json:"entries" yaml:"entries"`
}

// Table implements Report.
func (r *HistoryReport) Table() Table {
	rows := make([][]string, 0, len(r.Entries))
	for i := range r.Entries {
		e := &r.Entries[i]
		status := "ok"
		if !e.Result.Success {
			status = fmt.Sprintf("%d errors", len(e.Result.Errors))
		}
		rows = append(rows, []string{
			e.ID(),
			stamp(e.Timestamp),
			string(e.Result.Operation),
			strconv.Itoa(e.Result.TotalFiles),
			size(e.Result.TotalBytes),
			status,
			e.Result.Source,
		})
	}
	return Table{
		Header: []string{"ID", "TIME", "OPERATION", "FILES", "SIZE", "STATUS", "SOURCE"},
		Rows:   rows,
	}
}

// TimelineReport lists timeline events.
type TimelineReport struct {
	Entries []types.TimelineEntry `json:"entries" yaml:"entries"`

	// Bare omits the header, for streaming one event at a time.
	Bare bool `json:"-" yaml:"-"`
}

// Table implements Report.
func (r *TimelineReport) Table() Table {
	rows := make([][]string, 0, len(r.Entries))
	paths := make([]string, 0, len(r.Entries))
	for i := range r.Entries {
		e := &r.Entries[i]
		rows = append(rows, []string{stamp(e.Time), string(e.Kind), e.Record.Path})
		paths = append(paths, e.Record.Path)
	}
	t := Table{Rows: rows, Paths: paths}
	if !r.Bare {
		t.Header = []string{"TIME", "EVENT", "PATH"}
	}
	return t
}

var (
	_ Report = (*ScanReport)(nil)
	_ Report = (*AnalysisReport)(nil)
	_ Report = (*SearchReport)(nil)
	_ Report = (*FilesReport)(nil)
	_ Report = (*NameGroupsReport)(nil)
	_ Report = (*RecoveryReport)(nil)
	_ Report = (*ArchiveReport)(nil)
	_ Report = (*DigestReport)(nil)
	_ Report = (*CheckReport)(nil)
	_ Report = (*ManifestReport)(nil)
	_ Report = (*HistoryReport)(nil)
	_ Report = (*TimelineReport)(nil)
)
