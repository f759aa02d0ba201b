package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/salvage/pkg/salvage/scanner"
	"github.com/jamesainslie/salvage/pkg/salvage/search"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

func sampleFiles() []types.FileRecord {
	return []types.FileRecord{
		{Path: "/r/docs", IsDir: true, Permissions: "rwxr-xr-x"},
		{Path: "/r/docs/a.txt", Size: 10, Permissions: "rw-r--r--"},
		{Path: "/r/b.bin", Size: 1024, Permissions: "rw-------", Hash: "0123456789abcdef0123"},
	}
}

func render(t *testing.T, name string, r Report) string {
	t.Helper()
	out, err := Render(name, r)
	require.NoError(t, err)
	return string(out)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "null", "paths", "plain", "tsv", "yaml"}, Available())

	_, err := Get("html")
	assert.Error(t, err)

	reg := NewRegistry()
	assert.Empty(t, reg.Available())
	reg.Register("custom", func() Formatter { return &TSVFormatter{} })
	f, err := reg.Get("custom")
	require.NoError(t, err)
	assert.IsType(t, &TSVFormatter{}, f)
}

func TestTSV(t *testing.T) {
	out := render(t, "tsv", &FilesReport{Title: "large", Files: sampleFiles()})
	assert.Equal(t, strings.Join([]string{
		"PATH\tTYPE\tSIZE\tMODIFIED\tMODE\tHASH",
		"/r/docs\tdir\t0 B\t-\trwxr-xr-x\t-",
		"/r/docs/a.txt\tfile\t10 B\t-\trw-r--r--\t-",
		"/r/b.bin\tfile\t1.0 KiB\t-\trw-------\t0123456789ab",
	}, "\n")+"\n", out)
}

func TestPlainAlignsAndAppendsFooter(t *testing.T) {
	out := render(t, "plain", &FilesReport{Title: "large", Files: sampleFiles()})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 6)

	assert.True(t, strings.HasPrefix(lines[0], "PATH"))
	col := strings.Index(lines[0], "TYPE")
	for _, line := range lines[1:4] {
		assert.NotContains(t, line, "\t")
		assert.Equal(t, " ", line[col-1:col])
	}
	assert.Empty(t, lines[4])
	assert.Equal(t, "large: 3 files, 1.0 KiB", lines[5])
}

func TestPlainFooterOnly(t *testing.T) {
	out := render(t, "plain", &CheckReport{Subject: "/x", OK: false, Detail: "digest mismatch"})
	assert.Equal(t, "/x: FAILED (digest mismatch)\n", out)

	out = render(t, "plain", &CheckReport{Subject: "/x", OK: true})
	assert.Equal(t, "/x: OK\n", out)
}

func TestPathFormatsSkipDirectories(t *testing.T) {
	report := &FilesReport{Files: sampleFiles()}
	assert.Equal(t, "/r/docs/a.txt\n/r/b.bin\n", render(t, "paths", report))
	assert.Equal(t, "/r/docs/a.txt\x00/r/b.bin\x00", render(t, "null", report))
}

func TestJSONFlattensEmbeddedResult(t *testing.T) {
	report := &ScanReport{
		Root: "/r",
		Result: scanner.Result{
			Records:      sampleFiles(),
			FilesScanned: 2,
			DirsScanned:  1,
			TotalSize:    1034,
			Errors:       []types.ScanError{{Path: "/r/locked", Error: "permission denied"}},
		},
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(render(t, "json", report)), &decoded))
	assert.Equal(t, "/r", decoded["root"])
	assert.EqualValues(t, 2, decoded["files_scanned"])
	assert.Len(t, decoded["records"], 3)

	plain := render(t, "plain", report)
	assert.Contains(t, plain, "Scanned 2 files in 1 directories, 1.0 KiB total")
	assert.Contains(t, plain, "error: /r/locked: permission denied")
}

func TestYAMLInlinesEmbeddedResult(t *testing.T) {
	report := &SearchReport{
		Root:   "/r",
		Result: search.Result{Matches: sampleFiles()[1:], TotalMatches: 2, Query: search.NewQuery(search.WithPattern("a"))},
	}

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(render(t, "yaml", report)), &decoded))
	assert.Equal(t, "/r", decoded["root"])
	assert.Equal(t, 2, decoded["total_matches"])
	assert.NotContains(t, decoded, "result")
}

func TestRecoveryReport(t *testing.T) {
	report := &RecoveryReport{RecoveryResult: types.RecoveryResult{
		Operation:      types.OpBackup,
		Success:        false,
		RecoveredFiles: sampleFiles()[1:],
		Errors:         []string{"/r/c.txt: permission denied"},
		TotalFiles:     2,
		TotalBytes:     1034,
		ArchivePath:    "/out/backup.salv",
	}}

	tbl := report.Table()
	assert.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{
		"backup completed with errors: 2 files, 1.0 KiB in 0s",
		"archive: /out/backup.salv",
		"error: /r/c.txt: permission denied",
	}, tbl.Footer)

	report.Unsupported = true
	assert.Contains(t, report.Table().Footer[0], "unsupported")
}

func TestAnalysisReport(t *testing.T) {
	files := sampleFiles()
	report := &AnalysisReport{
		Root: "/r",
		AnalysisResult: types.AnalysisResult{
			TotalFiles:   2,
			TotalSize:    1034,
			Extensions:   map[string]int{".txt": 3, ".bin": 1, ".go": 3},
			LargestFiles: files[1:],
			Duplicates: []types.DuplicateGroup{
				{Hash: "h", Size: 10, Files: []types.FileRecord{files[1], files[1]}},
			},
			Suspicious: []types.SuspiciousFile{{Record: files[2], Reasons: []string{"a", "b"}}},
		},
	}

	tbl := report.Table()
	sections := make([]string, len(tbl.Rows))
	for i, row := range tbl.Rows {
		sections[i] = row[0]
	}
	assert.Equal(t, []string{"largest", "largest", "duplicate", "duplicate", "suspicious"}, sections)
	assert.Equal(t, "a; b", tbl.Rows[4][3])
	assert.Equal(t, []string{"/r/b.bin"}, tbl.Paths)
	assert.Contains(t, tbl.Footer[1], "1 duplicate groups (10 B reclaimable)")
	assert.Equal(t, "extensions: .go=3 .txt=3 .bin=1", tbl.Footer[2])
}

func TestDigestReportMatchesChecksumLayout(t *testing.T) {
	report := &DigestReport{Digests: []Digest{{Path: "/r/a", Digest: "abc"}}}
	assert.Equal(t, "abc  /r/a\n", render(t, "plain", report))
}

func TestTimelineReportBare(t *testing.T) {
	entry := types.TimelineEntry{Kind: types.EventCreated, Record: types.FileRecord{Path: "/r/new"}}

	full := &TimelineReport{Entries: []types.TimelineEntry{entry}}
	assert.Equal(t, []string{"TIME", "EVENT", "PATH"}, full.Table().Header)

	bare := &TimelineReport{Entries: []types.TimelineEntry{entry}, Bare: true}
	assert.Equal(t, "-\tcreated\t/r/new\n", render(t, "tsv", bare))
}

func TestFormatterWritesToBuffer(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("prefix\n")
	require.NoError(t, (&PathsFormatter{}).Format(&buf, &FilesReport{Files: sampleFiles()[1:2]}))
	assert.Equal(t, "prefix\n/r/docs/a.txt\n", buf.String())
}

func TestStampAndShort(t *testing.T) {
	assert.Equal(t, "-", stamp(time.Time{}))
	assert.Equal(t, "-", short(""))
	assert.Equal(t, "abc", short("abc"))
}
