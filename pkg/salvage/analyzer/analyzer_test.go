package analyzer

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// file builds a record with all three timestamps set to one recent instant.
func file(path string, size uint64, hash string) types.FileRecord {
	ts := fixedNow.Add(-time.Hour)
	return types.FileRecord{
		Path:     path,
		Size:     size,
		Hash:     hash,
		Created:  ts,
		Modified: ts,
		Accessed: ts,
		IsHidden: types.IsHiddenName(filepath.Base(path)),
	}
}

func dir(path string) types.FileRecord {
	r := file(path, 0, "")
	r.IsDir = true
	return r
}

func paths(records []types.FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out
}

func TestStatistics(t *testing.T) {
	records := []types.FileRecord{
		dir("/r/sub"),
		file("/r/a.TXT", 10, "h1"),
		file("/r/b.txt", 20, "h2"),
		file("/r/Makefile", 5, "h3"),
		file("/r/sub/c.go", 7, "h4"),
	}

	res := New(WithClock(clock)).Analyze(records)

	assert.Equal(t, 4, res.TotalFiles)
	assert.Equal(t, 1, res.TotalDirectories)
	assert.Equal(t, uint64(42), res.TotalSize)
	assert.Equal(t, map[string]int{".txt": 2, NoExtension: 1, ".go": 1}, res.Extensions)
	assert.Equal(t, fixedNow, res.AnalyzedAt)
}

func TestDuplicatesByHashOnly(t *testing.T) {
	a := file("/r/a.txt", 100, "same")
	b := file("/r/other/b.dat", 100, "same")
	c := file("/r/a-copy.txt", 100, "different")

	groups := Duplicates([]types.FileRecord{a, c, b})

	require.Len(t, groups, 1)
	assert.Equal(t, "same", groups[0].Hash)
	assert.Equal(t, []string{"/r/a.txt", "/r/other/b.dat"}, paths(groups[0].Files))
	assert.Equal(t, uint64(100), groups[0].Wasted())
}

func TestDuplicatesExcludesEmptyUnhashedAndDirs(t *testing.T) {
	records := []types.FileRecord{
		file("/r/e1", 0, "emptyhash"),
		file("/r/e2", 0, "emptyhash"),
		file("/r/u1", 5, ""),
		file("/r/u2", 5, ""),
		dir("/r/d1"),
		dir("/r/d2"),
	}
	assert.Empty(t, Duplicates(records))
}

func TestDuplicatesOrderedByFirstOccurrence(t *testing.T) {
	records := []types.FileRecord{
		file("/r/x1", 1, "x"),
		file("/r/y1", 2, "y"),
		file("/r/x2", 1, "x"),
		file("/r/y2", 2, "y"),
		file("/r/y3", 2, "y"),
	}
	groups := Duplicates(records)
	require.Len(t, groups, 2)
	assert.Equal(t, "x", groups[0].Hash)
	assert.Equal(t, "y", groups[1].Hash)
	assert.Len(t, groups[1].Files, 3)
	assert.Equal(t, uint64(4), groups[1].Wasted())
}

func TestLargestTopTenStable(t *testing.T) {
	var records []types.FileRecord
	for i := 0; i < 15; i++ {
		records = append(records, file(fmt.Sprintf("/r/f%02d", i), uint64(i%5), ""))
	}
	records = append(records, dir("/r/huge-dir"))

	largest := New().Largest(records)
	require.Len(t, largest, 10)
	assert.Equal(t, []string{
		"/r/f04", "/r/f09", "/r/f14",
		"/r/f03", "/r/f08", "/r/f13",
		"/r/f02", "/r/f07", "/r/f12",
		"/r/f01",
	}, paths(largest))

	assert.Len(t, New(WithTopN(3)).Largest(records), 3)
}

func TestSuspiciousScenario(t *testing.T) {
	secret := file("/r/.secret_data", uint64(2*types.MiB), "")
	notes := file("/r/notes.txt", 10, "")

	found := New(WithClock(clock)).Suspicious([]types.FileRecord{secret, notes})

	require.Len(t, found, 1)
	assert.Equal(t, "/r/.secret_data", found[0].Record.Path)
	assert.GreaterOrEqual(t, len(found[0].Reasons), 2)
	assert.Contains(t, found[0].Reasons[0], "secret")
	assert.Contains(t, found[0].Reasons[1], "hidden")
}

func TestRules(t *testing.T) {
	recent := fixedNow.Add(-24 * time.Hour)
	tests := []struct {
		name    string
		rule    Rule
		rec     types.FileRecord
		flagged bool
	}{
		{name: "exe", rule: NewExtensionRule(DefaultExecutableExtensions...), rec: types.FileRecord{Path: "/x/SETUP.EXE"}, flagged: true},
		{name: "bare ext", rule: NewExtensionRule("bat"), rec: types.FileRecord{Path: "/x/run.bat"}, flagged: true},
		{name: "text", rule: NewExtensionRule(DefaultExecutableExtensions...), rec: types.FileRecord{Path: "/x/a.txt"}},
		{name: "password name", rule: NewNameRule(DefaultSensitiveNames...), rec: types.FileRecord{Path: "/x/My_Passwords.txt"}, flagged: true},
		{name: "plain name", rule: NewNameRule(DefaultSensitiveNames...), rec: types.FileRecord{Path: "/x/notes.txt"}},
		{name: "hidden large", rule: HiddenSizeRule{Threshold: 100}, rec: types.FileRecord{Path: "/x/.big", Size: 101, IsHidden: true}, flagged: true},
		{name: "hidden at threshold", rule: HiddenSizeRule{Threshold: 100}, rec: types.FileRecord{Path: "/x/.big", Size: 100, IsHidden: true}},
		{name: "visible large", rule: HiddenSizeRule{Threshold: 100}, rec: types.FileRecord{Path: "/x/big", Size: 1000}},
		{name: "old", rule: TimestampRule{Window: DefaultTimestampWindow}, rec: types.FileRecord{Modified: fixedNow.AddDate(-2, 0, 0)}, flagged: true},
		{name: "future", rule: TimestampRule{Window: DefaultTimestampWindow}, rec: types.FileRecord{Modified: fixedNow.AddDate(1, 1, 0)}, flagged: true},
		{name: "recent", rule: TimestampRule{Window: DefaultTimestampWindow}, rec: types.FileRecord{Modified: recent}},
		{name: "unknown time", rule: TimestampRule{Window: DefaultTimestampWindow}, rec: types.FileRecord{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, flagged := tt.rule.Check(&tt.rec, fixedNow)
			assert.Equal(t, tt.flagged, flagged)
			if flagged {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestWithRulesReplacesPolicyTable(t *testing.T) {
	rec := file("/r/password.exe", 1, "")
	found := New(WithClock(clock), WithRules(NewExtensionRule(".exe"))).Suspicious([]types.FileRecord{rec})
	require.Len(t, found, 1)
	assert.Len(t, found[0].Reasons, 1)

	assert.Empty(t, New(WithRules()).Suspicious([]types.FileRecord{rec}))
}

func TestRulesByName(t *testing.T) {
	rules, err := RulesByName("timestamp", "extension")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "extension", rules[0].Name())
	assert.Equal(t, "timestamp", rules[1].Name())

	_, err = RulesByName("nope")
	assert.Error(t, err)
}

func TestTimeline(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	same := types.FileRecord{Path: "/same", Created: t0.Add(time.Hour), Modified: t0.Add(time.Hour), Accessed: t0.Add(time.Hour)}
	all := types.FileRecord{Path: "/all", Created: t0, Modified: t0.Add(2 * time.Hour), Accessed: t0.Add(3 * time.Hour)}
	accessedOnly := types.FileRecord{Path: "/acc", Created: t0.Add(30 * time.Minute), Modified: t0.Add(30 * time.Minute), Accessed: t0.Add(90 * time.Minute)}

	timeline := Timeline([]types.FileRecord{same, all, accessedOnly})

	type ev struct {
		path string
		kind types.EventKind
	}
	got := make([]ev, len(timeline))
	for i, e := range timeline {
		got[i] = ev{e.Record.Path, e.Kind}
	}
	assert.Equal(t, []ev{
		{"/all", types.EventCreated},
		{"/acc", types.EventCreated},
		{"/same", types.EventCreated},
		{"/acc", types.EventAccessed},
		{"/all", types.EventModified},
		{"/all", types.EventAccessed},
	}, got)

	for i := 1; i < len(timeline); i++ {
		assert.False(t, timeline[i].Time.Before(timeline[i-1].Time))
	}

	recent := types.Recent(timeline, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, types.EventAccessed, recent[0].Kind)
	assert.Equal(t, "/all", recent[0].Record.Path)
}

func TestAnalyzeEmitsEvents(t *testing.T) {
	rec := &events.Recorder{}
	secret := file("/r/.secret_data", uint64(2*types.MiB), "")

	res := New(WithClock(clock), WithObserver(rec)).Analyze([]types.FileRecord{secret})

	assert.Len(t, res.Suspicious, 1)
	assert.Len(t, rec.OfKind(events.KindInfo), 2)
	assert.Len(t, rec.OfKind(events.KindWarning), 1)
}

func TestAnalyzeEmpty(t *testing.T) {
	res := New().Analyze(nil)
	assert.Zero(t, res.TotalFiles)
	assert.Empty(t, res.Extensions)
	assert.Empty(t, res.LargestFiles)
	assert.Empty(t, res.Duplicates)
	assert.Empty(t, res.Suspicious)
	assert.Empty(t, res.Timeline)
}
