package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/salvage/pkg/salvage/search"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// env is an isolated config, journal, and source tree for running commands.
type env struct {
	t       *testing.T
	dir     string
	cfgPath string
	src     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{t: t, dir: dir, cfgPath: filepath.Join(dir, "config.yaml"), src: filepath.Join(dir, "src")}

	cfgYAML := "cache:\n  enabled: false\n  path: " + filepath.Join(dir, "cache") +
		"\njournal:\n  path: " + filepath.Join(dir, "journal") +
		"\nlogging:\n  path: \"-\"\n"
	require.NoError(t, os.WriteFile(e.cfgPath, []byte(cfgYAML), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(e.src, "sub"), 0o755))
	e.write("a.txt", "alpha report")
	e.write("sub/b.txt", "bravo")
	e.write("sub/empty.log", "")
	return e
}

func (e *env) write(rel, content string) {
	e.t.Helper()
	require.NoError(e.t, os.WriteFile(filepath.Join(e.src, rel), []byte(content), 0o644))
}

// run executes the CLI with the env's config and the given output format.
func (e *env) run(format string, args ...string) (string, error) {
	e.t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append(args, "--config", e.cfgPath, "-o", format))
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestParseCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"extension", []string{"extension"}},
		{" extension , timestamp ,", []string{"extension", "timestamp"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCommaSeparated(tt.input), tt.input)
	}
}

func TestPathArg(t *testing.T) {
	assert.Equal(t, ".", pathArg(nil, 0, "."))
	assert.Equal(t, "/x", pathArg([]string{"/x"}, 0, "."))
	assert.Equal(t, "out", pathArg([]string{"/x"}, 1, "out"))
}

func TestBuildQuery(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	q, err := buildQuery(searchFlags{
		pattern:  "^IMG",
		mode:     "regex",
		minSize:  "1K",
		maxSize:  "2M",
		after:    "7d",
		before:   "2024-05-31T00:00:00Z",
		fileType: "image",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, search.ModeRegex, q.Mode)
	assert.Equal(t, uint64(1024), q.MinSize)
	assert.Equal(t, uint64(2*1024*1024), q.MaxSize)
	assert.Equal(t, now.Add(-7*24*time.Hour), q.ModifiedAfter)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), q.ModifiedBefore)
	assert.Equal(t, "image", q.Type)

	invalid := []searchFlags{
		{mode: "fuzzy"},
		{minSize: "lots"},
		{maxSize: "-1"},
		{after: "last tuesday"},
		{before: "soon"},
		{pattern: "*.txt", mode: "glob", content: true},
		{pattern: "([", mode: "regex"},
	}
	for _, f := range invalid {
		_, err := buildQuery(f, now)
		assert.Error(t, err, "%+v", f)
	}
}

func TestScanCommand(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("paths", "scan", e.src)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(e.src, "a.txt"),
		filepath.Join(e.src, "sub", "b.txt"),
		filepath.Join(e.src, "sub", "empty.log"),
	}, lines(out))

	out, err = e.run("json", "scan", "--no-hash", e.src)
	require.NoError(t, err)
	var decoded struct {
		Root         string             `json:"root"`
		FilesScanned int64              `json:"files_scanned"`
		Records      []types.FileRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, e.src, decoded.Root)
	for _, r := range decoded.Records {
		assert.Empty(t, r.Hash, r.Path)
	}
}

func TestSearchCommands(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("paths", "search", "-p", "report", "--content", e.src)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(e.src, "a.txt")}, lines(out))

	out, err = e.run("paths", "search", "empty", e.src)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(e.src, "sub", "empty.log")}, lines(out))

	_, err = e.run("paths", "search", "--mode", "fuzzy", e.src)
	assert.Error(t, err)
}

func TestRecoverAndHistory(t *testing.T) {
	e := newEnv(t)
	dst := filepath.Join(e.dir, "recovered")

	out, err := e.run("plain", "recover", e.src, dst)
	require.NoError(t, err)
	assert.Contains(t, out, "recover ok: 3 files")

	data, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(data))

	out, err = e.run("json", "history")
	require.NoError(t, err)
	var history struct {
		Entries []struct {
			Result types.RecoveryResult `json:"result"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	require.Len(t, history.Entries, 1)
	id := history.Entries[0].Result.ID

	out, err = e.run("paths", "history", "show", id)
	require.NoError(t, err)
	assert.Len(t, lines(out), 3)

	_, err = e.run("plain", "history", "show", "not-a-run")
	assert.Error(t, err)
}

func TestRecoverDeletedIsUnsupported(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("plain", "recover", "deleted", e.src)
	require.ErrorIs(t, err, types.ErrNotImplemented)
	assert.Contains(t, out, "unsupported")
}

func TestBackupArchiveRestore(t *testing.T) {
	e := newEnv(t)
	archivePath := filepath.Join(e.dir, "out", "b.salv")

	_, err := e.run("plain", "backup", "--compress", e.src, archivePath)
	require.NoError(t, err)
	require.FileExists(t, archivePath)

	out, err := e.run("paths", "archive", "list", archivePath)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt", "sub/empty.log"}, lines(out))

	_, err = e.run("plain", "backup", "verify", archivePath, e.src)
	require.NoError(t, err)

	restored := filepath.Join(e.dir, "restored")
	_, err = e.run("plain", "restore", archivePath, restored)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(restored, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha report", string(data))

	e.write("a.txt", "tampered")
	_, err = e.run("plain", "backup", "verify", archivePath, e.src)
	assert.ErrorIs(t, err, errRunFailed)
}

func TestHashCommands(t *testing.T) {
	e := newEnv(t)
	a := filepath.Join(e.src, "a.txt")

	out, err := e.run("plain", "hash", "--algorithm", "md5", a)
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	assert.Len(t, fields[0], 32)
	assert.Equal(t, a, fields[1])

	_, err = e.run("plain", "hash", "verify", "--algorithm", "md5", a, fields[0])
	require.NoError(t, err)
	_, err = e.run("plain", "hash", "verify", a, fields[0])
	assert.ErrorIs(t, err, errVerifyFailed)

	_, err = e.run("plain", "hash", "compare", a, filepath.Join(e.src, "sub", "b.txt"))
	assert.ErrorIs(t, err, errVerifyFailed)

	manifest := filepath.Join(e.dir, "manifest.yaml")
	out, err = e.run("paths", "hash", "manifest", "create", manifest, e.src)
	require.NoError(t, err)
	assert.Len(t, lines(out), 3)

	_, err = e.run("plain", "hash", "manifest", "verify", manifest)
	require.NoError(t, err)

	e.write("sub/b.txt", "changed")
	out, err = e.run("paths", "hash", "manifest", "verify", manifest)
	assert.ErrorIs(t, err, errVerifyFailed)
	assert.Equal(t, []string{filepath.Join(e.src, "sub", "b.txt")}, lines(out))
}

func TestConfigCommands(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("plain", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# "+e.cfgPath)
	assert.Contains(t, out, "algorithm: sha256")

	out, err = e.run("plain", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, e.cfgPath+"\n", out)
}

func TestUnknownOutputFormat(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("html", "scan", e.src)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("plain", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "salvage dev\n"))
}
