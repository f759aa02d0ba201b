package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config search path at an empty temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Verbose)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.False(t, cfg.IncludeHidden)
	assert.False(t, cfg.IncludeDeleted)
	assert.Equal(t, -1, cfg.MaxDepth)
	assert.False(t, cfg.FollowSymlinks)
	assert.True(t, cfg.PreserveTimestamps)
	assert.True(t, cfg.Verify)
	assert.Equal(t, DefaultAlgorithm, cfg.Algorithm)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultCompressionLevel, cfg.CompressionLevel)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, DefaultCachePath(), cfg.Cache.Path)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, DefaultJournalPath(), cfg.Journal.Path)
	assert.Equal(t, DefaultRetentionDays, cfg.Journal.RetentionDays)
	assert.Equal(t, DefaultTopN, cfg.Analysis.TopN)
	assert.Equal(t, DefaultRules, cfg.Analysis.Rules)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, "config", AppName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
include_hidden: true
max_depth: 3
algorithm: xxh64
preserve_timestamps: false
journal:
  path: ~/history
  retention_days: 7
analysis:
  rules: [extension]
logging:
  level: debug
  components:
    scanner: warn
`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IncludeHidden)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, "xxh64", cfg.Algorithm)
	assert.False(t, cfg.PreserveTimestamps)
	assert.Equal(t, filepath.Join(home, "history"), cfg.Journal.Path)
	assert.Equal(t, 7, cfg.Journal.RetentionDays)
	assert.Equal(t, []string{"extension"}, cfg.Analysis.Rules)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "warn", cfg.Logging.Components["scanner"])
	assert.True(t, cfg.Verify, "unset keys keep their defaults")
}

func TestEnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SALVAGE_MAX_DEPTH", "2")
	t.Setenv("SALVAGE_FOLLOW_SYMLINKS", "true")
	t.Setenv("SALVAGE_JOURNAL_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxDepth)
	assert.True(t, cfg.FollowSymlinks)
	assert.False(t, cfg.Journal.Enabled)
}

func TestExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 9\n"), 0o644))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, path, v.ConfigFileUsed())

	_, err = NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_depth: [unclosed\n"), 0o644))

	_, err := NewViper(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "depth", mutate: func(c *Config) { c.MaxDepth = -2 }},
		{name: "workers", mutate: func(c *Config) { c.Workers = -1 }},
		{name: "level", mutate: func(c *Config) { c.CompressionLevel = 10 }},
		{name: "retention", mutate: func(c *Config) { c.Journal.RetentionDays = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{MaxDepth: -1, Workers: 1, CompressionLevel: -1}
			require.NoError(t, cfg.Validate())
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	isolate(t)
	path, err := ConfigPath()
	require.NoError(t, err)

	written, err := WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, written, "an existing file is left alone")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRules, cfg.Analysis.Rules)
	assert.Equal(t, DefaultAlgorithm, cfg.Algorithm)
	assert.Equal(t, -1, cfg.MaxDepth)
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	got, err := ExpandPath("~/x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), got)

	got, err = ExpandPath("/abs")
	require.NoError(t, err)
	assert.Equal(t, "/abs", got)
}
