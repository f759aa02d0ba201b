package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// CacheConfig configures the persistent digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// AnalysisConfig configures the analyzer.
type AnalysisConfig struct {
	TopN  int      `mapstructure:"top_n" yaml:"top_n"`
	Rules []string `mapstructure:"rules" yaml:"rules"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// Config represents the application configuration.
type Config struct {
	Verbose            bool           `mapstructure:"verbose" yaml:"verbose"`
	OutputDir          string         `mapstructure:"output_dir" yaml:"output_dir"`
	IncludeHidden      bool           `mapstructure:"include_hidden" yaml:"include_hidden"`
	IncludeDeleted     bool           `mapstructure:"include_deleted" yaml:"include_deleted"`
	MaxDepth           int            `mapstructure:"max_depth" yaml:"max_depth"`
	FollowSymlinks     bool           `mapstructure:"follow_symlinks" yaml:"follow_symlinks"`
	PreserveTimestamps bool           `mapstructure:"preserve_timestamps" yaml:"preserve_timestamps"`
	Verify             bool           `mapstructure:"verify" yaml:"verify"`
	Algorithm          string         `mapstructure:"algorithm" yaml:"algorithm"`
	Workers            int            `mapstructure:"workers" yaml:"workers"`
	CompressionLevel   int            `mapstructure:"compression_level" yaml:"compression_level"`
	Cache              CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Journal            JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Analysis           AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Logging            LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// NewViper creates a viper instance with salvage's defaults, search paths,
// and environment binding, then reads the config file. cfgFile overrides the
// search paths. A missing file in the search paths is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("include_hidden", false)
	v.SetDefault("include_deleted", false)
	v.SetDefault("max_depth", DefaultMaxDepth)
	v.SetDefault("follow_symlinks", false)
	v.SetDefault("preserve_timestamps", true)
	v.SetDefault("verify", true)
	v.SetDefault("algorithm", DefaultAlgorithm)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("compression_level", DefaultCompressionLevel)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // Empty means DefaultCachePath
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "") // Empty means DefaultJournalPath
	v.SetDefault("journal.retention_days", DefaultRetentionDays)

	v.SetDefault("analysis.top_n", DefaultTopN)
	v.SetDefault("analysis.rules", DefaultRules)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means the logging package default
	v.SetDefault("logging.components", map[string]string{})
}

// Decode unmarshals v into a Config and resolves empty and ~ paths.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads configuration from the default locations and the environment.
//
// Config file: $XDG_CONFIG_HOME/salvage/config.yaml, falling back to
// ~/.config/salvage/config.yaml. Environment variables are prefixed with
// SALVAGE_ (e.g. SALVAGE_MAX_DEPTH, SALVAGE_JOURNAL_ENABLED).
func Load() (*Config, error) {
	v, err := NewViper("")
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate rejects values no component can use.
func (c *Config) Validate() error {
	if c.MaxDepth < -1 {
		return fmt.Errorf("max_depth %d is invalid, use -1 for unlimited", c.MaxDepth)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers %d is invalid", c.Workers)
	}
	if c.CompressionLevel < -2 || c.CompressionLevel > 9 {
		return fmt.Errorf("compression_level %d is outside -2..9", c.CompressionLevel)
	}
	if c.Journal.RetentionDays < 0 {
		return fmt.Errorf("journal.retention_days %d is invalid", c.Journal.RetentionDays)
	}
	return nil
}

func (c *Config) resolvePaths() error {
	var err error
	if c.OutputDir, err = ExpandPath(c.OutputDir); err != nil {
		return err
	}
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath()
	} else if c.Cache.Path, err = ExpandPath(c.Cache.Path); err != nil {
		return err
	}
	if c.Journal.Path == "" {
		c.Journal.Path = DefaultJournalPath()
	} else if c.Journal.Path, err = ExpandPath(c.Journal.Path); err != nil {
		return err
	}
	if c.Logging.Path, err = ExpandPath(c.Logging.Path); err != nil {
		return err
	}
	return nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// StateDir returns $XDG_STATE_HOME/salvage/ for logs and the journal.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// CacheDir returns $XDG_CACHE_HOME/salvage/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DefaultCachePath returns the default digest cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "digests")
}

// DefaultJournalPath returns the default journal directory.
func DefaultJournalPath() string {
	return filepath.Join(StateDir(), "journal")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a commented default config file to path if none
// exists. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# Salvage configuration

# Debug output on the console
verbose: false

# Default destination for recovered files
output_dir: %s

# Scanning
include_hidden: false
include_deleted: false
max_depth: %d        # -1 means unlimited
follow_symlinks: false
workers: %d           # 0 sizes the pool to the host
algorithm: %s        # md5, sha1, sha256, sha512, xxh64

# Recovery
preserve_timestamps: true
verify: true
compression_level: %d   # -1 or 0 default, 1 fastest .. 9 best, -2 huffman only

# Digest cache (empty path means $XDG_CACHE_HOME/salvage/digests)
cache:
  enabled: true
  path: ""

# Run journal (empty path means $XDG_STATE_HOME/salvage/journal)
journal:
  enabled: true
  path: ""
  retention_days: %d

# Analysis
analysis:
  top_n: %d
  rules: [%s]

# Logging (empty path means $XDG_STATE_HOME/salvage/salvage.log)
logging:
  level: %s
  path: ""
  components: {}
`, DefaultOutputDir, DefaultMaxDepth, DefaultWorkers, DefaultAlgorithm, DefaultCompressionLevel,
		DefaultRetentionDays, DefaultTopN, strings.Join(DefaultRules, ", "), DefaultLogLevel)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}
