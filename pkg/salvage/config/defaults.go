// Package config provides configuration management for salvage.
package config

// Default configuration values for salvage.
const (
	// DefaultOutputDir is where recovered files go when no destination is given.
	DefaultOutputDir = "./salvaged"

	// DefaultMaxDepth disables the depth limit.
	DefaultMaxDepth = -1

	// DefaultAlgorithm is the content digest algorithm.
	DefaultAlgorithm = "sha256"

	// DefaultWorkers is the number of concurrent scan workers.
	DefaultWorkers = 4

	// DefaultCompressionLevel selects the gzip default.
	DefaultCompressionLevel = -1

	// DefaultRetentionDays is how long journal entries are kept.
	DefaultRetentionDays = 90

	// DefaultTopN is the number of largest files reported by analysis.
	DefaultTopN = 10

	// DefaultLogLevel is the default log file level.
	DefaultLogLevel = "info"

	// AppName names the config, cache, and state subdirectories.
	AppName = "salvage"

	// EnvPrefix prefixes environment overrides, e.g. SALVAGE_MAX_DEPTH.
	EnvPrefix = "SALVAGE"
)

// DefaultRules lists the suspicious-file rules enabled by default.
var DefaultRules = []string{"extension", "sensitive-name", "hidden-large", "timestamp"}
