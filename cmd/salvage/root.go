package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/salvage/pkg/salvage/config"
	"github.com/jamesainslie/salvage/pkg/salvage/logging"
	"github.com/jamesainslie/salvage/pkg/salvage/output"
)

var (
	cfgFile      string
	outputFormat string
	quiet        bool

	// v and cfg are loaded once per invocation by loadConfig.
	v   *viper.Viper
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "salvage",
		Short: "Scan, analyze, search, and recover file trees",
		Long: `Salvage walks a directory tree, fingerprints and classifies files, finds
duplicates and anomalies, reconstructs a timeline of file events, and makes
verified copies and compressed backups.

Examples:
  salvage scan ~/evidence                 # Inventory a tree with digests
  salvage analyze -o json ~/evidence      # Duplicates, suspicious files, timeline
  salvage search -p invoice --type document ~/evidence
  salvage recover ~/evidence ./salvaged   # Verified copy
  salvage backup --compress ~/evidence ./backups
  salvage history                         # Past recover/backup/restore runs`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Close()
		},
	}
)

// flagBindings maps persistent flag names to config keys.
var flagBindings = map[string]string{
	"verbose":         "verbose",
	"include-hidden":  "include_hidden",
	"include-deleted": "include_deleted",
	"max-depth":       "max_depth",
	"follow-symlinks": "follow_symlinks",
	"algorithm":       "algorithm",
	"workers":         "workers",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/salvage/config.yaml)")
	pf.StringVarP(&outputFormat, "output", "o", "plain", fmt.Sprintf("output format %v", output.Available()))
	pf.BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	pf.BoolP("verbose", "v", false, "debug output on stderr")
	pf.Bool("include-hidden", false, "include dot files and directories")
	pf.Bool("include-deleted", false, "record placeholders for entries whose metadata cannot be read")
	pf.Int("max-depth", config.DefaultMaxDepth, "maximum recursion depth (-1 for unlimited)")
	pf.Bool("follow-symlinks", false, "descend into symlinked directories")
	pf.StringP("algorithm", "a", config.DefaultAlgorithm, "digest algorithm (md5, sha1, sha256, sha512, xxh64)")
	pf.IntP("workers", "w", config.DefaultWorkers, "concurrent scan workers (0 sizes the pool to the host)")
}

// loadConfig reads the config file and environment, applies flags set on
// the command line, and initializes logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	vp, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	for flag, key := range flagBindings {
		bindFlag(vp, cmd, flag, key)
	}
	for flag, key := range localBindings[cmd] {
		bindFlag(vp, cmd, flag, key)
	}

	c, err := config.Decode(vp)
	if err != nil {
		return err
	}
	v, cfg = vp, c

	if _, err := output.Get(outputFormat); err != nil {
		return err
	}

	consoleLevel := "warn"
	switch {
	case quiet:
		consoleLevel = "error"
	case cfg.Verbose:
		consoleLevel = "debug"
	}
	return logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	})
}

// localBindings maps command-local flag names to config keys.
var localBindings = map[*cobra.Command]map[string]string{}

func bindLocal(cmd *cobra.Command, flag, key string) {
	if localBindings[cmd] == nil {
		localBindings[cmd] = map[string]string{}
	}
	localBindings[cmd][flag] = key
}

func bindFlag(vp *viper.Viper, cmd *cobra.Command, flag, key string) {
	if f := cmd.Flags().Lookup(flag); f != nil {
		_ = vp.BindPFlag(key, f)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// printInfo prints a message to stderr unless quiet mode is enabled.
func printInfo(cmd *cobra.Command, format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
