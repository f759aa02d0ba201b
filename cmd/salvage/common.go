package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/cache"
	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/hasher"
	"github.com/jamesainslie/salvage/pkg/salvage/journal"
	"github.com/jamesainslie/salvage/pkg/salvage/logging"
	"github.com/jamesainslie/salvage/pkg/salvage/output"
	"github.com/jamesainslie/salvage/pkg/salvage/recovery"
	"github.com/jamesainslie/salvage/pkg/salvage/scanner"
)

var noCache bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "bypass the digest cache")
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// observer forwards component events to the log.
func observer() events.Observer {
	return events.NewLogObserver("events")
}

// scanOptions builds scanner options for root from the loaded config.
func scanOptions(root string) scanner.Options {
	opts := scanner.DefaultOptions()
	opts.Root = root
	opts.MaxDepth = cfg.MaxDepth
	opts.IncludeHidden = cfg.IncludeHidden
	opts.IncludeDeleted = cfg.IncludeDeleted
	opts.FollowSymlinks = cfg.FollowSymlinks
	opts.Algorithm = hasher.Algorithm(cfg.Algorithm)
	opts.Workers = cfg.Workers
	opts.Observer = observer()
	return opts
}

// openCache opens the digest cache unless it is disabled. The returned
// close function is never nil.
func openCache() (*cache.Cache, func()) {
	if noCache || !cfg.Cache.Enabled {
		return nil, func() {}
	}
	c, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		logging.Get("cli").Warn("digest cache unavailable", "path", cfg.Cache.Path, "error", err)
		return nil, func() {}
	}
	return c, func() {
		stats := c.Stats()
		logging.Get("cli").Debug("digest cache", "hits", stats.Hits, "misses", stats.Misses)
		if err := c.Close(); err != nil {
			logging.Get("cli").Warn("closing digest cache", "error", err)
		}
	}
}

// withCache attaches an open cache to opts.
func withCache(opts *scanner.Options, c *cache.Cache) {
	if c != nil {
		opts.Cache = c
	}
}

// openJournal returns the run journal, or nil when journaling is disabled.
func openJournal() (*journal.Journal, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	return journal.New(cfg.Journal.Path)
}

// newPipeline builds a recovery pipeline from the loaded config.
func newPipeline(root string) (*recovery.Pipeline, error) {
	opts := recovery.DefaultOptions()
	opts.PreserveTimestamps = cfg.PreserveTimestamps
	opts.Verify = cfg.Verify
	opts.Algorithm = hasher.Algorithm(cfg.Algorithm)
	opts.Level = cfg.CompressionLevel
	opts.Scan = scanOptions(root)
	opts.Observer = observer()

	j, err := openJournal()
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if j != nil {
		opts.Journal = j
	}
	return recovery.New(opts)
}

// emit renders a report in the selected format to stdout.
func emit(cmd *cobra.Command, r output.Report) error {
	data, err := output.Render(outputFormat, r)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// pathArg returns args[i], or def when it is absent.
func pathArg(args []string, i int, def string) string {
	if len(args) > i {
		return args[i]
	}
	return def
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
