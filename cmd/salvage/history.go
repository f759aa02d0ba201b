package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/journal"
	"github.com/jamesainslie/salvage/pkg/salvage/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recover, backup, and restore history",
	Long: `View the journal of past runs. Every recover, backup, restore, and backup
verify run is recorded with its full result.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove entries older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	historyDays  int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show (0 for all)")
	historyCleanCmd.Flags().IntVar(&historyDays, "days", 0, "retention in days (default journal.retention_days)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getJournal opens the configured journal even when recording is disabled,
// so existing history stays readable.
func getJournal() (*journal.Journal, error) {
	j, err := journal.New(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	j, err := getJournal()
	if err != nil {
		return err
	}
	entries, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(entries) == 0 {
		printInfo(cmd, "No history entries found.")
	}
	return emit(cmd, &output.HistoryReport{Entries: entries})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, err := getJournal()
	if err != nil {
		return err
	}
	entry, err := j.Get(args[0])
	if errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("no run with id %s", args[0])
	}
	if err != nil {
		return err
	}
	printInfo(cmd, "Run %s at %s", entry.ID(), entry.Timestamp.Local().Format(output.TimeLayout))
	return emit(cmd, &output.RecoveryReport{RecoveryResult: entry.Result})
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	days := historyDays
	if days <= 0 {
		days = cfg.Journal.RetentionDays
	}
	j, err := getJournal()
	if err != nil {
		return err
	}
	removed, err := j.Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries older than %d days.\n", removed, days)
	return nil
}
