package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/archive"
	"github.com/jamesainslie/salvage/pkg/salvage/output"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and unpack .salv archives",
	Long: `Low-level access to salvage archives. Unlike restore, these commands do not
record a journal entry.`,
}

var archiveListCmd = &cobra.Command{
	Use:   "list <archive>",
	Short: "List archive entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		entries, err := archive.New().List(ctx, args[0])
		if err != nil {
			return err
		}
		return emit(cmd, &output.ArchiveReport{Archive: args[0], Entries: entries})
	},
}

var archiveExtractCmd = &cobra.Command{
	Use:   "extract <archive> <directory>",
	Short: "Extract archive entries into a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		entries, err := archive.New(archive.WithObserver(observer())).Extract(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return emit(cmd, &output.ArchiveReport{Archive: args[0], Entries: entries})
	},
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveExtractCmd)
	rootCmd.AddCommand(archiveCmd)
}
