package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/output"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
	"github.com/jamesainslie/salvage/pkg/salvage/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]...",
	Short: "Stream file events as they happen",
	Long: `Watch one or more trees and print a timeline event for every file that is
created, modified, or deleted. Renames are reported as deletions of the old
path. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	if len(args) == 0 {
		args = []string{"."}
	}

	w, err := watcher.New(
		watcher.WithObserver(observer()),
		watcher.WithIncludeHidden(cfg.IncludeHidden),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range args {
		if err := w.Watch(root); err != nil {
			return err
		}
	}
	printInfo(cmd, "Watching %d directories. Press Ctrl-C to stop.", w.Watched())

	out := cmd.OutOrStdout()
	w.Run(ctx, func(e types.TimelineEntry) {
		data, err := output.Render(outputFormat, &output.TimelineReport{
			Entries: []types.TimelineEntry{e},
			Bare:    true,
		})
		if err != nil {
			printError("%v", err)
			return
		}
		_, _ = out.Write(data)
	})
	return nil
}
