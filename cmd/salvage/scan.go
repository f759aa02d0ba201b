package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/output"
	"github.com/jamesainslie/salvage/pkg/salvage/scanner"
)

var scanNoHash bool

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Inventory a directory tree",
	Long: `Walk a directory tree and record metadata and a content digest for every
entry. Unreadable entries are reported and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanNoHash, "no-hash", false, "skip content digests")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	root := pathArg(args, 0, ".")
	opts := scanOptions(root)
	opts.SkipHash = scanNoHash
	c, closeCache := openCache()
	defer closeCache()
	withCache(&opts, c)

	res, err := scanner.Scan(ctx, root, opts)
	if err != nil {
		return err
	}
	return emit(cmd, &output.ScanReport{Root: root, Result: *res})
}
