package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/output"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

var errRunFailed = errors.New("run completed with errors")

var recoverCmd = &cobra.Command{
	Use:   "recover <source> [destination]",
	Short: "Copy a tree with verification",
	Long: `Copy every entry under source into destination, preserving the relative
layout. Each copy is re-hashed and compared with the source unless
--verify=false. Per-file failures are reported and the run continues.

Hidden entries (names starting with ".") are skipped unless
--include-hidden or include_hidden is set. The destination defaults to
output_dir from the config and must differ from the source.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRecover,
}

var recoverDeletedCmd = &cobra.Command{
	Use:   "deleted <path>",
	Short: "Recover deleted files (not implemented)",
	Long:  `Raw-device undelete is not supported. The command reports an unsupported result.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRecoverDeleted,
}

func init() {
	addRecoveryFlags(recoverCmd)
	recoverCmd.AddCommand(recoverDeletedCmd)
	rootCmd.AddCommand(recoverCmd)
}

// addRecoveryFlags adds the copy policy flags shared by recover and backup.
func addRecoveryFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("verify", true, "compare digests after every copy")
	cmd.Flags().Bool("preserve-timestamps", true, "restore modification and access times")
	bindLocal(cmd, "verify", "verify")
	bindLocal(cmd, "preserve-timestamps", "preserve_timestamps")
}

func runRecover(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	src := args[0]
	dst := pathArg(args, 1, cfg.OutputDir)
	p, err := newPipeline(src)
	if err != nil {
		return err
	}
	res, err := p.RecoverDirectory(ctx, src, dst)
	if err != nil {
		return err
	}
	return report(cmd, res)
}

func runRecoverDeleted(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	p, err := newPipeline(args[0])
	if err != nil {
		return err
	}
	res, err := p.RecoverDeleted(ctx, args[0])
	if err != nil {
		return err
	}
	return report(cmd, res)
}

// report prints a pipeline result and turns an unsuccessful run into an error.
func report(cmd *cobra.Command, res *types.RecoveryResult) error {
	if err := emit(cmd, &output.RecoveryReport{RecoveryResult: *res}); err != nil {
		return err
	}
	switch {
	case res.Unsupported:
		return fmt.Errorf("%s: %w", res.Operation, types.ErrNotImplemented)
	case !res.Success:
		return fmt.Errorf("%s: %w (%d errors)", res.Operation, errRunFailed, len(res.Errors))
	}
	printInfo(cmd, "%s complete: %d files, %s", res.Operation, res.TotalFiles, types.FormatSize(int64(res.TotalBytes)))
	return nil
}
