package main

import (
	"github.com/spf13/cobra"
)

var backupCompress bool

var backupCmd = &cobra.Command{
	Use:   "backup <source> <destination>",
	Short: "Back up a tree as a copy or a compressed archive",
	Long: `Back up source into destination.

Without --compress the tree is copied as with recover. With --compress the
files are packed into a .salv archive: destination is used as the archive
path if it ends in .salv, otherwise a timestamped archive is created inside
the destination directory. Hidden entries are skipped unless
--include-hidden is set.`,
	Args: cobra.ExactArgs(2),
	RunE: runBackup,
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <archive> <source>",
	Short: "Check an archive against the tree it was made from",
	Args:  cobra.ExactArgs(2),
	RunE:  runBackupVerify,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive> [destination]",
	Short: "Extract a .salv archive",
	Long:  `Extract every entry of an archive into destination (default output_dir).`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRestore,
}

func init() {
	backupCmd.Flags().BoolVarP(&backupCompress, "compress", "z", false, "write a compressed .salv archive")
	backupCmd.Flags().Int("level", 0, "gzip level for --compress (default from config)")
	bindLocal(backupCmd, "level", "compression_level")
	addRecoveryFlags(backupCmd)

	backupCmd.AddCommand(backupVerifyCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	p, err := newPipeline(args[0])
	if err != nil {
		return err
	}
	res, err := p.CreateBackup(ctx, args[0], args[1], backupCompress)
	if err != nil {
		return err
	}
	return report(cmd, res)
}

func runBackupVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	p, err := newPipeline(args[1])
	if err != nil {
		return err
	}
	res, err := p.VerifyBackup(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return report(cmd, res)
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	dst := pathArg(args, 1, cfg.OutputDir)
	p, err := newPipeline(dst)
	if err != nil {
		return err
	}
	res, err := p.RestoreBackup(ctx, args[0], dst)
	if err != nil {
		return err
	}
	return report(cmd, res)
}
