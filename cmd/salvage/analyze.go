package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/analyzer"
	"github.com/jamesainslie/salvage/pkg/salvage/output"
	"github.com/jamesainslie/salvage/pkg/salvage/scanner"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

var analyzeRecent int

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Find duplicates, suspicious files, and recent activity",
	Long: `Scan a tree and report extension counts, the largest files, content
duplicates, files flagged by the suspicious-file rules, and the most recent
timeline events.

Rules: extension, sensitive-name, hidden-large, timestamp.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Int("top", 0, "number of largest files to report (default from config)")
	analyzeCmd.Flags().String("rules", "", "comma-separated suspicious-file rules (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeRecent, "recent", 20, "number of recent timeline events to report (0 for all)")
	bindLocal(analyzeCmd, "top", "analysis.top_n")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	ruleNames := cfg.Analysis.Rules
	if s, _ := cmd.Flags().GetString("rules"); s != "" {
		ruleNames = parseCommaSeparated(s)
	}
	rules, err := analyzer.RulesByName(ruleNames...)
	if err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	root := pathArg(args, 0, ".")
	opts := scanOptions(root)
	c, closeCache := openCache()
	defer closeCache()
	withCache(&opts, c)

	scan, err := scanner.Scan(ctx, root, opts)
	if err != nil {
		return err
	}

	a := analyzer.New(
		analyzer.WithRules(rules...),
		analyzer.WithTopN(cfg.Analysis.TopN),
		analyzer.WithObserver(observer()),
	)
	res := a.Analyze(scan.Records)
	return emit(cmd, &output.AnalysisReport{
		Root:           root,
		AnalysisResult: *res,
		Recent:         types.Recent(res.Timeline, analyzeRecent),
	})
}
