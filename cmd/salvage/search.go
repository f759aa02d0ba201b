package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/output"
	"github.com/jamesainslie/salvage/pkg/salvage/search"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// searchFlags holds the query flags of the search command.
type searchFlags struct {
	pattern       string
	mode          string
	caseSensitive bool
	minSize       string
	maxSize       string
	after         string
	before        string
	fileType      string
	content       bool
	dirs          bool
}

var (
	searchOpts     searchFlags
	largeThreshold string
)

var searchCmd = &cobra.Command{
	Use:   "search [path]",
	Short: "Find files by name, size, date, type, or content",
	Long: `Scan a tree and keep the entries that pass every given criterion.

Dates accept RFC3339, YYYY-MM-DD, or an age such as 7d, 2w, 6mo, 1y.
Types accept a category (image, video, audio, document, archive, code,
executable), an extension (.pdf or pdf), or a MIME fragment (image/png).

Examples:
  salvage search -p report --type document ~/evidence
  salvage search -p 'IMG_*.jpg' --mode glob --after 30d .
  salvage search -p 'password' --content .
  salvage search --min-size 100M .`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

var searchNamesCmd = &cobra.Command{
	Use:   "names [path]",
	Short: "List files that share a base name",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearchNames,
}

var searchEmptyCmd = &cobra.Command{
	Use:   "empty [path]",
	Short: "List zero-length files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearchEmpty,
}

var searchLargeCmd = &cobra.Command{
	Use:   "large [path]",
	Short: "List files of at least --threshold bytes, largest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearchLarge,
}

func init() {
	f := searchCmd.Flags()
	f.StringVarP(&searchOpts.pattern, "pattern", "p", "", "name or content pattern")
	f.StringVarP(&searchOpts.mode, "mode", "m", "substring", "pattern mode: substring, regex, glob")
	f.BoolVarP(&searchOpts.caseSensitive, "case-sensitive", "c", false, "match case exactly")
	f.StringVar(&searchOpts.minSize, "min-size", "", "minimum size (e.g. 10K, 1G)")
	f.StringVar(&searchOpts.maxSize, "max-size", "", "maximum size (e.g. 10K, 1G)")
	f.StringVar(&searchOpts.after, "after", "", "modified at or after this date or age")
	f.StringVar(&searchOpts.before, "before", "", "modified at or before this date or age")
	f.StringVarP(&searchOpts.fileType, "type", "t", "", "category, extension, or MIME fragment")
	f.BoolVar(&searchOpts.content, "content", false, "match the pattern against text file content")
	f.BoolVar(&searchOpts.dirs, "dirs", false, "include directories in name matches")

	searchLargeCmd.Flags().StringVar(&largeThreshold, "threshold", "100M", "minimum size")

	searchCmd.AddCommand(searchNamesCmd)
	searchCmd.AddCommand(searchEmptyCmd)
	searchCmd.AddCommand(searchLargeCmd)
	rootCmd.AddCommand(searchCmd)
}

// buildQuery converts the flags into a query. Relative dates are resolved
// against now.
func buildQuery(f searchFlags, now time.Time) (*search.Query, error) {
	mode, err := search.ParseMode(f.mode)
	if err != nil {
		return nil, err
	}

	var minSize, maxSize uint64
	if f.minSize != "" {
		n, err := types.ParseSize(f.minSize)
		if err != nil {
			return nil, fmt.Errorf("invalid min-size %q: %w", f.minSize, err)
		}
		minSize = uint64(n)
	}
	if f.maxSize != "" {
		n, err := types.ParseSize(f.maxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid max-size %q: %w", f.maxSize, err)
		}
		maxSize = uint64(n)
	}

	var after, before time.Time
	if f.after != "" {
		if after, err = search.ParseTime(f.after, now); err != nil {
			return nil, fmt.Errorf("invalid after %q: %w", f.after, err)
		}
	}
	if f.before != "" {
		if before, err = search.ParseTime(f.before, now); err != nil {
			return nil, fmt.Errorf("invalid before %q: %w", f.before, err)
		}
	}

	q := search.NewQuery(
		search.WithPattern(f.pattern),
		search.WithMode(mode),
		search.WithCaseSensitive(f.caseSensitive),
		search.WithSizeRange(minSize, maxSize),
		search.WithModifiedRange(after, before),
		search.WithType(f.fileType),
		search.WithContent(f.content),
		search.WithDirectories(f.dirs),
	)
	if err := q.Compile(); err != nil {
		return nil, err
	}
	return q, nil
}

func newEngine(root string) *search.Engine {
	return search.New(scanOptions(root), observer())
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	q, err := buildQuery(searchOpts, time.Now())
	if err != nil {
		return err
	}

	root := pathArg(args, 0, ".")
	res, err := newEngine(root).Search(ctx, root, q)
	if err != nil {
		return err
	}
	return emit(cmd, &output.SearchReport{Root: root, Result: *res})
}

func runSearchNames(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	root := pathArg(args, 0, ".")
	groups, err := newEngine(root).FindDuplicateNames(ctx, root)
	if err != nil {
		return err
	}
	return emit(cmd, &output.NameGroupsReport{Groups: groups})
}

func runSearchEmpty(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	root := pathArg(args, 0, ".")
	files, err := newEngine(root).FindEmpty(ctx, root)
	if err != nil {
		return err
	}
	return emit(cmd, &output.FilesReport{Title: "empty", Files: files})
}

func runSearchLarge(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	threshold, err := types.ParseSize(largeThreshold)
	if err != nil {
		return fmt.Errorf("invalid threshold %q: %w", largeThreshold, err)
	}

	root := pathArg(args, 0, ".")
	files, err := newEngine(root).FindLarge(ctx, root, uint64(threshold))
	if err != nil {
		return err
	}
	return emit(cmd, &output.FilesReport{Title: "at least " + types.FormatSize(threshold), Files: files})
}
