package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/salvage/pkg/salvage/hasher"
	"github.com/jamesainslie/salvage/pkg/salvage/output"
	"github.com/jamesainslie/salvage/pkg/salvage/scanner"
)

var errVerifyFailed = errors.New("verification failed")

var hashCmd = &cobra.Command{
	Use:   "hash <file>...",
	Short: "Compute content digests",
	Long: `Print the digest of each file in the "digest  path" layout used by
sha256sum. The algorithm comes from --algorithm or the config.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

var hashVerifyCmd = &cobra.Command{
	Use:   "verify <file> <digest>",
	Short: "Check a file against an expected digest",
	Args:  cobra.ExactArgs(2),
	RunE:  runHashVerify,
}

var hashCompareCmd = &cobra.Command{
	Use:   "compare <file> <file>",
	Short: "Check whether two files have identical content",
	Args:  cobra.ExactArgs(2),
	RunE:  runHashCompare,
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Create and check integrity manifests",
}

var manifestCreateCmd = &cobra.Command{
	Use:   "create <manifest> <path>...",
	Short: "Record the digest of every file under the given paths",
	Long: `Hash every regular file under the given paths and save the digests as a
YAML manifest. Directories are walked with the scan settings.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runManifestCreate,
}

var manifestVerifyCmd = &cobra.Command{
	Use:   "verify <manifest>",
	Short: "Re-hash every manifest entry and report mismatches",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestVerify,
}

func init() {
	manifestCmd.AddCommand(manifestCreateCmd)
	manifestCmd.AddCommand(manifestVerifyCmd)
	hashCmd.AddCommand(hashVerifyCmd)
	hashCmd.AddCommand(hashCompareCmd)
	hashCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(hashCmd)
}

func newHasher() (*hasher.Hasher, error) {
	algo, err := hasher.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return hasher.New(algo)
}

func runHash(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	h, err := newHasher()
	if err != nil {
		return err
	}
	r := &output.DigestReport{Algorithm: h.Algorithm()}
	for _, path := range args {
		sum, err := h.HashFile(ctx, path)
		if err != nil {
			return err
		}
		r.Digests = append(r.Digests, output.Digest{Path: path, Digest: sum})
	}
	return emit(cmd, r)
}

func runHashVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	h, err := newHasher()
	if err != nil {
		return err
	}
	ok, err := h.VerifyFile(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return check(cmd, &output.CheckReport{Subject: args[0], OK: ok, Detail: detail(ok, "digest mismatch")})
}

func runHashCompare(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	h, err := newHasher()
	if err != nil {
		return err
	}
	same, err := h.CompareFiles(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s == %s", args[0], args[1])
	return check(cmd, &output.CheckReport{Subject: subject, OK: same, Detail: detail(same, "content differs")})
}

func runManifestCreate(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	h, err := newHasher()
	if err != nil {
		return err
	}
	files, err := collectFiles(ctx, args[1:])
	if err != nil {
		return err
	}
	m, err := h.CreateManifest(ctx, files)
	if err != nil {
		return err
	}
	if err := m.Save(args[0]); err != nil {
		return err
	}

	r := &output.DigestReport{Algorithm: m.Algorithm}
	for _, p := range m.Paths() {
		r.Digests = append(r.Digests, output.Digest{Path: p, Digest: m.Entries[p]})
	}
	printInfo(cmd, "wrote %d entries to %s", len(r.Digests), args[0])
	return emit(cmd, r)
}

func runManifestVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	m, err := hasher.LoadManifest(args[0])
	if err != nil {
		return err
	}
	h, err := hasher.New(m.Algorithm)
	if err != nil {
		return err
	}
	res, err := h.VerifyManifest(ctx, m)
	if err != nil {
		return err
	}
	if err := emit(cmd, &output.ManifestReport{Manifest: args[0], VerifyReport: *res}); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s: %w (%d of %d entries)", args[0], errVerifyFailed, len(res.Failures), len(m.Entries))
	}
	return nil
}

// collectFiles expands directories into the regular files beneath them.
// Paths are made absolute so the manifest can be verified from anywhere.
func collectFiles(ctx context.Context, paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, abs)
			continue
		}

		opts := scanOptions(abs)
		opts.SkipHash = true
		res, err := scanner.Scan(ctx, abs, opts)
		if err != nil {
			return nil, err
		}
		for i := range res.Records {
			rec := &res.Records[i]
			if !rec.IsDir && !rec.IsSymlink && !rec.IsDeleted {
				files = append(files, rec.Path)
			}
		}
	}
	return files, nil
}

func check(cmd *cobra.Command, r *output.CheckReport) error {
	if err := emit(cmd, r); err != nil {
		return err
	}
	if !r.OK {
		return fmt.Errorf("%s: %w", r.Subject, errVerifyFailed)
	}
	return nil
}

func detail(ok bool, failure string) string {
	if ok {
		return ""
	}
	return failure
}
