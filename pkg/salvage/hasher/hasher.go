// Package hasher computes streaming content digests of files, buffers, and
// strings, and builds and verifies integrity manifests over sets of files.
package hasher

import (
	"context"
	"crypto/md5"  //nolint:gosec // offered for compatibility with existing checksums
	"crypto/sha1" //nolint:gosec // offered for compatibility with existing checksums
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Algorithm names a digest algorithm.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"

	// XXH64 is a fast non-cryptographic fingerprint. Good enough for
	// duplicate detection on trusted data, not for integrity against tampering.
	XXH64 Algorithm = "xxh64"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = SHA256

// DefaultChunkSize is the read size used when hashing files.
const DefaultChunkSize = 64 * 1024

// ErrUnknownAlgorithm is returned for unsupported algorithm names.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA256, SHA512, XXH64}
}

// ParseAlgorithm parses an algorithm name case-insensitively.
// "sha-256" style names are accepted.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "")
	if name == "" {
		return DefaultAlgorithm, nil
	}
	for _, a := range Algorithms() {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil //nolint:gosec
	case SHA1:
		return sha1.New(), nil //nolint:gosec
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case XXH64:
		return xxhash.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
}

// DigestLength returns the length of the hex digest produced by the algorithm.
func (a Algorithm) DigestLength() int {
	h, err := a.newHash()
	if err != nil {
		return 0
	}
	return h.Size() * 2
}

// Hasher computes digests with a fixed algorithm.
type Hasher struct {
	algo      Algorithm
	chunkSize int
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithChunkSize sets the read size used for files and readers.
// Values below 1 keep the default.
func WithChunkSize(n int) Option {
	return func(h *Hasher) {
		if n > 0 {
			h.chunkSize = n
		}
	}
}

// New creates a Hasher for the given algorithm. An empty algorithm selects
// DefaultAlgorithm.
func New(algo Algorithm, opts ...Option) (*Hasher, error) {
	if algo == "" {
		algo = DefaultAlgorithm
	}
	if _, err := algo.newHash(); err != nil {
		return nil, err
	}
	h := &Hasher{algo: algo, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Algorithm returns the hasher's algorithm.
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// HashFile digests a file without loading it into memory.
// Errors name the path.
func (h *Hasher) HashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()

	sum, err := h.HashReader(ctx, f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, nil
}

// HashReader digests everything read from r, one chunk at a time.
// The context is checked between chunks.
func (h *Hasher) HashReader(ctx context.Context, r io.Reader) (string, error) {
	digest, err := h.algo.newHash()
	if err != nil {
		return "", err
	}

	buf := make([]byte, h.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// HashBytes digests an in-memory buffer.
func (h *Hasher) HashBytes(data []byte) string {
	digest, _ := h.algo.newHash()
	digest.Write(data)
	return hex.EncodeToString(digest.Sum(nil))
}

// HashString digests the UTF-8 bytes of s.
func (h *Hasher) HashString(s string) string {
	return h.HashBytes([]byte(s))
}

// CompareFiles reports whether two files have identical digests.
func (h *Hasher) CompareFiles(ctx context.Context, a, b string) (bool, error) {
	sumA, err := h.HashFile(ctx, a)
	if err != nil {
		return false, err
	}
	sumB, err := h.HashFile(ctx, b)
	if err != nil {
		return false, err
	}
	return sumA == sumB, nil
}

// VerifyFile reports whether a file's digest matches expected, ignoring case.
func (h *Hasher) VerifyFile(ctx context.Context, path, expected string) (bool, error) {
	sum, err := h.HashFile(ctx, path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, strings.TrimSpace(expected)), nil
}
