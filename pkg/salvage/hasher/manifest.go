package hasher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest maps file paths to their expected digests.
type Manifest struct {
	Algorithm Algorithm         `json:"algorithm" yaml:"algorithm"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	Entries   map[string]string `json:"entries" yaml:"entries"`
}

// Paths returns the manifest's paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Entries))
	for p := range m.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Failure describes one manifest entry that did not verify.
type Failure struct {
	Path     string `json:"path" yaml:"path"`
	Expected string `json:"expected" yaml:"expected"`
	Actual   string `json:"actual,omitempty" yaml:"actual,omitempty"`
	Err      string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (f Failure) String() string {
	if f.Err != "" {
		return fmt.Sprintf("%s: %s", f.Path, f.Err)
	}
	return fmt.Sprintf("%s: expected %s, got %s", f.Path, f.Expected, f.Actual)
}

// VerifyReport is the outcome of re-hashing every manifest entry.
type VerifyReport struct {
	Verified []string  `json:"verified" yaml:"verified"`
	Failures []Failure `json:"failures" yaml:"failures"`
}

// OK reports whether every entry verified.
func (r *VerifyReport) OK() bool {
	return len(r.Failures) == 0
}

// CreateManifest hashes each path. The first unreadable file aborts with an
// error naming it.
func (h *Hasher) CreateManifest(ctx context.Context, paths []string) (*Manifest, error) {
	m := &Manifest{
		Algorithm: h.algo,
		CreatedAt: time.Now().UTC(),
		Entries:   make(map[string]string, len(paths)),
	}
	for _, p := range paths {
		sum, err := h.HashFile(ctx, p)
		if err != nil {
			return nil, err
		}
		m.Entries[p] = sum
	}
	return m, nil
}

// VerifyManifest re-hashes every entry and collects all mismatches and read
// errors instead of stopping at the first. Only context cancellation aborts.
// The manifest's own algorithm is used when it differs from the hasher's.
func (h *Hasher) VerifyManifest(ctx context.Context, m *Manifest) (*VerifyReport, error) {
	verifier := h
	if m.Algorithm != "" && m.Algorithm != h.algo {
		v, err := New(m.Algorithm, WithChunkSize(h.chunkSize))
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	report := &VerifyReport{}
	for _, p := range m.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expected := m.Entries[p]
		sum, err := verifier.HashFile(ctx, p)
		switch {
		case err != nil:
			report.Failures = append(report.Failures, Failure{Path: p, Expected: expected, Err: err.Error()})
		case !strings.EqualFold(sum, expected):
			report.Failures = append(report.Failures, Failure{Path: p, Expected: expected, Actual: sum})
		default:
			report.Verified = append(report.Verified, p)
		}
	}
	return report, nil
}

// Save writes the manifest as YAML, creating parent directories.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	if m.Entries == nil {
		m.Entries = map[string]string{}
	}
	if m.Algorithm == "" {
		m.Algorithm = DefaultAlgorithm
	}
	return &m, nil
}
