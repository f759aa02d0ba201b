package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// Rule is one suspicious-file heuristic. Rules are independent: each one
// inspects a record on its own and returns a human-readable reason when it fires.
type Rule interface {
	// Name identifies the rule in configuration and reports.
	Name() string

	// Check reports whether rec is suspicious under this rule, relative to now.
	Check(rec *types.FileRecord, now time.Time) (reason string, flagged bool)
}

// DefaultExecutableExtensions are executable and script extensions.
var DefaultExecutableExtensions = []string{
	".exe", ".dll", ".scr", ".com", ".pif", ".msi",
	".bat", ".cmd", ".vbs", ".vbe", ".ps1", ".wsf",
	".js", ".jar", ".sh", ".bash", ".py", ".pl", ".rb",
	".app", ".bin", ".so", ".dylib",
}

// DefaultSensitiveNames are name substrings that suggest credentials or configuration.
var DefaultSensitiveNames = []string{
	"password", "passwd", "secret", "key", "credential", "token", "private", "config",
}

// DefaultHiddenSizeThreshold is the size above which a hidden file is flagged.
const DefaultHiddenSizeThreshold = uint64(types.MiB)

// DefaultTimestampWindow is how far modification times may stray from now.
const DefaultTimestampWindow = 365 * 24 * time.Hour

// DefaultRules returns the built-in policy table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		NewExtensionRule(DefaultExecutableExtensions...),
		NewNameRule(DefaultSensitiveNames...),
		HiddenSizeRule{Threshold: DefaultHiddenSizeThreshold},
		TimestampRule{Window: DefaultTimestampWindow},
	}
}

// ExtensionRule flags files whose extension is in a disallow list.
type ExtensionRule struct {
	extensions map[string]struct{}
}

// NewExtensionRule builds a rule from extensions. A missing leading dot is added
// and matching is case-insensitive.
func NewExtensionRule(exts ...string) ExtensionRule {
	r := ExtensionRule{extensions: make(map[string]struct{}, len(exts))}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.extensions[ext] = struct{}{}
	}
	return r
}

func (ExtensionRule) Name() string { return "extension" }

func (r ExtensionRule) Check(rec *types.FileRecord, _ time.Time) (string, bool) {
	ext := rec.Ext()
	if _, ok := r.extensions[ext]; ok {
		return fmt.Sprintf("executable or script extension %s", ext), true
	}
	return "", false
}

// NameRule flags files whose name contains a sensitive substring, ignoring case.
type NameRule struct {
	substrings []string
}

// NewNameRule builds a rule from substrings.
func NewNameRule(substrings ...string) NameRule {
	r := NameRule{substrings: make([]string, 0, len(substrings))}
	for _, s := range substrings {
		if s != "" {
			r.substrings = append(r.substrings, strings.ToLower(s))
		}
	}
	return r
}

func (NameRule) Name() string { return "sensitive-name" }

func (r NameRule) Check(rec *types.FileRecord, _ time.Time) (string, bool) {
	name := strings.ToLower(rec.Name())
	for _, s := range r.substrings {
		if strings.Contains(name, s) {
			return fmt.Sprintf("sensitive name contains %q", s), true
		}
	}
	return "", false
}

// HiddenSizeRule flags hidden files larger than Threshold bytes.
type HiddenSizeRule struct {
	Threshold uint64
}

func (HiddenSizeRule) Name() string { return "hidden-large" }

func (r HiddenSizeRule) Check(rec *types.FileRecord, _ time.Time) (string, bool) {
	if rec.IsHidden && rec.Size > r.Threshold {
		return fmt.Sprintf("hidden file larger than %s", types.FormatSize(int64(r.Threshold))), true
	}
	return "", false
}

// TimestampRule flags modification times more than Window before or after now.
// This is a clock-skew heuristic.
type TimestampRule struct {
	Window time.Duration
}

func (TimestampRule) Name() string { return "timestamp" }

func (r TimestampRule) Check(rec *types.FileRecord, now time.Time) (string, bool) {
	if rec.Modified.IsZero() {
		return "", false
	}
	switch {
	case rec.Modified.Before(now.Add(-r.Window)):
		return fmt.Sprintf("modified more than %d days ago", days(r.Window)), true
	case rec.Modified.After(now.Add(r.Window)):
		return fmt.Sprintf("modified more than %d days in the future", days(r.Window)), true
	}
	return "", false
}

func days(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

// RulesByName returns the default rules whose names are listed, in default order.
// Unknown names are reported as an error.
func RulesByName(names ...string) ([]Rule, error) {
	all := DefaultRules()
	index := make(map[string]Rule, len(all))
	for _, r := range all {
		index[r.Name()] = r
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := index[n]; !ok {
			return nil, fmt.Errorf("unknown rule %q", n)
		}
		want[n] = true
	}

	var out []Rule
	for _, r := range all {
		if want[r.Name()] {
			out = append(out, r)
		}
	}
	return out, nil
}
