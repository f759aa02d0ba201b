package search

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// MaxContentSize is the largest file whose content is searched.
const MaxContentSize = 10 * 1024 * 1024

// ErrInvalidQuery indicates a query that cannot be evaluated.
var ErrInvalidQuery = errors.New("invalid query")

// Mode selects how Pattern is interpreted.
type Mode int

const (
	// ModeSubstring matches names or content containing Pattern.
	ModeSubstring Mode = iota
	// ModeRegex treats Pattern as a regular expression.
	ModeRegex
	// ModeGlob matches base names against a shell glob. Not valid for content.
	ModeGlob
)

// Mode string constants.
const (
	modeSubstring = "substring"
	modeRegex     = "regex"
	modeGlob      = "glob"
)

func (m Mode) String() string {
	switch m {
	case ModeRegex:
		return modeRegex
	case ModeGlob:
		return modeGlob
	default:
		return modeSubstring
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode parses "substring", "regex", or "glob" (case-insensitive).
// An empty string is ModeSubstring.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", modeSubstring:
		return ModeSubstring, nil
	case modeRegex, "regexp":
		return ModeRegex, nil
	case modeGlob:
		return ModeGlob, nil
	default:
		return ModeSubstring, fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, s)
	}
}

// Query holds the search criteria. Zero values disable a stage.
type Query struct {
	// Pattern matches base names, or content when Content is set.
	Pattern       string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Mode          Mode   `json:"mode" yaml:"mode"`
	CaseSensitive bool   `json:"case_sensitive" yaml:"case_sensitive"`

	// MinSize and MaxSize are inclusive. MaxSize 0 means no upper bound.
	MinSize uint64 `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize uint64 `json:"max_size,omitempty" yaml:"max_size,omitempty"`

	// ModifiedAfter and ModifiedBefore are inclusive. Zero means unbounded.
	ModifiedAfter  time.Time `json:"modified_after,omitzero" yaml:"modified_after,omitempty"`
	ModifiedBefore time.Time `json:"modified_before,omitzero" yaml:"modified_before,omitempty"`

	// Type is a ".ext" literal, a MIME substring like "image/", a category
	// name, or a bare extension.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Content applies Pattern to file content instead of names.
	Content bool `json:"content" yaml:"content"`

	// Directories lets directory records through the name, size, and date stages.
	Directories bool `json:"directories" yaml:"directories"`

	match func(string) bool
}

// Option is a functional option for configuring a Query.
type Option func(*Query)

// NewQuery creates a query with the given options. Call Compile before use.
func NewQuery(opts ...Option) *Query {
	q := &Query{}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// WithPattern sets the name or content pattern.
func WithPattern(pattern string) Option {
	return func(q *Query) {
		q.Pattern = pattern
	}
}

// WithMode sets how the pattern is interpreted.
func WithMode(m Mode) Option {
	return func(q *Query) {
		q.Mode = m
	}
}

// WithCaseSensitive toggles case-sensitive matching.
func WithCaseSensitive(b bool) Option {
	return func(q *Query) {
		q.CaseSensitive = b
	}
}

// WithSizeRange sets inclusive size bounds. max 0 means unbounded.
func WithSizeRange(minSize, maxSize uint64) Option {
	return func(q *Query) {
		q.MinSize = minSize
		q.MaxSize = maxSize
	}
}

// WithModifiedRange sets inclusive modification time bounds.
// A zero time leaves that side unbounded.
func WithModifiedRange(after, before time.Time) Option {
	return func(q *Query) {
		q.ModifiedAfter = after
		q.ModifiedBefore = before
	}
}

// WithType restricts matches to a type.
func WithType(t string) Option {
	return func(q *Query) {
		q.Type = strings.TrimSpace(t)
	}
}

// WithContent searches file content with the pattern. The pattern is then
// not applied to names; the name stage is skipped.
func WithContent(b bool) Option {
	return func(q *Query) {
		q.Content = b
	}
}

// WithDirectories includes directories in name, size, and date matches.
func WithDirectories(b bool) Option {
	return func(q *Query) {
		q.Directories = b
	}
}

// Compile validates the query and prepares its matcher.
func (q *Query) Compile() error {
	if q.MaxSize > 0 && q.MinSize > q.MaxSize {
		return fmt.Errorf("%w: min size %d exceeds max size %d", ErrInvalidQuery, q.MinSize, q.MaxSize)
	}
	if !q.ModifiedAfter.IsZero() && !q.ModifiedBefore.IsZero() && q.ModifiedAfter.After(q.ModifiedBefore) {
		return fmt.Errorf("%w: modified-after is later than modified-before", ErrInvalidQuery)
	}
	if q.Content && q.Mode == ModeGlob {
		return fmt.Errorf("%w: glob patterns cannot search content", ErrInvalidQuery)
	}
	if q.Type != "" && !validType(q.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuery, q.Type)
	}

	q.match = nil
	if q.Pattern == "" {
		return nil
	}

	switch q.Mode {
	case ModeRegex:
		expr := q.Pattern
		if !q.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		q.match = re.MatchString

	case ModeGlob:
		pattern := q.Pattern
		if !q.CaseSensitive {
			pattern = strings.ToLower(pattern)
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		if q.CaseSensitive {
			q.match = g.Match
		} else {
			q.match = func(s string) bool { return g.Match(strings.ToLower(s)) }
		}

	default:
		if q.CaseSensitive {
			needle := q.Pattern
			q.match = func(s string) bool { return strings.Contains(s, needle) }
		} else {
			needle := strings.ToLower(q.Pattern)
			q.match = func(s string) bool { return strings.Contains(strings.ToLower(s), needle) }
		}
	}
	return nil
}

// Match applies the compiled pattern to s. An empty pattern matches everything.
func (q *Query) Match(s string) bool {
	return q.match == nil || q.match(s)
}
