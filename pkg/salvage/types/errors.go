package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxPathLength is the longest path accepted before any I/O is attempted.
const MaxPathLength = 4096

var (
	// ErrInvalidPath indicates a malformed, over-long, or traversal-unsafe path.
	ErrInvalidPath = errors.New("invalid path")

	// ErrIntegrity indicates a content hash mismatch after a verified copy.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrCorruptArchive indicates a truncated or malformed archive.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrNotImplemented indicates an operation that exists only as a placeholder.
	ErrNotImplemented = errors.New("not implemented")
)

// ValidatePath rejects paths that are empty, contain NUL bytes, or exceed MaxPathLength.
func ValidatePath(path string) error {
	switch {
	case strings.TrimSpace(path) == "":
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	case strings.ContainsRune(path, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidPath, path)
	case len(path) > MaxPathLength:
		return fmt.Errorf("%w: path exceeds %d bytes", ErrInvalidPath, MaxPathLength)
	}
	return nil
}

// ValidateRelative checks a slash-separated relative path taken from an
// untrusted source and rejects anything that would escape its base directory.
func ValidateRelative(rel string) error {
	if err := ValidatePath(rel); err != nil {
		return err
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return fmt.Errorf("%w: %q escapes the destination", ErrInvalidPath, rel)
	}
	return nil
}
