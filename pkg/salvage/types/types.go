// Package types provides core data types for the salvage forensics engine.
// It includes the file record produced by scanning, the aggregate results of
// analysis and recovery runs, and utility functions for sizes and paths.
package types

import (
	"path/filepath"
	"strings"
	"time"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// HiddenPrefix marks a file or directory name as hidden.
const HiddenPrefix = "."

// FileRecord describes one filesystem object visited by a scan.
// Records are created once per scan pass and are never mutated afterwards.
type FileRecord struct {
	// Path is the absolute path to the entry.
	Path string `json:"path" yaml:"path"`

	// Size is the entry size in bytes.
	Size uint64 `json:"size" yaml:"size"`

	// Created is the birth time of the entry. Falls back to Modified
	// on filesystems that do not record it.
	Created time.Time `json:"created" yaml:"created"`

	// Modified is the last modification time.
	Modified time.Time `json:"modified" yaml:"modified"`

	// Accessed is the last access time.
	Accessed time.Time `json:"accessed" yaml:"accessed"`

	// Permissions is the symbolic permission string, e.g. "rw-r--r--".
	Permissions string `json:"permissions" yaml:"permissions"`

	// Owner is the owning user name (or numeric id if it cannot be resolved).
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`

	// Group is the owning group name (or numeric id if it cannot be resolved).
	Group string `json:"group,omitempty" yaml:"group,omitempty"`

	// MimeType is guessed from the extension only.
	MimeType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`

	// Hash is the lowercase hex content digest. Empty for directories and
	// for files that could not be hashed.
	Hash string `json:"hash,omitempty" yaml:"hash,omitempty"`

	IsDir     bool `json:"is_dir" yaml:"is_dir"`
	IsSymlink bool `json:"is_symlink" yaml:"is_symlink"`
	IsHidden  bool `json:"is_hidden" yaml:"is_hidden"`

	// IsDeleted is reserved for undelete support and is always false.
	IsDeleted bool `json:"is_deleted" yaml:"is_deleted"`
}

// Name returns the base name of the record's path.
func (r *FileRecord) Name() string {
	return filepath.Base(r.Path)
}

// Ext returns the lowercase extension including the dot, or "" if none.
func (r *FileRecord) Ext() string {
	return strings.ToLower(filepath.Ext(r.Path))
}

// HumanSize returns the size formatted with binary (IEC) units.
func (r *FileRecord) HumanSize() string {
	return FormatSize(int64(r.Size))
}

// ScanError pairs a path with the error encountered while scanning it.
type ScanError struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// IsHiddenName reports whether a base name is hidden.
func IsHiddenName(name string) bool {
	return strings.HasPrefix(name, HiddenPrefix) && name != "." && name != ".."
}
