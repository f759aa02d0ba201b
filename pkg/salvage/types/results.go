package types

import (
	"slices"
	"time"
)

// EventKind is the kind of a timeline event.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventAccessed EventKind = "accessed"
	EventDeleted  EventKind = "deleted"
)

// TimelineEntry is one reconstructed event for a file.
// A record may appear in several entries, one per distinct timestamp.
type TimelineEntry struct {
	Time   time.Time  `json:"time" yaml:"time"`
	Kind   EventKind  `json:"kind" yaml:"kind"`
	Record FileRecord `json:"record" yaml:"record"`
}

// Recent returns at most n entries from an ascending timeline, newest first.
// A non-positive n returns every entry.
func Recent(timeline []TimelineEntry, n int) []TimelineEntry {
	out := slices.Clone(timeline)
	slices.Reverse(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// DuplicateGroup is a set of two or more files sharing a content hash.
type DuplicateGroup struct {
	Hash  string       `json:"hash" yaml:"hash"`
	Size  uint64       `json:"size" yaml:"size"`
	Files []FileRecord `json:"files" yaml:"files"`
}

// Wasted returns the bytes that could be reclaimed by keeping one copy.
func (g *DuplicateGroup) Wasted() uint64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * uint64(len(g.Files)-1)
}

// SuspiciousFile is a file flagged by one or more heuristic rules.
// It is a prompt for manual review, not a verdict.
type SuspiciousFile struct {
	Record  FileRecord `json:"record" yaml:"record"`
	Reasons []string   `json:"reasons" yaml:"reasons"`
}

// AnalysisResult aggregates statistics derived from a set of records.
type AnalysisResult struct {
	TotalFiles       int            `json:"total_files" yaml:"total_files"`
	TotalDirectories int            `json:"total_directories" yaml:"total_directories"`
	TotalSize        uint64         `json:"total_size" yaml:"total_size"`
	Extensions       map[string]int `json:"extensions" yaml:"extensions"`

	// LargestFiles holds the biggest non-directory records, descending.
	LargestFiles []FileRecord `json:"largest_files" yaml:"largest_files"`

	Duplicates []DuplicateGroup `json:"duplicates" yaml:"duplicates"`
	Suspicious []SuspiciousFile `json:"suspicious" yaml:"suspicious"`

	// Timeline is sorted ascending by time.
	Timeline []TimelineEntry `json:"timeline" yaml:"timeline"`

	AnalyzedAt time.Time `json:"analyzed_at" yaml:"analyzed_at"`
}

// Operation names a recovery pipeline run.
type Operation string

const (
	OpRecover        Operation = "recover"
	OpBackup         Operation = "backup"
	OpRestore        Operation = "restore"
	OpVerify         Operation = "verify"
	OpRecoverDeleted Operation = "recover-deleted"
)

// RecoveryResult is the outcome of a recovery, backup, or restore run.
// Success means the run finished with zero errors, not that anything was written.
type RecoveryResult struct {
	ID             string        `json:"id" yaml:"id"`
	Operation      Operation     `json:"operation" yaml:"operation"`
	Source         string        `json:"source" yaml:"source"`
	Destination    string        `json:"destination" yaml:"destination"`
	Success        bool          `json:"success" yaml:"success"`
	RecoveredFiles []FileRecord  `json:"recovered_files" yaml:"recovered_files"`
	Errors         []string      `json:"errors" yaml:"errors"`
	TotalFiles     int           `json:"total_files" yaml:"total_files"`
	TotalBytes     uint64        `json:"total_bytes" yaml:"total_bytes"`
	Duration       time.Duration `json:"duration" yaml:"duration"`

	// ArchivePath is set for compressed backups.
	ArchivePath string `json:"archive_path,omitempty" yaml:"archive_path,omitempty"`

	// Unsupported marks a result returned by an operation that is not implemented.
	Unsupported bool `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
}
