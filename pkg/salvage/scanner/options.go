package scanner

import (
	"fmt"
	"time"

	"github.com/jamesainslie/salvage/pkg/salvage/cache"
	"github.com/jamesainslie/salvage/pkg/salvage/events"
	"github.com/jamesainslie/salvage/pkg/salvage/hasher"
	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// Unlimited disables the depth limit.
const Unlimited = -1

// DefaultWorkers is the number of concurrent walk and hash workers.
const DefaultWorkers = 4

// DigestCache remembers digests between scans. *cache.Cache satisfies it.
// Digests computed during a scan are written in one batch when it completes.
type DigestCache interface {
	Lookup(algorithm, path string, size int64, mtime time.Time) (string, bool)
	RememberAll(algorithm string, records []cache.Record) error
}

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory to scan.
	Root string

	// MaxDepth limits recursion. The root's direct children are depth 0.
	// A directory at MaxDepth is recorded but its contents are not.
	// Unlimited (-1) disables the limit.
	MaxDepth int

	// IncludeHidden keeps entries whose name starts with a dot.
	IncludeHidden bool

	// IncludeDeleted adds a path-only placeholder record for entries
	// whose metadata cannot be read.
	IncludeDeleted bool

	// FollowSymlinks descends into symlinked directories. Loops are ignored.
	FollowSymlinks bool

	// SkipHash leaves FileRecord.Hash empty. Used by callers that only need metadata.
	SkipHash bool

	// Algorithm is the content digest algorithm.
	Algorithm hasher.Algorithm

	// Workers is the number of concurrent walk workers. Files are hashed
	// on the worker that visits them. Zero sizes the pool with AutoWorkers.
	Workers int

	// Observer receives scan events. May be nil.
	Observer events.Observer

	// Cache is an optional digest cache for speeding up repeat scans.
	Cache DigestCache
}

// DefaultOptions returns options with unlimited depth and the default algorithm.
func DefaultOptions() Options {
	return Options{
		MaxDepth:  Unlimited,
		Algorithm: hasher.DefaultAlgorithm,
		Workers:   DefaultWorkers,
	}
}

// Validate checks the options and applies defaults for zero values.
func (o *Options) Validate() error {
	if err := types.ValidatePath(o.Root); err != nil {
		return err
	}
	if o.MaxDepth < Unlimited {
		return fmt.Errorf("max depth %d is invalid, use %d for unlimited", o.MaxDepth, Unlimited)
	}
	switch {
	case o.Workers == 0:
		o.Workers = AutoWorkers()
	case o.Workers < 0:
		o.Workers = DefaultWorkers
	}
	algo, err := hasher.ParseAlgorithm(string(o.Algorithm))
	if err != nil {
		return err
	}
	o.Algorithm = algo
	return nil
}
