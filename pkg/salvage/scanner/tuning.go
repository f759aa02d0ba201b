package scanner

import "runtime"

// Worker limits for AutoWorkers.
const (
	// minAutoWorkers keeps some parallelism on small hosts; hashing waits on disk.
	minAutoWorkers = 4

	// maxAutoWorkers caps the pool to avoid excessive context switching.
	maxAutoWorkers = 64

	// workersPerCore oversubscribes cores since workers block on reads.
	workersPerCore = 2
)

// AutoWorkers returns a worker count sized for the host.
func AutoWorkers() int {
	return workersFor(runtime.NumCPU())
}

// workersFor returns workersPerCore per core, clamped to
// [minAutoWorkers, maxAutoWorkers].
func workersFor(cores int) int {
	return min(max(cores*workersPerCore, minAutoWorkers), maxAutoWorkers)
}
