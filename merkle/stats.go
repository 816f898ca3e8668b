package merkle

import (
	"sync/atomic"
	"time"
)

// warmupMeasurements is the number of leading Set timings discarded before
// the running average starts accumulating, so JIT/allocator warm-up does
// not skew the reported average. Mirrors the teacher's trie_committer
// metrics, which apply the same discard to its commit-duration average.
const warmupMeasurements = 20

// Stats is a point-in-time snapshot of engine activity, returned by
// Engine.Stats.
type Stats struct {
	SetCalls       uint64
	AverageSetTime time.Duration
	StagingSize    int
	TreeSize       int
}

// commitStats accumulates Set-call timing and counts across the engine's
// lifetime. All fields are accessed via atomics so a future concurrent
// wrapper can read stats without holding the engine's own lock.
type commitStats struct {
	setCalls   atomic.Uint64
	totalNanos atomic.Int64
}

// recordSet folds one Set call's duration into the running average,
// discarding the first warmupMeasurements calls.
func (c *commitStats) recordSet(d time.Duration) {
	n := c.setCalls.Add(1)
	if n <= warmupMeasurements {
		return
	}
	c.totalNanos.Add(int64(d))
}

func (c *commitStats) averageSetTime() time.Duration {
	n := c.setCalls.Load()
	if n <= warmupMeasurements {
		return 0
	}
	measured := n - warmupMeasurements
	if measured == 0 {
		return 0
	}
	return time.Duration(c.totalNanos.Load() / int64(measured))
}
