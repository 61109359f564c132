package sequencer

import (
	"sync/atomic"
	"time"
)

// runLocks is a fixed-size array of independent test-and-set flags that
// shard contention across runs: lock(i) never blocks lock(j) for
// i & mask != j & mask. The array is deliberately smaller than the
// maximum number of runs a Sequencer can hold — two distinct runs may
// share a shard, which only ever costs concurrency, never correctness,
// because the expected number of active runs stays small for a
// near-ordered input stream (see the patience-sorting rationale in
// Sequencer.insert).
type runLocks struct {
	flags      []int32
	mask       uint32
	spinBudget int
	maxBackoff time.Duration
}

// newRunLocks returns a runLocks sharding across n shards. n must be a
// power of two.
func newRunLocks(n int, spinBudget int, maxBackoff time.Duration) *runLocks {
	if n <= 0 || n&(n-1) != 0 {
		panic("sequencer: shard count must be a power of two")
	}
	return &runLocks{
		flags:      make([]int32, n),
		mask:       uint32(n - 1),
		spinBudget: spinBudget,
		maxBackoff: maxBackoff,
	}
}

func (l *runLocks) shardOf(ix int) uint32 {
	return uint32(ix) & l.mask
}

// lock acquires the shard guarding run index ix. It spin-waits using
// atomic compare-and-swap for up to spinBudget attempts, then falls back
// to sleeping with linear backoff capped at maxBackoff. It never gives up.
func (l *runLocks) lock(ix int) {
	shard := &l.flags[l.shardOf(ix)]
	spins := l.spinBudget
	backoff := time.Duration(0)
	for {
		if atomic.CompareAndSwapInt32(shard, 0, 1) {
			return
		}
		if spins > 0 {
			spins--
			continue
		}
		time.Sleep(backoff)
		if backoff < l.maxBackoff {
			backoff += time.Millisecond
			if backoff > l.maxBackoff {
				backoff = l.maxBackoff
			}
		}
	}
}

// unlock releases the shard guarding run index ix.
func (l *runLocks) unlock(ix int) {
	atomic.StoreInt32(&l.flags[l.shardOf(ix)], 0)
}

// lockAll acquires every shard, in index order, quiescing all concurrent
// inserts and searches. Used only by makeCheckpoint and Close.
func (l *runLocks) lockAll() {
	for i := range l.flags {
		l.lock(i)
	}
}

// unlockAll releases every shard, in index order.
func (l *runLocks) unlockAll() {
	for i := range l.flags {
		l.unlock(i)
	}
}
