// Package sequencer implements the in-memory staging sequencer of a
// time-series storage engine: a bounded, run-based insertion structure
// that absorbs a near-ordered stream of (parameter-id, timestamp,
// page-offset) samples, periodically promotes a fully-ordered prefix to a
// read-only "ready" batch for flushing, and serves merged, globally
// ordered time-range/parameter queries over everything currently staged.
//
// The design is a direct port of Akumuli's Sequencer (see
// original_source/src/sequencer.cpp in the reference corpus this package
// was built from): patience-sorting-style runs kept ordered by descending
// tail, a try-lock-only checkpoint protocol that never blocks a producer,
// and a heap-driven k-way merge for both flush and search.
package sequencer

import (
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sequencer owns the active runs, the ready batch awaiting drain, the
// checkpoint counter, and the checkpoint mutex. It is safe for concurrent
// use by multiple producers, one flusher, multiple searchers, and one
// closer, per spec.md §5.
type Sequencer struct {
	windowSize uint64
	locks      *runLocks
	logger     *zap.Logger
	metrics    *Metrics

	checkpointMu sync.Mutex // "held" means a promotion/drain is in progress.

	// activeMu stabilizes the active slice header itself (length and
	// backing array) against concurrent new-run creation, checkpoint
	// split, and Close's move-to-ready. Per-run content mutation is then
	// additionally guarded by that run's shard lock. Lock order across
	// the whole package is checkpointMu, then activeMu, then a shard
	// lock — never acquired in the opposite order — so the two never
	// deadlock against each other.
	activeMu sync.RWMutex

	highWater    uint64 // read/written via sync/atomic; see Add.
	checkpointID uint32 // read/written via sync/atomic; see Add.

	// active is kept ordered by each run's tail Sample, descending.
	active []Run
	ready  []Run
}

// New constructs a Sequencer from cfg. It returns ErrInvalidWindowSize or
// ErrInvalidShardCount if cfg fails Validate.
func New(cfg Config, logger *zap.Logger, metrics *Metrics) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Sequencer{
		windowSize: cfg.WindowSize,
		locks:      newRunLocks(cfg.ShardCount, cfg.SpinBudget, time.Duration(cfg.MaxBackoff)),
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// CheckpointToken is transferable evidence that the holder owns the
// checkpoint critical section: it is the Go rendering of the C++
// original's moved-out unique_lock. A nil *CheckpointToken is the empty
// token. Merge consumes a non-nil token exactly once; using a consumed
// token again is a programming error and panics, the same way unlocking
// an already-unlocked sync.Mutex does.
type CheckpointToken struct {
	seq      *Sequencer
	consumed bool
}

func (t *CheckpointToken) release() {
	if t == nil {
		return
	}
	if t.consumed {
		panic("sequencer: checkpoint token used twice")
	}
	t.consumed = true
	t.seq.checkpointMu.Unlock()
}

// Add validates sample against the high-water mark, may start a
// checkpoint, and inserts it into the run it extends. See spec.md §4.2.
func (s *Sequencer) Add(sample Sample) (Status, *CheckpointToken) {
	ts := sample.Timestamp
	hw := s.loadHighWater()

	var token *CheckpointToken
	if ts < hw {
		if hw-ts > s.windowSize {
			s.metrics.Adds.WithLabelValues(s.metrics.labelValues("late_write")...).Inc()
			return StatusLateWrite, nil
		}
		// Out-of-order but within one window: accepted, no checkpoint
		// attempt (the checkpoint boundary can only move forward, and a
		// sample below high_water can never be the one that crosses it).
	} else {
		cp := uint32(ts / s.windowSize)
		if cp > s.loadCheckpointID() {
			var ok bool
			token, ok = s.tryMakeCheckpoint(cp)
			if !ok {
				s.metrics.Adds.WithLabelValues(s.metrics.labelValues("busy")...).Inc()
				return StatusBusy, nil
			}
		}
	}

	s.bumpHighWater(ts)
	s.insert(sample)
	s.metrics.Adds.WithLabelValues(s.metrics.labelValues("success")...).Inc()
	return StatusSuccess, token
}

// insert locates the youngest run whose tail the sample can extend
// (lower-bound over active's descending-tail order) and appends to it, or
// creates a new run at the position that preserves the descending-tail
// invariant. See spec.md §4.2 step 3.
//
// The common case — extending an existing run — only needs activeMu's
// read lock plus that run's shard lock, so concurrent producers targeting
// runs in different shards never block each other. Creating a new run changes the
// slice header itself, so it takes the exclusive lock instead; this is
// the rarer path, since a patience-sorting run set grows far slower than
// the sample stream it absorbs.
func (s *Sequencer) insert(sample Sample) {
	s.activeMu.RLock()
	ix := lowerBoundTailDescending(s.active, sample)
	if ix < len(s.active) {
		s.locks.lock(ix)
		s.active[ix] = s.active[ix].Append(sample)
		s.locks.unlock(ix)
		s.activeMu.RUnlock()
		return
	}
	s.activeMu.RUnlock()

	s.activeMu.Lock()
	defer s.activeMu.Unlock()

	// Re-check under the exclusive lock: another goroutine may have
	// created the run we need while we waited.
	ix = lowerBoundTailDescending(s.active, sample)
	if ix < len(s.active) {
		s.active[ix] = s.active[ix].Append(sample)
		return
	}
	s.active = append(s.active, Run{sample})
	s.metrics.ActiveRuns.WithLabelValues(s.metrics.labelValues("")...).Set(float64(len(s.active)))
}

// tryMakeCheckpoint attempts to start a checkpoint promoting everything
// at or below the current checkpoint boundary to ready, moving checkpoint_id to
// newCP. It returns (token, true) on success — in which case the
// checkpoint mutex remains held, to be released by passing the token to
// Merge — or (nil, false) if the checkpoint mutex was already held, per
// spec.md §4.3's try-lock-only discipline.
func (s *Sequencer) tryMakeCheckpoint(newCP uint32) (*CheckpointToken, bool) {
	if !s.checkpointMu.TryLock() {
		return nil, false
	}

	start := time.Now()
	s.makeCheckpoint(newCP)
	s.metrics.CheckpointDuration.WithLabelValues(s.metrics.labelValues("")...).Observe(time.Since(start).Seconds())
	s.metrics.Checkpoints.WithLabelValues(s.metrics.labelValues("success")...).Inc()

	return &CheckpointToken{seq: s}, true
}

// makeCheckpoint performs the promotion described in spec.md §4.3. The
// caller must hold checkpointMu.
func (s *Sequencer) makeCheckpoint(newCP uint32) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.locks.lockAll()
	defer s.locks.unlockAll()

	if len(s.ready) != 0 {
		s.invariantBroken("ready non-empty at checkpoint entry")
	}

	oldCP := s.loadCheckpointID()
	splitTS := uint64(oldCP) * s.windowSize
	key := splitKey(splitTS)

	newActive := make([]Run, 0, len(s.active))
	for _, run := range s.active {
		prefix, suffix := run.splitAt(key)
		switch {
		case len(prefix) == 0:
			// All samples are newer than the boundary: keep as-is.
			newActive = append(newActive, run)
		case len(suffix) == 0:
			// All samples are older than the boundary: move wholesale.
			s.ready = append(s.ready, run)
		default:
			s.ready = append(s.ready, prefix)
			newActive = append(newActive, suffix)
		}
	}
	s.active = newActive

	s.storeCheckpointID(newCP)

	// Release fence: pairs with the acquire implied by reacquiring
	// checkpointMu or a shard lock (Go's memory model gives sync.Mutex
	// Unlock/Lock and sync/atomic operations this happens-before
	// guarantee directly, so no separate fence primitive is needed).

	s.logger.Debug("checkpoint promoted",
		zap.Uint32("old_checkpoint_id", oldCP),
		zap.Uint32("new_checkpoint_id", newCP),
		zap.Uint64("split_ts", splitTS),
		zap.Int("ready_runs", len(s.ready)),
		zap.Int("active_runs", len(s.active)),
	)
	s.metrics.ReadyDepth.WithLabelValues(s.metrics.labelValues("")...).Set(float64(len(s.ready)))
	s.metrics.ActiveRuns.WithLabelValues(s.metrics.labelValues("")...).Set(float64(len(s.active)))
}

func (s *Sequencer) invariantBroken(reason string) {
	s.logger.Error("sequencer invariant broken", zap.String("reason", reason))
	panic(ErrInvariantBroken)
}

// Close moves every active run into ready and returns a token for the
// caller to pass to Merge, draining the staged data at shutdown. If a
// checkpoint is already in progress it returns nil (the empty token).
// See spec.md §4.4.
func (s *Sequencer) Close() *CheckpointToken {
	if !s.checkpointMu.TryLock() {
		return nil
	}

	s.activeMu.Lock()
	s.locks.lockAll()
	if len(s.ready) != 0 {
		s.locks.unlockAll()
		s.activeMu.Unlock()
		s.invariantBroken("ready non-empty at close")
	}
	s.ready = append(s.ready, s.active...)
	s.active = nil
	s.locks.unlockAll()
	s.activeMu.Unlock()

	s.logger.Info("sequencer closing", zap.Int("ready_runs", len(s.ready)))
	return &CheckpointToken{seq: s}
}

// Merge consumes token and drains ready through a forward k-way merge,
// emitting page-offsets to cur. See spec.md §4.6.
func (s *Sequencer) Merge(token *CheckpointToken, cur Cursor) {
	if token == nil {
		cur.SetError(ErrorBusy)
		s.metrics.Merges.WithLabelValues(s.metrics.labelValues("busy")...).Inc()
		return
	}
	defer token.release()

	if len(s.ready) == 0 {
		cur.SetError(ErrorNoData)
		s.metrics.Merges.WithLabelValues(s.metrics.labelValues("no_data")...).Inc()
		return
	}

	kwayMerge(s.ready, Forward, cur)
	s.ready = nil
	s.metrics.ReadyDepth.WithLabelValues(s.metrics.labelValues("")...).Set(0)
	s.metrics.Merges.WithLabelValues(s.metrics.labelValues("success")...).Inc()
	cur.Complete()
}

// Query selects a time range and parameter subset for Search, and the
// traversal direction of the resulting merge. See spec.md §4.7.
type Query struct {
	LowerBound     uint64
	UpperBound     uint64
	ParamPredicate func(paramID uint64) bool
	Direction      Direction
}

func (q Query) matches(s Sample) bool {
	if !(q.LowerBound < s.Timestamp && s.Timestamp < q.UpperBound) {
		return false
	}
	return q.ParamPredicate == nil || q.ParamPredicate(s.ParamID)
}

// Search blocks on the checkpoint mutex, copies the subset of every
// active run matching q, and emits their k-way merge to cur. See
// spec.md §4.7.
func (s *Sequencer) Search(q Query, cur Cursor) {
	s.checkpointMu.Lock()
	defer s.checkpointMu.Unlock()
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()

	if len(s.ready) != 0 {
		s.invariantBroken("ready non-empty at search entry")
	}

	filtered := make([]Run, 0, len(s.active))
	for ix, run := range s.active {
		s.locks.lock(ix)
		filtered = append(filtered, run.filter(q.matches))
		s.locks.unlock(ix)
	}

	kwayMerge(filtered, q.Direction, cur)
	cur.Complete()
}

// CloseAndDrain is a convenience helper used by cmd/sequencerd's shutdown
// path: it calls Close and merges the returned token into cur
// synchronously. If Close returns the empty token (a checkpoint is in
// progress), nothing is drained and the returned error is
// ErrInvariantBroken; otherwise it returns nil. The error is collected
// with multierr.Append, in the manner of
// cmd/influx_inspect/export/parquet/table.go.
func (s *Sequencer) CloseAndDrain(cur Cursor) error {
	var errs error
	token := s.Close()
	if token == nil {
		errs = multierr.Append(errs, ErrInvariantBroken)
		return errs
	}
	s.Merge(token, cur)
	return errs
}

func (s *Sequencer) loadHighWater() uint64    { return loadUint64(&s.highWater) }
func (s *Sequencer) loadCheckpointID() uint32 { return loadUint32(&s.checkpointID) }

func (s *Sequencer) storeCheckpointID(v uint32) { storeUint32(&s.checkpointID, v) }

// bumpHighWater sets high_water to max(high_water, ts), matching
// spec.md §4.2 step 2.
func (s *Sequencer) bumpHighWater(ts uint64) {
	for {
		cur := s.loadHighWater()
		if ts <= cur {
			return
		}
		if casUint64(&s.highWater, cur, ts) {
			s.metrics.HighWaterMark.WithLabelValues(s.metrics.labelValues("")...).Set(float64(ts))
			return
		}
	}
}
