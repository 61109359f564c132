package sequencer

import "sort"

// Run is an ordered, non-decreasing sequence of Samples. A Run grows only
// by appending to its tail; it is never re-sorted in place. Runs are
// moved between the sequencer's active and ready collections by slice
// re-slicing, never by copying elements one at a time, so a move stays
// O(1) regardless of the run's length.
type Run []Sample

// Tail returns the last Sample in the run. Tail must not be called on an
// empty run.
func (r Run) Tail() Sample {
	return r[len(r)-1]
}

// Append returns the run with s appended to its tail. The caller is
// responsible for holding the run's shard lock for the duration of the
// append and for only ever appending samples that do not violate the
// non-decreasing invariant (the sequencer's insertion path enforces this
// by construction: it only extends a run whose tail is <= the new
// sample).
func (r Run) Append(s Sample) Run {
	return append(r, s)
}

// sorted reports whether the run is non-decreasing under Sample.Less, a
// property a property test can check but which the insertion path
// preserves by never calling Append out of order.
func (r Run) sorted() bool {
	for i := 1; i < len(r); i++ {
		if r[i].Less(r[i-1]) {
			return false
		}
	}
	return true
}

// splitAt partitions the run at the first sample whose key is >= key,
// found by binary search (the run is sorted, so this is the Go
// equivalent of std::lower_bound over a vector). It returns the prefix
// (samples older than key) and the suffix (samples at or after key). Both
// returned runs share the receiver's backing array, but each is capped at
// its own length, so an Append to either half reallocates instead of
// overwriting the other (Sequencer.makeCheckpoint moves the prefix to
// ready and keeps appending to the suffix as an active run).
func (r Run) splitAt(key Sample) (prefix, suffix Run) {
	p := sort.Search(len(r), func(i int) bool {
		return !r[i].Less(key)
	})
	return r[:p:p], r[p:len(r):len(r)]
}

// filter returns a new Run holding a copy of every sample in r for which
// keep returns true. The copy preserves run order, so the result is
// itself a valid (non-decreasing) Run. Used by Sequencer.Search, which
// must not hand out slices that alias live, still-mutable runs.
func (r Run) filter(keep func(Sample) bool) Run {
	out := make(Run, 0, len(r))
	for _, s := range r {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// lowerBoundTailDescending finds the position of the first run in runs
// (ordered by descending tail) whose tail is <= probe, i.e. the youngest
// run that probe could legally extend. It returns len(runs) if no such
// run exists (every run's tail exceeds probe, and a new run must be
// created).
func lowerBoundTailDescending(runs []Run, probe Sample) int {
	return sort.Search(len(runs), func(i int) bool {
		return !probe.Less(runs[i].Tail())
	})
}
