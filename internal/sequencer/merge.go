package sequencer

import "container/heap"

// Direction selects traversal order for a k-way merge.
type Direction int

const (
	// Forward merges runs front-to-back in non-decreasing key order.
	Forward Direction = iota
	// Backward merges runs back-to-front in non-increasing key order.
	Backward
)

// mergeItem is one run's current head during a k-way merge: its next
// unread sample, which run it came from (for stable tie-breaking and to
// know where to pull the next element from), and the cursor position
// within that run.
type mergeItem struct {
	sample Sample
	run    int // index into the runs slice
	pos    int // index of sample within runs[run]
}

// mergeHeap implements container/heap.Interface over mergeItems. less
// picks the ordering: Forward uses Sample.Less directly (a min-heap on
// key), Backward inverts it (a max-heap on key). Ties on key are broken by
// run index, which makes iteration order deterministic for a given call
// even though it is otherwise arbitrary across runs.
type mergeHeap struct {
	items []mergeItem
	less  func(a, b Sample) bool
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.sample.Timestamp == b.sample.Timestamp && a.sample.ParamID == b.sample.ParamID {
		return a.run < b.run
	}
	return h.less(a.sample, b.sample)
}

func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) Push(x interface{}) {
	h.items = append(h.items, x.(mergeItem))
}

func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// kwayMerge merges runs in the given direction, emitting each sample's
// offset to cur in merge order. It does not mutate runs. Complexity is
// O(K log R): K total samples across all runs, R = len(runs).
func kwayMerge(runs []Run, dir Direction, cur Cursor) {
	h := &mergeHeap{less: Sample.Less}
	if dir == Backward {
		h.less = func(a, b Sample) bool { return b.Less(a) }
	}

	// next returns the sample at logical position pos of run r walked in
	// dir, and whether that position is valid.
	next := func(r, pos int) (Sample, bool) {
		run := runs[r]
		if dir == Forward {
			if pos >= len(run) {
				return Sample{}, false
			}
			return run[pos], true
		}
		idx := len(run) - 1 - pos
		if idx < 0 {
			return Sample{}, false
		}
		return run[idx], true
	}

	h.items = make([]mergeItem, 0, len(runs))
	for r := range runs {
		if s, ok := next(r, 0); ok {
			h.items = append(h.items, mergeItem{sample: s, run: r, pos: 0})
		}
	}
	heap.Init(h)

	for h.Len() > 0 {
		top := h.items[0]
		cur.Put(top.sample.Offset)
		if s, ok := next(top.run, top.pos+1); ok {
			h.items[0] = mergeItem{sample: s, run: top.run, pos: top.pos + 1}
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
}
