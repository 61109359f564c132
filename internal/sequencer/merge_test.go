package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func offsetsOf(samples ...Sample) []uint32 {
	out := make([]uint32, len(samples))
	for i, sm := range samples {
		out[i] = sm.Offset
	}
	return out
}

func TestKwayMergeForward(t *testing.T) {
	runs := []Run{
		{s(1, 0), s(4, 0), s(9, 0)},
		{s(2, 0), s(2, 1), s(5, 0)},
		{s(3, 0)},
	}

	cur := NewSliceCursor()
	kwayMerge(runs, Forward, cur)

	want := offsetsOf(s(1, 0), s(2, 0), s(2, 1), s(3, 0), s(4, 0), s(5, 0), s(9, 0))
	assert.Equal(t, want, cur.Offsets)
}

func TestKwayMergeBackward(t *testing.T) {
	runs := []Run{
		{s(1, 0), s(4, 0), s(9, 0)},
		{s(2, 0), s(5, 0)},
	}

	cur := NewSliceCursor()
	kwayMerge(runs, Backward, cur)

	want := offsetsOf(s(9, 0), s(5, 0), s(4, 0), s(2, 0), s(1, 0))
	assert.Equal(t, want, cur.Offsets)
}

func TestKwayMergeEmpty(t *testing.T) {
	cur := NewSliceCursor()
	kwayMerge(nil, Forward, cur)
	assert.Empty(t, cur.Offsets)
}

func TestKwayMergeSingleRun(t *testing.T) {
	runs := []Run{{s(1, 0), s(2, 0), s(3, 0)}}
	cur := NewSliceCursor()
	kwayMerge(runs, Forward, cur)
	assert.Equal(t, offsetsOf(s(1, 0), s(2, 0), s(3, 0)), cur.Offsets)
}

func TestKwayMergeTieBreakIsStableByRunIndex(t *testing.T) {
	runs := []Run{
		{{Timestamp: 1, ParamID: 0, Offset: 100}},
		{{Timestamp: 1, ParamID: 0, Offset: 200}},
	}
	cur := NewSliceCursor()
	kwayMerge(runs, Forward, cur)
	assert.Equal(t, []uint32{100, 200}, cur.Offsets)
}
