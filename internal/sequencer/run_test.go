package sequencer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s(ts, param uint64) Sample {
	return Sample{Timestamp: ts, ParamID: param, Offset: uint32(ts*1000 + param)}
}

func TestRunSplitAt(t *testing.T) {
	tests := []struct {
		name          string
		run           Run
		splitTS       uint64
		wantPrefixLen int
		wantSuffixLen int
	}{
		{
			name:          "boundary below everything",
			run:           Run{s(1, 0), s(5, 0), s(15, 0)},
			splitTS:       0,
			wantPrefixLen: 0,
			wantSuffixLen: 3,
		},
		{
			name:          "boundary above everything",
			run:           Run{s(1, 0), s(5, 0)},
			splitTS:       10,
			wantPrefixLen: 2,
			wantSuffixLen: 0,
		},
		{
			name:          "boundary mid-run",
			run:           Run{s(8, 0), s(9, 0), s(11, 0), s(12, 0)},
			splitTS:       10,
			wantPrefixLen: 2,
			wantSuffixLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, suffix := tt.run.splitAt(splitKey(tt.splitTS))
			assert.Len(t, prefix, tt.wantPrefixLen)
			assert.Len(t, suffix, tt.wantSuffixLen)
			assert.Equal(t, tt.run, append(append(Run{}, prefix...), suffix...))
		})
	}
}

func TestRunSplitAtDoesNotAlias(t *testing.T) {
	run := Run{s(1, 0), s(2, 0), s(3, 0)}
	_, suffix := run.splitAt(splitKey(1))
	require.Len(t, suffix, 2)

	suffix = suffix.Append(s(99, 0))
	assert.Equal(t, uint64(3), run[2].Timestamp, "appending to suffix must not corrupt the original run's backing array")
}

func TestLowerBoundTailDescending(t *testing.T) {
	runs := []Run{
		{s(1, 0), s(12, 0)},
		{s(1, 0), s(9, 0), s(11, 0)},
		{s(1, 0), s(5, 0)},
	}

	tests := []struct {
		probe Sample
		want  int
	}{
		{probe: s(20, 0), want: 0}, // extends run[0] (tail 12)
		{probe: s(12, 0), want: 0}, // equal to tail still extends
		{probe: s(11, 0), want: 1}, // tail(12) > 11, tail(11) <= 11
		{probe: s(10, 0), want: 2}, // tails 12 and 11 both > 10, tail(5) <= 10
		{probe: s(4, 0), want: 3},  // no run qualifies, new run needed
	}

	for _, tt := range tests {
		got := lowerBoundTailDescending(runs, tt.probe)
		assert.Equal(t, tt.want, got, "probe %v", tt.probe)
	}
}

func TestRunFilter(t *testing.T) {
	run := Run{s(1, 1), s(2, 2), s(3, 1), s(4, 2)}
	got := run.filter(func(sm Sample) bool { return sm.ParamID == 1 })
	want := Run{s(1, 1), s(3, 1)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filter() mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSorted(t *testing.T) {
	assert.True(t, Run{s(1, 0), s(2, 0), s(2, 1)}.sorted())
	assert.False(t, Run{s(2, 0), s(1, 0)}.sorted())
}
