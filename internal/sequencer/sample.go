package sequencer

import "fmt"

// MaxParamID is the sentinel used as the high end of a checkpoint split
// key. A split key of (ts, MaxParamID) sorts after every real sample with
// timestamp ts, so samples at exactly the closing boundary are assigned to
// the window being closed rather than the one being opened.
const MaxParamID = ^uint64(0)

// Sample is the unit of storage staged by the sequencer: a timestamped
// point for a parameter, together with the opaque offset of its payload in
// the page store. Sample is a value type; it is never mutated after
// construction.
type Sample struct {
	Timestamp uint64
	ParamID   uint64
	Offset    uint32
}

// Less reports whether s sorts strictly before o under the sequencer's
// total order: lexicographic on (Timestamp, ParamID). Offset does not
// participate in ordering.
func (s Sample) Less(o Sample) bool {
	if s.Timestamp != o.Timestamp {
		return s.Timestamp < o.Timestamp
	}
	return s.ParamID < o.ParamID
}

func (s Sample) String() string {
	return fmt.Sprintf("Sample{ts:%d, param:%d, off:%d}", s.Timestamp, s.ParamID, s.Offset)
}

// splitKey returns the probe sample used to partition a run at a
// checkpoint boundary: every real sample with Timestamp < ts sorts before
// it, and every real sample with Timestamp == ts also sorts before it,
// because MaxParamID is larger than any real parameter id. Only samples
// with Timestamp > ts sort after it.
func splitKey(ts uint64) Sample {
	return Sample{Timestamp: ts, ParamID: MaxParamID}
}
