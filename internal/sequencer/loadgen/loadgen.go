// Package loadgen generates deterministic, seedable streams of samples
// for exercising a Sequencer under controlled out-of-orderness, in place
// of a real ingestion pipeline. It backs the sequencerd smoke-test
// command and is not for production use.
package loadgen

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/akumuli/sequencer/internal/sequencer"
)

// Stream produces a pseudo-random but fully reproducible sequence of
// samples: hashing a running counter with xxhash (the same hash the
// engine layer uses to route shard keys, see tsdb/engine/tsm1/ring.go)
// stands in for a real RNG, so a given seed always replays byte-for-byte
// identically, without pulling in math/rand's global state.
type Stream struct {
	seed    uint64
	counter uint64

	windowSize    uint64
	jitter        uint64 // max backward displacement, in timestamp units
	paramCount    uint64
	nextTimestamp uint64
}

// NewStream builds a Stream with the given seed. windowSize should match
// the Sequencer under test's configured window; jitter bounds how far
// behind the running high-water mark a generated sample's timestamp may
// fall (0 disables out-of-order generation).
func NewStream(seed uint64, windowSize, jitter, paramCount uint64) *Stream {
	return &Stream{
		seed:       seed,
		windowSize: windowSize,
		jitter:     jitter,
		paramCount: paramCount,
	}
}

func (s *Stream) hash(salt uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], s.seed^salt)
	binary.LittleEndian.PutUint64(buf[8:16], s.counter)
	return xxhash.Sum64(buf[:])
}

// Next advances the stream by one sample and returns it. Offsets are
// assigned as the monotonically increasing counter value, so callers can
// recover generation order from a drained/searched offset.
func (s *Stream) Next() sequencer.Sample {
	offset := uint32(s.counter)
	s.counter++

	s.nextTimestamp++
	ts := s.nextTimestamp
	if s.jitter > 0 {
		back := s.hash(1) % (s.jitter + 1)
		if back < ts {
			ts -= back
		}
	}

	paramID := s.hash(2)
	if s.paramCount > 0 {
		paramID %= s.paramCount
	}

	return sequencer.Sample{Timestamp: ts, ParamID: paramID, Offset: offset}
}
