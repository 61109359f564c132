package sequencer

// ErrorKind identifies the kind of error reported to a Cursor mid-stream,
// as distinct from the Status returned directly by Add.
type ErrorKind int

const (
	// ErrorNone is the zero value; never delivered to SetError.
	ErrorNone ErrorKind = iota
	// ErrorBusy is delivered when Merge is called with an empty token.
	ErrorBusy
	// ErrorNoData is delivered when Merge finds ready empty.
	ErrorNoData
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorBusy:
		return "busy"
	case ErrorNoData:
		return "no data"
	default:
		return "none"
	}
}

// Cursor is the single-threaded sink Merge and Search write page-offsets
// to, in the order the k-way merge produces them. The sequencer writes to
// a Cursor from exactly one goroutine at a time; a Cursor implementation
// need not be safe for concurrent use from multiple goroutines.
type Cursor interface {
	// Put emits the next page-offset in merge order.
	Put(offset uint32)
	// SetError reports a terminal condition; no further Put calls follow.
	SetError(kind ErrorKind)
	// Complete signals that the merge finished successfully.
	Complete()
}

// SliceCursor is a Cursor that buffers emitted offsets into a slice. It is
// used by tests and by callers that want a synchronous, in-memory result
// rather than streaming consumption.
type SliceCursor struct {
	Offsets []uint32
	Err     ErrorKind
	Done    bool
}

// NewSliceCursor returns an empty SliceCursor ready to receive a merge or
// search result.
func NewSliceCursor() *SliceCursor {
	return &SliceCursor{}
}

func (c *SliceCursor) Put(offset uint32) {
	c.Offsets = append(c.Offsets, offset)
}

func (c *SliceCursor) SetError(kind ErrorKind) {
	c.Err = kind
}

func (c *SliceCursor) Complete() {
	c.Done = true
}
