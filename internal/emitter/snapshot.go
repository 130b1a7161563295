package emitter

import (
	"time"

	"github.com/roach88/jsonstreamer/internal/source"
)

// SnapshotStrategy reveals a document one top-level member or element at a
// time. The first fragment is the empty container ({} or []); each following
// fragment is the whole accumulator after one more member or element was
// added, so the last fragment is the full document. A scalar document yields
// a single fragment holding the scalar.
type SnapshotStrategy struct {
	// Interval is the pause before each fragment, the first one included.
	Interval time.Duration
}

func (s SnapshotStrategy) Mode() Mode           { return ModeSnapshot }
func (s SnapshotStrategy) Delay() time.Duration { return s.Interval }
func (s SnapshotStrategy) EndMarker() bool      { return true }

func (s SnapshotStrategy) Open(doc *source.Document) Producer {
	return &snapshotProducer{acc: NewAccumulator(doc)}
}

type snapshotProducer struct {
	acc     *Accumulator
	started bool
}

func (p *snapshotProducer) Next() (Fragment, bool) {
	if !p.started {
		p.started = true
		return Fragment{Kind: KindSnapshot, Text: p.acc.Snapshot()}, true
	}
	if !p.acc.Advance() {
		return Fragment{}, false
	}
	return Fragment{Kind: KindSnapshot, Text: p.acc.Snapshot()}, true
}
