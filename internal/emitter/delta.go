package emitter

import (
	"time"
	"unicode/utf8"

	"github.com/roach88/jsonstreamer/internal/source"
)

// DeltaStrategy streams the raw document text as runs of characters.
//
// Characters are buffered until the buffer holds Threshold characters or
// the character just added is a boundary (one of } ] , ; . : or newline),
// and the buffer is then emitted as a KindDelta fragment. A non-empty
// remainder is emitted last. Concatenating every payload gives back the
// document text exactly.
type DeltaStrategy struct {
	// Threshold is the buffer size, in characters, that forces a flush.
	// Values below 1 mean DeltaThreshold.
	Threshold int

	// Interval is the pause before each fragment.
	Interval time.Duration
}

func (s DeltaStrategy) Mode() Mode           { return ModeDelta }
func (s DeltaStrategy) Delay() time.Duration { return s.Interval }
func (s DeltaStrategy) EndMarker() bool      { return true }

func (s DeltaStrategy) Open(doc *source.Document) Producer {
	threshold := s.Threshold
	if threshold < 1 {
		threshold = DeltaThreshold
	}
	return &deltaProducer{text: doc.Text, threshold: threshold}
}

type deltaProducer struct {
	text      string
	pos       int
	threshold int
}

func (p *deltaProducer) Next() (Fragment, bool) {
	if p.pos >= len(p.text) {
		return Fragment{}, false
	}
	start := p.pos
	for n := 1; p.pos < len(p.text); n++ {
		r, size := utf8.DecodeRuneInString(p.text[p.pos:])
		p.pos += size
		if n >= p.threshold || isBoundary(r) {
			break
		}
	}
	return Fragment{Kind: KindDelta, Text: p.text[start:p.pos]}, true
}

func isBoundary(r rune) bool {
	switch r {
	case '}', ']', ',', ';', '.', ':', '\n':
		return true
	}
	return false
}
