package emitter

import (
	"time"
	"unicode/utf8"

	"github.com/roach88/jsonstreamer/internal/source"
)

// RawStrategy emits the document text one character per fragment with no
// structure at all. It has no end marker: the stream simply stops.
type RawStrategy struct {
	Interval time.Duration
}

func (s RawStrategy) Mode() Mode           { return ModeRaw }
func (s RawStrategy) Delay() time.Duration { return s.Interval }
func (s RawStrategy) EndMarker() bool      { return false }

func (s RawStrategy) Open(doc *source.Document) Producer {
	return &rawProducer{text: doc.Text}
}

type rawProducer struct {
	text string
	pos  int
}

func (p *rawProducer) Next() (Fragment, bool) {
	if p.pos >= len(p.text) {
		return Fragment{}, false
	}
	_, size := utf8.DecodeRuneInString(p.text[p.pos:])
	start := p.pos
	p.pos += size
	return Fragment{Kind: KindChar, Text: p.text[start:p.pos]}, true
}
