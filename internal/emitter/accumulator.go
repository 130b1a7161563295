package emitter

import (
	"github.com/roach88/jsonstreamer/internal/source"
)

// Accumulator is the partially built mirror of a document.
//
// It starts as the empty container matching the document's shape ({} or [])
// and grows by one top-level member or element per call to Advance, always
// taking the next one from the document in source order. There is no way to
// remove, replace or reorder what has been added. A scalar document's
// accumulator is the scalar itself and never advances.
type Accumulator struct {
	src  *source.Document
	next int

	// body holds the serialized members or elements added so far,
	// comma separated, without the enclosing brackets.
	body []byte
}

// NewAccumulator creates an empty accumulator for doc.
func NewAccumulator(doc *source.Document) *Accumulator {
	return &Accumulator{src: doc}
}

// Len returns how many members or elements have been added.
func (a *Accumulator) Len() int { return a.next }

// Done reports whether the accumulator equals its document.
func (a *Accumulator) Done() bool {
	if a.src.Kind() == source.KindScalar {
		return true
	}
	return a.next >= a.src.Len()
}

// Advance appends the next member or element. It returns false, leaving the
// accumulator unchanged, once Done.
func (a *Accumulator) Advance() bool {
	if a.Done() {
		return false
	}
	if a.next > 0 {
		a.body = append(a.body, ',')
	}
	switch a.src.Kind() {
	case source.KindObject:
		m := a.src.Member(a.next)
		key, err := encodeJSON(m.Key)
		if err != nil {
			// Keys come from a decoded document and are valid strings.
			panic(err)
		}
		a.body = append(a.body, key...)
		a.body = append(a.body, ':')
		a.body = append(a.body, m.Value...)
	case source.KindArray:
		a.body = append(a.body, a.src.Element(a.next)...)
	}
	a.next++
	return true
}

// Snapshot returns the current state serialized as compact JSON.
func (a *Accumulator) Snapshot() string {
	switch a.src.Kind() {
	case source.KindObject:
		return "{" + string(a.body) + "}"
	case source.KindArray:
		return "[" + string(a.body) + "]"
	default:
		return string(a.src.Scalar())
	}
}
