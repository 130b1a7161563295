package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/creachadair/jtree"
)

// Kind is the shape of a document's top-level value.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "scalar"
	}
}

// Member is a single top-level key/value pair of an object document.
// Value is compact JSON.
type Member struct {
	Key   string
	Value json.RawMessage
}

// Document is a loaded JSON document. It is immutable once constructed and
// safe to share between goroutines.
type Document struct {
	// Name is the document name as requested.
	Name string

	// Path is the file the document was read from, empty for Parse.
	Path string

	// Text is the raw document text, unmodified.
	Text string

	kind     Kind
	members  []Member
	elements []json.RawMessage
	scalar   json.RawMessage
}

// Parse parses text as a single JSON value. Leading and trailing whitespace
// is allowed; anything else after the value is an error.
//
// Duplicate top-level object keys keep the position of their first
// occurrence and the value of their last, which matches what decoding the
// text into a map yields.
func Parse(name string, text []byte) (*Document, error) {
	doc := &Document{Name: name, Text: string(text)}
	h := &documentHandler{doc: doc, index: make(map[string]int)}
	st := jtree.NewStream(bytes.NewReader(text))

	// SyntaxError unwraps to io.EOF on truncated input, so compare exactly.
	if err := st.ParseOne(h); err == io.EOF {
		return nil, NewInvalidError(name, errors.New("document is empty"))
	} else if err != nil {
		return nil, NewInvalidError(name, err)
	}
	if err := st.ParseOne(h); err == nil {
		return nil, NewInvalidError(name, errTrailingData)
	} else if err != io.EOF {
		return nil, NewInvalidError(name, err)
	}
	return doc, nil
}

// Kind returns the shape of the top-level value.
func (d *Document) Kind() Kind { return d.kind }

// Len returns the number of top-level members or elements. A scalar
// document has length 1.
func (d *Document) Len() int {
	switch d.kind {
	case KindObject:
		return len(d.members)
	case KindArray:
		return len(d.elements)
	default:
		return 1
	}
}

// Member returns the i'th top-level member of an object document.
func (d *Document) Member(i int) Member { return d.members[i] }

// Element returns the i'th top-level element of an array document.
func (d *Document) Element(i int) json.RawMessage { return d.elements[i] }

// Scalar returns the compact text of a scalar document.
func (d *Document) Scalar() json.RawMessage { return d.scalar }

// Value decodes the document into generic Go values (map[string]any,
// []any, float64, string, bool, nil).
func (d *Document) Value() (any, error) {
	var v any
	if err := json.Unmarshal([]byte(d.Text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

var errTrailingData = errors.New("unexpected data after the document")

// documentHandler receives parse events for one document. It records the
// top-level members or elements and writes each of their values to buf in
// compact form, keeping nested key order.
type documentHandler struct {
	doc   *Document
	index map[string]int // top-level key -> position in doc.members

	started bool
	level   int     // open containers, including the top-level one
	nested  []frame // containers below the top level
	key     string  // key of the current top-level member
	buf     bytes.Buffer
}

type frame struct {
	object bool
	count  int
}

func (h *documentHandler) start(kind Kind) error {
	if h.started {
		return errTrailingData
	}
	h.started = true
	h.doc.kind = kind
	switch kind {
	case KindObject:
		h.doc.members = []Member{}
	case KindArray:
		h.doc.elements = []json.RawMessage{}
	}
	return nil
}

// item writes the separator owed before a value inside a nested array.
// Members of nested objects get theirs in BeginMember.
func (h *documentHandler) item() {
	n := len(h.nested)
	if n == 0 || h.nested[n-1].object {
		return
	}
	if h.nested[n-1].count > 0 {
		h.buf.WriteByte(',')
	}
	h.nested[n-1].count++
}

func (h *documentHandler) begin(kind Kind, open byte) error {
	h.level++
	if h.level == 1 {
		return h.start(kind)
	}
	h.item()
	h.buf.WriteByte(open)
	h.nested = append(h.nested, frame{object: kind == KindObject})
	return nil
}

func (h *documentHandler) end(c byte) error {
	h.level--
	if h.level == 0 {
		return nil
	}
	h.buf.WriteByte(c)
	h.nested = h.nested[:len(h.nested)-1]
	h.endValue()
	return nil
}

// endValue commits a finished top-level array element. Object members are
// committed by EndMember.
func (h *documentHandler) endValue() {
	if h.level == 1 && h.doc.kind == KindArray {
		h.doc.elements = append(h.doc.elements, h.take())
	}
}

func (h *documentHandler) take() json.RawMessage {
	v := json.RawMessage(bytes.Clone(h.buf.Bytes()))
	h.buf.Reset()
	return v
}

func (h *documentHandler) BeginObject(jtree.Anchor) error { return h.begin(KindObject, '{') }
func (h *documentHandler) EndObject(jtree.Anchor) error   { return h.end('}') }
func (h *documentHandler) BeginArray(jtree.Anchor) error  { return h.begin(KindArray, '[') }
func (h *documentHandler) EndArray(jtree.Anchor) error    { return h.end(']') }

func (h *documentHandler) BeginMember(loc jtree.Anchor) error {
	if h.level == 1 {
		key, err := jtree.Unquote(string(loc.Text()))
		if err != nil {
			return err
		}
		h.key = string(key)
		h.buf.Reset()
		return nil
	}
	f := &h.nested[len(h.nested)-1]
	if f.count > 0 {
		h.buf.WriteByte(',')
	}
	f.count++
	h.buf.Write(loc.Text())
	h.buf.WriteByte(':')
	return nil
}

func (h *documentHandler) EndMember(jtree.Anchor) error {
	if h.level != 1 {
		return nil
	}
	value := h.take()
	if i, seen := h.index[h.key]; seen {
		h.doc.members[i].Value = value
		return nil
	}
	h.index[h.key] = len(h.doc.members)
	h.doc.members = append(h.doc.members, Member{Key: h.key, Value: value})
	return nil
}

func (h *documentHandler) Value(loc jtree.Anchor) error {
	if h.level == 0 {
		if err := h.start(KindScalar); err != nil {
			return err
		}
		h.doc.scalar = json.RawMessage(loc.Copy())
		return nil
	}
	h.item()
	h.buf.Write(loc.Text())
	h.endValue()
	return nil
}

func (h *documentHandler) EndOfInput(jtree.Anchor) {}
