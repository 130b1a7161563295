package emitter

import (
	"bytes"
	"encoding/json"

	"github.com/roach88/jsonstreamer/internal/source"
)

// Kind identifies the type of a Fragment.
type Kind int

const (
	// KindDelta carries only the characters added since the previous fragment.
	KindDelta Kind = iota + 1

	// KindSnapshot carries the full serialized accumulator.
	KindSnapshot

	// KindChar carries exactly one character of the document text.
	KindChar

	// KindError carries a serialized error object, {"error": "..."}.
	KindError

	// KindEnd is the end-of-stream marker. It has no payload.
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindSnapshot:
		return "snapshot"
	case KindChar:
		return "char"
	case KindError:
		return "error"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Fragment is one unit of incremental output.
type Fragment struct {
	Kind Kind

	// Seq is the 1-based position of the fragment in its stream.
	Seq int

	// Text is the payload. Empty for KindEnd.
	Text string

	// Err is the load error behind a KindError fragment.
	Err error
}

// IsContent reports whether f carries document content.
func (f Fragment) IsContent() bool {
	return f.Kind == KindDelta || f.Kind == KindSnapshot || f.Kind == KindChar
}

// ErrorObject is the payload of a KindError fragment.
type ErrorObject struct {
	Error string `json:"error"`
}

func newErrorFragment(err error) Fragment {
	text, mErr := encodeJSON(ErrorObject{Error: source.Message(err)})
	if mErr != nil {
		// A struct with one string field always encodes.
		panic(mErr)
	}
	return Fragment{Kind: KindError, Text: string(text), Err: err}
}

// encodeJSON encodes v compactly without HTML escaping.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
