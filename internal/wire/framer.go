package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/jsonstreamer/internal/emitter"
)

// Format names a wire framing.
type Format string

const (
	FormatDelta    Format = "delta"
	FormatSnapshot Format = "snapshot"
	FormatLines    Format = "lines"
	FormatRaw      Format = "raw"
)

// Formats lists the valid formats.
var Formats = []Format{FormatDelta, FormatSnapshot, FormatLines, FormatRaw}

// ParseFormat converts a format name to a Format.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid format %q: must be one of %v", s, Formats)
}

// Mode returns the emitter mode that feeds the format.
func (f Format) Mode() emitter.Mode {
	switch f {
	case FormatDelta:
		return emitter.ModeDelta
	case FormatRaw:
		return emitter.ModeRaw
	default:
		return emitter.ModeSnapshot
	}
}

// Framer writes fragments in one wire format.
type Framer interface {
	ContentType() string
	WriteFragment(w io.Writer, f emitter.Fragment) error
}

// NewFramer returns the framer for format.
func NewFramer(format Format) (Framer, error) {
	switch format {
	case FormatDelta:
		return DeltaSSE{}, nil
	case FormatSnapshot:
		return SnapshotSSE{}, nil
	case FormatLines:
		return SnapshotLines{}, nil
	case FormatRaw:
		return Raw{}, nil
	default:
		return nil, fmt.Errorf("invalid format %q: must be one of %v", format, Formats)
	}
}

const (
	ContentTypeEventStream = "text/event-stream"
	ContentTypeText        = "text/plain; charset=utf-8"
	ContentTypeJSON        = "application/json"
)

// DeltaSSE frames delta fragments as chat-completion style server-sent events.
type DeltaSSE struct{}

func (DeltaSSE) ContentType() string { return ContentTypeEventStream }

func (DeltaSSE) WriteFragment(w io.Writer, f emitter.Fragment) error {
	switch f.Kind {
	case emitter.KindDelta:
		text := f.Text
		return writeEvent(w, DeltaChunk{Choices: []Choice{{Delta: Delta{Content: &text}}}})
	case emitter.KindEnd:
		return writeEvent(w, DeltaChunk{Choices: []Choice{{}}})
	case emitter.KindError:
		return writeEventRaw(w, []byte(f.Text))
	default:
		return unsupported("delta", f)
	}
}

// SnapshotSSE frames snapshot fragments as {"data": "..."} server-sent events.
type SnapshotSSE struct{}

func (SnapshotSSE) ContentType() string { return ContentTypeEventStream }

func (SnapshotSSE) WriteFragment(w io.Writer, f emitter.Fragment) error {
	switch f.Kind {
	case emitter.KindSnapshot, emitter.KindError:
		text := f.Text
		return writeEvent(w, SnapshotEvent{Data: &text})
	case emitter.KindEnd:
		return writeEvent(w, SnapshotEvent{})
	default:
		return unsupported("snapshot", f)
	}
}

// SnapshotLines writes each snapshot as one line of plain text. The end
// marker is not written.
type SnapshotLines struct{}

func (SnapshotLines) ContentType() string { return ContentTypeText }

func (SnapshotLines) WriteFragment(w io.Writer, f emitter.Fragment) error {
	switch f.Kind {
	case emitter.KindSnapshot, emitter.KindError:
		_, err := io.WriteString(w, f.Text+"\n")
		return err
	case emitter.KindEnd:
		return nil
	default:
		return unsupported("lines", f)
	}
}

// Raw writes character fragments as they are, with no framing.
type Raw struct{}

func (Raw) ContentType() string { return ContentTypeJSON }

func (Raw) WriteFragment(w io.Writer, f emitter.Fragment) error {
	switch f.Kind {
	case emitter.KindChar, emitter.KindError:
		_, err := io.WriteString(w, f.Text)
		return err
	case emitter.KindEnd:
		return nil
	default:
		return unsupported("raw", f)
	}
}

// Marshal encodes v compactly without HTML escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeEvent(w io.Writer, v any) error {
	payload, err := Marshal(v)
	if err != nil {
		return err
	}
	return writeEventRaw(w, payload)
}

func writeEventRaw(w io.Writer, payload []byte) error {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	_, err := w.Write(frame)
	return err
}

func unsupported(format string, f emitter.Fragment) error {
	return fmt.Errorf("%s format cannot frame %s fragment", format, f.Kind)
}
