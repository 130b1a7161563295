// Package client consumes jsonstreamer endpoints.
//
// A Decoder reads one of the wire formats and yields Events; Open issues the
// HTTP request for a format and wraps the response body in a Decoder.
package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/roach88/jsonstreamer/internal/wire"
)

// MaxLineSize bounds a single SSE line or snapshot line.
const MaxLineSize = 16 << 20

// EventKind identifies the type of a decoded Event.
type EventKind int

const (
	EventDelta EventKind = iota + 1
	EventSnapshot
	EventChar
	EventError
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventSnapshot:
		return "snapshot"
	case EventChar:
		return "char"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one decoded frame.
type Event struct {
	Kind EventKind

	// Text is the delta content, snapshot text, character, or the error
	// object for EventError.
	Text string
}

// Decoder reads events of one wire format from a stream.
type Decoder struct {
	format  wire.Format
	scanner *bufio.Scanner
	reader  *bufio.Reader
	count   int
	done    bool
}

// NewDecoder creates a decoder for r.
func NewDecoder(r io.Reader, format wire.Format) *Decoder {
	d := &Decoder{format: format}
	if format == wire.FormatRaw {
		d.reader = bufio.NewReader(r)
		return d
	}
	d.scanner = bufio.NewScanner(r)
	d.scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)
	return d
}

// Next returns the next event. It returns io.EOF after the end marker or
// when the input ends.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}
	ev, err := d.next()
	if err != nil {
		d.done = true
		return Event{}, err
	}
	d.count++
	if ev.Kind == EventEnd {
		d.done = true
	}
	return ev, nil
}

// All drains the decoder.
func (d *Decoder) All() ([]Event, error) {
	var events []Event
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func (d *Decoder) next() (Event, error) {
	switch d.format {
	case wire.FormatRaw:
		return d.nextChar()
	case wire.FormatLines:
		line, err := d.nextLine(false)
		if err != nil {
			return Event{}, err
		}
		return d.snapshotEvent(line), nil
	case wire.FormatDelta:
		payload, err := d.nextLine(true)
		if err != nil {
			return Event{}, err
		}
		return decodeDelta(payload)
	case wire.FormatSnapshot:
		payload, err := d.nextLine(true)
		if err != nil {
			return Event{}, err
		}
		return d.decodeSnapshot(payload)
	default:
		return Event{}, fmt.Errorf("invalid format %q", d.format)
	}
}

// nextLine returns the next non-empty line. With sse set, only data lines
// count and the "data:" prefix is removed.
func (d *Decoder) nextLine(sse bool) (string, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if !sse {
			if line == "" {
				continue
			}
			return line, nil
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			// Blank separators, comments and other SSE fields.
			continue
		}
		return strings.TrimSpace(strings.TrimPrefix(line, "data:")), nil
	}
	if err := d.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (d *Decoder) nextChar() (Event, error) {
	r, size, err := d.reader.ReadRune()
	if err != nil {
		return Event{}, err
	}
	if r == utf8.RuneError && size == 1 {
		// Keep the original byte rather than U+FFFD.
		if err := d.reader.UnreadRune(); err != nil {
			return Event{}, err
		}
		b, err := d.reader.ReadByte()
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventChar, Text: string([]byte{b})}, nil
	}
	return Event{Kind: EventChar, Text: string(r)}, nil
}

// deltaFrame matches both delta chunks and error frames.
type deltaFrame struct {
	Choices []wire.Choice `json:"choices"`
	Error   *string       `json:"error"`
}

func decodeDelta(payload string) (Event, error) {
	var f deltaFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Event{}, fmt.Errorf("decoding delta event: %w", err)
	}
	if f.Error != nil {
		return Event{Kind: EventError, Text: payload}, nil
	}
	if len(f.Choices) == 0 {
		return Event{}, fmt.Errorf("delta event has no choices: %s", payload)
	}
	content := f.Choices[0].Delta.Content
	if content == nil {
		return Event{Kind: EventEnd}, nil
	}
	return Event{Kind: EventDelta, Text: *content}, nil
}

func (d *Decoder) decodeSnapshot(payload string) (Event, error) {
	var ev wire.SnapshotEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decoding snapshot event: %w", err)
	}
	if ev.Data == nil {
		return Event{Kind: EventEnd}, nil
	}
	return d.snapshotEvent(*ev.Data), nil
}

// snapshotEvent classifies a snapshot payload. A stream's first snapshot is
// always an empty container or a scalar, so a first payload that is a
// non-empty object can only be an error object.
func (d *Decoder) snapshotEvent(text string) Event {
	if d.count == 0 && isErrorObject(text) {
		return Event{Kind: EventError, Text: text}
	}
	return Event{Kind: EventSnapshot, Text: text}
}

func isErrorObject(text string) bool {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return false
	}
	_, ok := obj["error"]
	return ok && len(obj) == 1
}
