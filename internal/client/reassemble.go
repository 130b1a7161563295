package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/jsonstreamer/internal/wire"
)

// ErrNoContent is returned by Reassemble when a stream carried no content.
var ErrNoContent = errors.New("stream carried no content")

// StreamError is an error frame received in-band.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error: %s", e.Message)
}

// Reassemble rebuilds the document text from the events of one stream:
// deltas and characters are concatenated, snapshots are replayed and the
// last one wins.
func Reassemble(events []Event) (string, error) {
	var b strings.Builder
	var last string
	seen := false
	for _, ev := range events {
		switch ev.Kind {
		case EventError:
			return "", ev.Err()
		case EventDelta, EventChar:
			b.WriteString(ev.Text)
			seen = true
		case EventSnapshot:
			last = ev.Text
			seen = true
		}
	}
	if !seen {
		return "", ErrNoContent
	}
	if b.Len() > 0 {
		return b.String(), nil
	}
	return last, nil
}

// Err returns the stream error carried by an EventError, or nil for any
// other event.
func (ev Event) Err() error {
	if ev.Kind != EventError {
		return nil
	}
	var obj wire.ErrorObject
	if err := json.Unmarshal([]byte(ev.Text), &obj); err != nil || obj.Error == "" {
		return &StreamError{Message: ev.Text}
	}
	return &StreamError{Message: obj.Error}
}
