package server

import "github.com/google/uuid"

// StreamIDHeader carries the stream id on every streaming response.
const StreamIDHeader = "X-Stream-Id"

// IDGenerator produces stream ids for log correlation.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 stream ids, so ids sort by
// the time the stream was opened.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
