package wire

// DeltaChunk is one event of the delta format, shaped like a chat
// completion chunk.
type DeltaChunk struct {
	Choices []Choice `json:"choices"`
}

// Choice holds the delta of one completion choice.
type Choice struct {
	Delta Delta `json:"delta"`
}

// Delta carries new content. Content is nil in the end marker.
type Delta struct {
	Content *string `json:"content,omitempty"`
}

// SnapshotEvent is one event of the snapshot format. Data is the serialized
// snapshot as a string, or nil in the end marker.
type SnapshotEvent struct {
	Data *string `json:"data"`
}

// ErrorObject is the body of every error frame and of non-streamed error
// responses.
type ErrorObject struct {
	Error string `json:"error"`
}
