package wire

import "net/http"

// Endpoint paths.
const (
	PathRoot   = "/"
	PathDelta  = "/test"
	PathStream = "/stream"
	PathRaw    = "/raw"
)

// Route returns the HTTP method and path that serve format.
func Route(format Format) (method, path string) {
	switch format {
	case FormatDelta:
		return http.MethodGet, PathDelta
	case FormatSnapshot:
		return http.MethodGet, PathStream
	case FormatLines:
		return http.MethodPost, PathStream
	default:
		return http.MethodGet, PathRaw
	}
}

// PromptRequest is the body of POST /stream. The prompt is accepted and
// ignored; the same document is streamed whatever it says.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}
