package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/roach88/jsonstreamer/internal/wire"
)

// StreamIDHeader carries the server-assigned stream id.
const StreamIDHeader = "X-Stream-Id"

// HTTPError is a non-streamed error response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Stream is an open response being decoded.
type Stream struct {
	*Decoder

	// ID is the server-assigned stream id, if any.
	ID string

	// ContentType is the response content type.
	ContentType string

	body io.ReadCloser
}

// Close releases the connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// Open requests format from the server at baseURL. For FormatLines the
// prompt is sent as the POST body; other formats ignore it.
func Open(ctx context.Context, c *http.Client, baseURL string, format wire.Format, prompt string) (*Stream, error) {
	if c == nil {
		c = http.DefaultClient
	}
	method, path := wire.Route(format)

	var body io.Reader
	if method == http.MethodPost {
		payload, err := json.Marshal(wire.PromptRequest{Prompt: prompt})
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(baseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", wire.ContentTypeJSON)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(b))
		var obj wire.ErrorObject
		if json.Unmarshal(b, &obj) == nil && obj.Error != "" {
			msg = obj.Error
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}

	return &Stream{
		Decoder:     NewDecoder(resp.Body, format),
		ID:          resp.Header.Get(StreamIDHeader),
		ContentType: resp.Header.Get("Content-Type"),
		body:        resp.Body,
	}, nil
}
