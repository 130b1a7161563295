package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/roach88/jsonstreamer/internal/emitter"
	"github.com/roach88/jsonstreamer/internal/source"
	"github.com/roach88/jsonstreamer/internal/wire"
)

// maxPromptBytes bounds the POST /stream request body.
const maxPromptBytes = 1 << 20

// WelcomeMessage is the body of GET /.
type WelcomeMessage struct {
	Message string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, WelcomeMessage{Message: "Welcome to JSON Streamer"})
}

func (s *Server) handleStream(format wire.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveStream(w, r, format)
	}
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPromptBytes))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, wire.ErrorObject{Error: "could not read request body"})
		return
	}

	var req wire.PromptRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, wire.ErrorObject{Error: "invalid request body"})
			return
		}
	}
	s.logger.Debug("prompt received", "prompt_len", len(req.Prompt))

	s.serveStream(w, r, wire.FormatLines)
}

// handleRaw loads the document before committing to a stream so that a
// missing or invalid document gets a plain JSON error response.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	doc, err := s.loader().Load()
	if err != nil {
		s.logger.Warn("document unavailable", "path", r.URL.Path, "error", err)
		s.writeJSON(w, documentStatus(err), wire.ErrorObject{Error: source.Message(err)})
		return
	}
	s.stream(w, r, wire.FormatRaw, emitter.StaticLoad(doc))
}

// handleHead answers HEAD with the headers the matching GET would send and
// no body. Nothing is paced or streamed.
func (s *Server) handleHead(format wire.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if format == wire.FormatRaw {
			if _, err := s.loader().Load(); err != nil {
				w.Header().Set("Content-Type", wire.ContentTypeJSON)
				w.WriteHeader(documentStatus(err))
				return
			}
		}
		framer, err := wire.NewFramer(format)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		setStreamHeaders(w.Header(), framer.ContentType())
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, format wire.Format) {
	s.stream(w, r, format, s.loader().Load)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, format wire.Format, load emitter.LoadFunc) {
	id := s.opts.IDs.Generate()
	logger := s.logger.With("stream_id", id, "format", string(format))

	framer, err := wire.NewFramer(format)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, wire.ErrorObject{Error: err.Error()})
		return
	}
	st, err := s.newStream(format.Mode(), load, logger)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, wire.ErrorObject{Error: err.Error()})
		return
	}

	setStreamHeaders(w.Header(), framer.ContentType())
	w.Header().Set(StreamIDHeader, id)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Debug("initial flush failed", "error", err)
		return
	}

	logger.Info("stream opened", "remote", r.RemoteAddr)
	ctx := r.Context()
	written := 0
	for {
		f, err := st.Next(ctx)
		if errors.Is(err, io.EOF) {
			logger.Info("stream completed", "fragments", written)
			return
		}
		if err != nil {
			logger.Info("stream abandoned", "fragments", written, "error", err)
			return
		}
		if f.Kind == emitter.KindError {
			logger.Warn("document unavailable", "error", f.Err)
		}

		if err := framer.WriteFragment(w, f); err != nil {
			logger.Info("stream abandoned", "fragments", written, "error", err)
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logger.Info("stream abandoned", "fragments", written, "error", err)
			return
		}
		written++
	}
}

func documentStatus(err error) int {
	if source.IsInvalid(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusNotFound
}

func setStreamHeaders(h http.Header, contentType string) {
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := wire.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", wire.ContentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("writing response failed", "status", status, "error", err)
	}
}
