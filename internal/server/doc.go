// Package server exposes the emitter over HTTP.
//
// Routes:
//
//	GET  /        welcome message
//	GET  /test    delta events (text/event-stream)
//	GET  /stream  snapshot events (text/event-stream)
//	POST /stream  snapshot lines (text/plain); body {"prompt": "..."} is ignored
//	GET  /raw     document text one character at a time (application/json)
//
// Every request loads the document itself and owns its stream; nothing is
// shared between requests. Streaming responses commit their headers before
// the document is loaded, so load failures are reported in-band as an error
// frame. The raw endpoint loads first and answers a failure with an ordinary
// JSON error response instead of opening a stream.
//
// Each fragment is written whole and flushed at once. A failed write or a
// cancelled request (client gone, server shutting down) abandons the stream.
package server
