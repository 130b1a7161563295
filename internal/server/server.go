package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/rs/cors"

	"github.com/roach88/jsonstreamer/internal/emitter"
	"github.com/roach88/jsonstreamer/internal/source"
	"github.com/roach88/jsonstreamer/internal/wire"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Addr is the listen address for ListenAndServe.
	Addr string

	// Document is the document name; SearchDirs are its fallback directories.
	Document   string
	SearchDirs []string

	Pacing emitter.Pacing

	// AllowedOrigins for CORS. Defaults to all origins.
	AllowedOrigins []string

	// Sleeper paces fragments. Defaults to emitter.TimerSleeper.
	Sleeper emitter.Sleeper

	// IDs generates stream ids. Defaults to UUIDv7Generator.
	IDs IDGenerator

	Logger *slog.Logger
}

// Server serves the streaming endpoints.
type Server struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Server, filling in defaults for unset options.
func New(opts Options) *Server {
	if opts.Sleeper == nil {
		opts.Sleeper = emitter.TimerSleeper{}
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger}
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET "+wire.PathDelta, s.handleStream(wire.FormatDelta))
	mux.HandleFunc("GET "+wire.PathStream, s.handleStream(wire.FormatSnapshot))
	mux.HandleFunc("POST "+wire.PathStream, s.handlePrompt)
	mux.HandleFunc("GET "+wire.PathRaw, s.handleRaw)

	// GET patterns also match HEAD; these keep HEAD from running a stream.
	mux.HandleFunc("HEAD "+wire.PathDelta, s.handleHead(wire.FormatDelta))
	mux.HandleFunc("HEAD "+wire.PathStream, s.handleHead(wire.FormatSnapshot))
	mux.HandleFunc("HEAD "+wire.PathRaw, s.handleHead(wire.FormatRaw))

	opts := cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{StreamIDHeader},
		AllowCredentials: true,
	}
	// A literal "*" is not valid alongside credentials, so reflect the
	// request origin instead.
	if slices.Contains(s.opts.AllowedOrigins, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(opts).Handler(mux)
}

// ListenAndServe listens on Options.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Request contexts derive from ctx, so open streams are abandoned at their
// next fragment boundary when shutdown begins.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String(), "document", s.opts.Document)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) loader() *source.Loader {
	return source.NewLoader(s.opts.Document, s.opts.SearchDirs...)
}

func (s *Server) newStream(mode emitter.Mode, load emitter.LoadFunc, logger *slog.Logger) (*emitter.Stream, error) {
	strategy, err := emitter.ForMode(mode, s.opts.Pacing)
	if err != nil {
		return nil, err
	}
	return emitter.NewStream(strategy, load,
		emitter.WithSleeper(s.opts.Sleeper),
		emitter.WithLogger(logger),
	), nil
}
