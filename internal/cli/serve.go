package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/jsonstreamer/internal/config"
	"github.com/roach88/jsonstreamer/internal/emitter"
	"github.com/roach88/jsonstreamer/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
	Addr       string
	Document   string
	NoDelay    bool

	// Sleeper and IDs override pacing and stream ids (for testing).
	// If nil, the server defaults are used.
	Sleeper emitter.Sleeper
	IDs     server.IDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the document over HTTP",
		Long: `Start the streaming HTTP service.

Endpoints:
  GET  /        welcome message
  GET  /test    character deltas as OpenAI-style server-sent events
  GET  /stream  structural snapshots as server-sent events
  POST /stream  structural snapshots as plain-text lines
  GET  /raw     the document one character at a time

Settings come from the config file, then command-line flags override them.

Example:
  jsonstreamer serve
  jsonstreamer serve --config jsonstreamer.yaml --addr 127.0.0.1:9000
  jsonstreamer serve --document ./fixtures/large.json --no-delay`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Document, "document", "", "JSON document to serve (overrides config)")
	cmd.Flags().BoolVar(&opts.NoDelay, "no-delay", false, "disable the artificial delays between fragments")

	return cmd
}

// loadServeConfig resolves the effective configuration: defaults, then the
// config file, then flags that were set explicitly.
func loadServeConfig(opts *ServeOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = opts.Addr
	}
	if cmd.Flags().Changed("document") {
		cfg.Document = opts.Document
	}
	if opts.NoDelay {
		cfg.DisableDelays()
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadServeConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Fail fast on a document that cannot be served. Each request still
	// reloads it, so a file fixed while running is picked up.
	if _, err := loadDocument(cfg.Document, cfg.SearchDirs); err != nil {
		logger.Warn("document not loadable yet", "document", cfg.Document, "error", err)
	}

	srv := server.New(server.Options{
		Addr:           cfg.Addr,
		Document:       cfg.Document,
		SearchDirs:     cfg.SearchDirs,
		Pacing:         cfg.EmitterPacing(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Sleeper:        opts.Sleeper,
		IDs:            opts.IDs,
		Logger:         logger,
	})

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", cfg.Document, cfg.Addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "listen" {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
		return WrapExitError(ExitFailure, "server error", err)
	}
	return nil
}
