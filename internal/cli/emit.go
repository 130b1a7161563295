package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/jsonstreamer/internal/config"
	"github.com/roach88/jsonstreamer/internal/emitter"
	"github.com/roach88/jsonstreamer/internal/source"
	"github.com/roach88/jsonstreamer/internal/wire"
)

// EmitOptions holds flags for the emit command.
type EmitOptions struct {
	*RootOptions
	Mode    string
	NoDelay bool

	// Sleeper overrides pacing (for testing). If nil, real timers are used.
	Sleeper emitter.Sleeper
}

// NewEmitCommand creates the emit command.
func NewEmitCommand(rootOpts *RootOptions) *cobra.Command {
	return newEmitCommand(&EmitOptions{RootOptions: rootOpts})
}

func newEmitCommand(opts *EmitOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit [document]",
		Short: "Write a document's stream to stdout without a server",
		Long: `Run the emitter offline and write exactly the bytes the server would
send for the chosen wire format, with the same pacing.

Formats: delta (GET /test), snapshot (GET /stream), lines (POST /stream)
and raw (GET /raw). The document defaults to main.json.

Example:
  jsonstreamer emit --mode delta
  jsonstreamer emit ./fixtures/large.json --mode lines --no-delay`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(opts, documentArg(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", string(wire.FormatDelta), fmt.Sprintf("wire format %v", wire.Formats))
	cmd.Flags().BoolVar(&opts.NoDelay, "no-delay", false, "disable the artificial delays between fragments")

	return cmd
}

func runEmit(opts *EmitOptions, document string, cmd *cobra.Command) error {
	format, err := wire.ParseFormat(opts.Mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mode", err)
	}
	framer, err := wire.NewFramer(format)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mode", err)
	}

	pacing := emitter.DefaultPacing()
	if opts.NoDelay {
		pacing = emitter.Pacing{DeltaThreshold: emitter.DeltaThreshold}
	}
	strategy, err := emitter.ForMode(format.Mode(), pacing)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mode", err)
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = emitter.TimerSleeper{}
	}
	dirs := config.DefaultSearchDirs()
	st := emitter.NewStream(strategy,
		func() (*source.Document, error) { return loadDocument(document, dirs) },
		emitter.WithSleeper(sleeper),
		emitter.WithLogger(logger),
	)

	out := cmd.OutOrStdout()
	for f, err := range st.All(cmd.Context()) {
		if err != nil {
			return WrapExitError(ExitFailure, "stream interrupted", err)
		}
		if err := framer.WriteFragment(out, f); err != nil {
			return WrapExitError(ExitFailure, "writing output", err)
		}
	}

	// A load error has already been written as an error fragment.
	if err := st.Err(); err != nil {
		return WrapExitError(ExitFailure, ErrorCode(err), err)
	}
	return nil
}
