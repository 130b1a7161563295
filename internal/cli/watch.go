package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/jsonstreamer/internal/client"
	"github.com/roach88/jsonstreamer/internal/wire"
)

// DefaultServerURL is the server watched when no URL is given.
const DefaultServerURL = "http://127.0.0.1:8000"

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Mode    string
	Prompt  string
	Diff    bool
	Colors  bool
	NoColor bool

	// HTTPClient overrides the client used to connect (for testing).
	HTTPClient *http.Client
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return newWatchCommand(&WatchOptions{RootOptions: rootOpts})
}

func newWatchCommand(opts *WatchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [url]",
		Short: "Consume a running server's stream and print it as it arrives",
		Long: `Connect to a running jsonstreamer server and print fragments as they
arrive: deltas and characters inline, snapshots one per line.

With --diff, each snapshot after the first is printed as the JSON merge
patch (RFC 7386) that turns the previous snapshot into it.

Colors are used when stdout is a terminal.

With --format json, nothing is printed while the stream runs. One JSON
response follows the end of the stream, carrying the stream id and the
reassembled document text.

Example:
  jsonstreamer watch
  jsonstreamer watch http://127.0.0.1:9000 --mode snapshot --diff`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := DefaultServerURL
			if len(args) > 0 {
				url = args[0]
			}
			return runWatch(opts, url, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", string(wire.FormatDelta), fmt.Sprintf("wire format %v", wire.Formats))
	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "prompt sent with the lines format")
	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "print merge patches between consecutive snapshots")
	cmd.Flags().BoolVar(&opts.Colors, "colors", false, "force using colors")
	cmd.Flags().BoolVar(&opts.NoColor, "nocolors", false, "disable colors")

	return cmd
}

// palette colors the watch output. Its zero value prints plain text.
type palette struct {
	content  *color.Color
	snapshot *color.Color
	patch    *color.Color
	err      *color.Color
	meta     *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		content:  color.New(color.FgGreen),
		snapshot: color.New(color.FgCyan),
		patch:    color.New(color.FgYellow),
		err:      color.New(color.FgRed, color.Bold),
		meta:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.content, p.snapshot, p.patch, p.err, p.meta} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// watchOutput picks the writer and whether to color it. Colors are on for
// terminals unless overridden by --colors or --nocolors.
func watchOutput(opts *WatchOptions, w io.Writer) (io.Writer, bool) {
	useColor := false
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		useColor = true
	}
	if opts.Colors {
		useColor = true
	}
	if opts.NoColor {
		useColor = false
	}
	if f, ok := w.(*os.File); ok && useColor {
		return colorable.NewColorable(f), true
	}
	return w, useColor
}

func runWatch(opts *WatchOptions, url string, cmd *cobra.Command) error {
	format, err := wire.ParseFormat(opts.Mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mode", err)
	}

	formatter := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		formatter = &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	}

	st, err := client.Open(cmd.Context(), opts.HTTPClient, url, format, opts.Prompt)
	if err != nil {
		var he *client.HTTPError
		if errors.As(err, &he) {
			return formatter.Fail(ExitFailure, err)
		}
		return formatter.Fail(ExitCommandError, err)
	}
	defer st.Close()
	formatter.StreamID = st.ID
	formatter.VerboseLog("stream %s opened (%s)", st.ID, st.ContentType)

	if formatter.Format == "json" {
		return watchJSON(st, format, formatter)
	}

	out, useColor := watchOutput(opts, cmd.OutOrStdout())
	w := &watchWriter{out: out, palette: newPalette(useColor), diff: opts.Diff}
	for {
		ev, err := st.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.finish()
			return formatter.Fail(ExitFailure, err)
		}
		if err := w.write(ev); err != nil {
			w.finish()
			return formatter.Fail(ExitFailure, err)
		}
	}
	w.finish()

	if w.streamErr != nil {
		return WrapExitError(ExitFailure, ErrCodeStream, w.streamErr)
	}
	return nil
}

// WatchResult is the JSON result of watching one stream.
type WatchResult struct {
	Format    wire.Format `json:"format"`
	Fragments int         `json:"fragments"` // content events, excluding end markers
	Text      string      `json:"text"`      // reassembled document text
}

// watchJSON drains st and reports it as a single CLIResponse.
func watchJSON(st *client.Stream, format wire.Format, formatter *OutputFormatter) error {
	events, err := st.All()
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	text, err := client.Reassemble(events)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	result := WatchResult{Format: format, Text: text}
	for _, ev := range events {
		if ev.Kind != client.EventEnd {
			result.Fragments++
		}
	}
	return formatter.Success(result)
}

// watchWriter prints decoded events.
type watchWriter struct {
	out     io.Writer
	palette palette
	diff    bool

	prev      []byte // previous snapshot, for --diff
	inline    bool   // the cursor is mid-line after inline content
	streamErr error
}

func (w *watchWriter) write(ev client.Event) error {
	switch ev.Kind {
	case client.EventDelta, client.EventChar:
		w.palette.content.Fprint(w.out, ev.Text)
		w.inline = ev.Text != "" && ev.Text[len(ev.Text)-1] != '\n'
	case client.EventSnapshot:
		w.endLine()
		return w.writeSnapshot([]byte(ev.Text))
	case client.EventError:
		w.endLine()
		w.palette.err.Fprintln(w.out, ev.Text)
		w.streamErr = ev.Err()
	case client.EventEnd:
		w.endLine()
		w.palette.meta.Fprintln(w.out, "[done]")
	}
	return nil
}

func (w *watchWriter) writeSnapshot(snap []byte) error {
	defer func() { w.prev = snap }()

	// Merge patches only describe objects; other shapes print whole.
	if !w.diff || !isObject(w.prev) || !isObject(snap) {
		w.palette.snapshot.Fprintln(w.out, string(snap))
		return nil
	}
	patch, err := jsonpatch.CreateMergePatch(w.prev, snap)
	if err != nil {
		return fmt.Errorf("diffing snapshots: %w", err)
	}
	w.palette.patch.Fprintln(w.out, string(bytes.TrimSpace(patch)))
	return nil
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func (w *watchWriter) endLine() {
	if w.inline {
		fmt.Fprintln(w.out)
		w.inline = false
	}
}

func (w *watchWriter) finish() {
	w.endLine()
}
