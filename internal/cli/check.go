package cli

import (
	"context"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/roach88/jsonstreamer/internal/config"
	"github.com/roach88/jsonstreamer/internal/emitter"
	"github.com/roach88/jsonstreamer/internal/source"
)

// ModeSummary describes how one emission mode would stream a document.
type ModeSummary struct {
	Mode      emitter.Mode `json:"mode"`
	Fragments int          `json:"fragments"`  // content fragments, excluding the end marker
	EndMarker bool         `json:"end_marker"` // whether the mode terminates with an end marker
	Duration  string       `json:"duration"`   // total artificial delay at default pacing
}

// CheckResult is the result of checking a document.
type CheckResult struct {
	Document   string        `json:"document"`
	Path       string        `json:"path"`
	Kind       string        `json:"kind"`
	Len        int           `json:"len"`
	Bytes      int           `json:"bytes"`
	Characters int           `json:"characters"`
	Modes      []ModeSummary `json:"modes"`
}

// RenderText writes the human-readable form of the result.
func (r *CheckResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "✓ %s is servable\n", r.Document)
	fmt.Fprintf(w, "  path:       %s\n", r.Path)
	fmt.Fprintf(w, "  kind:       %s (%d top-level)\n", r.Kind, r.Len)
	fmt.Fprintf(w, "  size:       %d bytes, %d characters\n", r.Bytes, r.Characters)
	for _, m := range r.Modes {
		end := ""
		if m.EndMarker {
			end = " + end"
		}
		fmt.Fprintf(w, "  %-10s  %d fragments%s over %s\n", string(m.Mode)+":", m.Fragments, end, m.Duration)
	}
	return nil
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [document]",
		Short: "Check that a document can be served",
		Long: `Load and parse a document the way the server does and report its shape
and how many fragments each emission mode would produce.

Exits 1 if the document is missing (SOURCE_NOT_FOUND) or is not valid
JSON (SOURCE_INVALID).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, documentArg(args), cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, document string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	doc, err := loadDocument(document, config.DefaultSearchDirs())
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	formatter.VerboseLog("Loaded %s from %s", document, doc.Path)

	result, err := checkDocument(cmd.Context(), document, doc)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	return formatter.Success(result)
}

// checkDocument runs every mode over doc without delays and counts the
// fragments each would produce.
func checkDocument(ctx context.Context, name string, doc *source.Document) (*CheckResult, error) {
	result := &CheckResult{
		Document:   name,
		Path:       doc.Path,
		Kind:       doc.Kind().String(),
		Len:        doc.Len(),
		Bytes:      len(doc.Text),
		Characters: utf8.RuneCountInString(doc.Text),
	}

	defaults := emitter.DefaultPacing()
	for _, mode := range emitter.Modes {
		strategy, err := emitter.ForMode(mode, emitter.Pacing{DeltaThreshold: defaults.DeltaThreshold})
		if err != nil {
			return nil, err
		}
		frags, err := emitter.NewStream(strategy, emitter.StaticLoad(doc)).Collect(ctx)
		if err != nil {
			return nil, err
		}

		summary := ModeSummary{Mode: mode, EndMarker: strategy.EndMarker()}
		for _, f := range frags {
			if f.IsContent() {
				summary.Fragments++
			}
		}
		paced, err := emitter.ForMode(mode, defaults)
		if err != nil {
			return nil, err
		}
		summary.Duration = (time.Duration(summary.Fragments) * paced.Delay()).String()
		result.Modes = append(result.Modes, summary)
	}
	return result, nil
}
