package cli

import (
	"github.com/roach88/jsonstreamer/internal/config"
	"github.com/roach88/jsonstreamer/internal/source"
)

// loadDocument loads name the same way the server does: as given first,
// then from each of dirs.
func loadDocument(name string, dirs []string) (*source.Document, error) {
	return source.NewLoader(name, dirs...).Load()
}

// documentArg returns the document named on the command line, or the
// default document when none is given.
func documentArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.Default().Document
}
