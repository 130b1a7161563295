package emitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/jsonstreamer/internal/source"
	"github.com/roach88/jsonstreamer/internal/testutil"
)

func parseDoc(t *testing.T, text string) *source.Document {
	t.Helper()
	doc, err := source.Parse("main.json", []byte(text))
	require.NoError(t, err)
	return doc
}

// run drains a stream for text under mode with default pacing and a
// recording sleeper.
func run(t *testing.T, mode Mode, text string) ([]Fragment, *testutil.RecordingSleeper) {
	t.Helper()
	strategy, err := ForMode(mode, DefaultPacing())
	require.NoError(t, err)

	sleeper := testutil.NewRecordingSleeper()
	s := NewStream(strategy, StaticLoad(parseDoc(t, text)), WithSleeper(sleeper))
	frags, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateTerminated, s.State())
	return frags, sleeper
}

func texts(frags []Fragment) []string {
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		out = append(out, f.Text)
	}
	return out
}

func kinds(frags []Fragment) []Kind {
	out := make([]Kind, 0, len(frags))
	for _, f := range frags {
		out = append(out, f.Kind)
	}
	return out
}
