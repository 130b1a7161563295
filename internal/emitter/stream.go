package emitter

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/roach88/jsonstreamer/internal/source"
)

// State is a stream's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateError
	StateStreaming
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// LoadFunc loads the document for one stream. It is called at most once.
type LoadFunc func() (*source.Document, error)

// StaticLoad returns a LoadFunc that always yields doc.
func StaticLoad(doc *source.Document) LoadFunc {
	return func() (*source.Document, error) { return doc, nil }
}

// Option configures a Stream.
type Option func(*Stream)

// WithSleeper replaces the default TimerSleeper.
func WithSleeper(s Sleeper) Option {
	return func(st *Stream) { st.sleeper = s }
}

// WithLogger sets the logger for state transitions. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(st *Stream) { st.logger = l }
}

// Stream is a lazily realized fragment sequence for one consumer.
type Stream struct {
	strategy Strategy
	load     LoadFunc
	sleeper  Sleeper
	logger   *slog.Logger

	state    State
	producer Producer
	err      error
	seq      int
}

// NewStream creates a stream in StateIdle. Nothing is loaded until the
// first call to Next.
func NewStream(strategy Strategy, load LoadFunc, opts ...Option) *Stream {
	s := &Stream{
		strategy: strategy,
		load:     load,
		sleeper:  TimerSleeper{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Stream) State() State { return s.state }

// Err returns the load error once the stream has entered StateError.
func (s *Stream) Err() error { return s.err }

// Emitted returns the number of fragments returned so far.
func (s *Stream) Emitted() int { return s.seq }

// Next returns the next fragment. It returns io.EOF once the stream is
// terminated, and the context's error if ctx is done before the next
// fragment is ready; in that case the stream is terminated as well.
func (s *Stream) Next(ctx context.Context) (Fragment, error) {
	for {
		if s.state == StateTerminated {
			return Fragment{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			s.abandon(err)
			return Fragment{}, err
		}

		switch s.state {
		case StateIdle:
			s.state = StateLoading

		case StateLoading:
			doc, err := s.load()
			if err == nil && doc == nil {
				err = source.NewNotFoundError("", errors.New("loader returned no document"))
			}
			if err != nil {
				s.logger.Debug("document load failed", "mode", s.strategy.Mode(), "error", err)
				s.err = err
				s.state = StateError
				continue
			}
			s.logger.Debug("document loaded", "mode", s.strategy.Mode(), "name", doc.Name, "kind", doc.Kind(), "len", doc.Len())
			s.producer = s.strategy.Open(doc)
			s.state = StateStreaming

		case StateError:
			s.state = StateDraining
			return s.emit(newErrorFragment(s.err)), nil

		case StateStreaming:
			f, ok := s.producer.Next()
			if !ok {
				s.state = StateDraining
				continue
			}
			if err := s.sleeper.Sleep(ctx, s.strategy.Delay()); err != nil {
				s.abandon(err)
				return Fragment{}, err
			}
			return s.emit(f), nil

		case StateDraining:
			s.state = StateTerminated
			s.logger.Debug("stream terminated", "mode", s.strategy.Mode(), "fragments", s.seq)
			if s.strategy.EndMarker() {
				return s.emit(Fragment{Kind: KindEnd}), nil
			}
		}
	}
}

// All returns the remaining fragments as a range-over-func sequence. A
// non-nil error is yielded once, as the last pair, unless it is io.EOF.
func (s *Stream) All(ctx context.Context) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		for {
			f, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Fragment{}, err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}

// Collect drains the stream into a slice.
func (s *Stream) Collect(ctx context.Context) ([]Fragment, error) {
	var out []Fragment
	for f, err := range s.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Stream) emit(f Fragment) Fragment {
	s.seq++
	f.Seq = s.seq
	return f
}

func (s *Stream) abandon(err error) {
	s.logger.Debug("stream abandoned", "mode", s.strategy.Mode(), "state", s.state, "fragments", s.seq, "error", err)
	s.state = StateTerminated
}
