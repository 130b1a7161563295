package emitter

import (
	"fmt"
	"time"

	"github.com/roach88/jsonstreamer/internal/source"
)

// Default pacing. These are artificial delays, not derived from any
// backpressure signal.
const (
	DeltaThreshold = 10
	DeltaDelay     = 200 * time.Millisecond
	SnapshotDelay  = 2500 * time.Millisecond
	RawDelay       = 10 * time.Millisecond
)

// Mode names an emission strategy.
type Mode string

const (
	ModeDelta    Mode = "delta"
	ModeSnapshot Mode = "snapshot"
	ModeRaw      Mode = "raw"
)

// Modes lists the valid modes.
var Modes = []Mode{ModeDelta, ModeSnapshot, ModeRaw}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid mode %q: must be one of %v", s, Modes)
}

// Producer yields the content fragments of one document, in order.
// Next returns false once the document is exhausted. Producers never sleep.
type Producer interface {
	Next() (Fragment, bool)
}

// Strategy is one emission mode.
type Strategy interface {
	// Mode names the strategy.
	Mode() Mode

	// Delay is the pause before each content fragment.
	Delay() time.Duration

	// EndMarker reports whether the stream ends with a KindEnd fragment.
	EndMarker() bool

	// Open returns a Producer over doc.
	Open(doc *source.Document) Producer
}

// Pacing holds the tunable delays and the delta size threshold.
// The zero value disables every delay and uses DeltaThreshold.
type Pacing struct {
	DeltaDelay     time.Duration
	DeltaThreshold int
	SnapshotDelay  time.Duration
	RawDelay       time.Duration
}

// DefaultPacing returns the production pacing.
func DefaultPacing() Pacing {
	return Pacing{
		DeltaDelay:     DeltaDelay,
		DeltaThreshold: DeltaThreshold,
		SnapshotDelay:  SnapshotDelay,
		RawDelay:       RawDelay,
	}
}

// ForMode returns the strategy for mode configured with p.
func ForMode(mode Mode, p Pacing) (Strategy, error) {
	switch mode {
	case ModeDelta:
		return DeltaStrategy{Threshold: p.DeltaThreshold, Interval: p.DeltaDelay}, nil
	case ModeSnapshot:
		return SnapshotStrategy{Interval: p.SnapshotDelay}, nil
	case ModeRaw:
		return RawStrategy{Interval: p.RawDelay}, nil
	default:
		return nil, fmt.Errorf("invalid mode %q: must be one of %v", mode, Modes)
	}
}
