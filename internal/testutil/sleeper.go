package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingSleeper is an emitter.Sleeper that records requested delays
// instead of sleeping.
//
// OnSleep, if set, is called after each recorded delay with the 1-based
// count of delays so far. Tests use it to cancel a context at a chosen
// fragment boundary.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type RecordingSleeper struct {
	OnSleep func(n int)

	mu     sync.Mutex
	delays []time.Duration
}

// NewRecordingSleeper creates a sleeper with no recorded delays.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d and returns ctx.Err() without blocking.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	n := len(s.delays)
	s.mu.Unlock()

	if s.OnSleep != nil {
		s.OnSleep(n)
	}
	return ctx.Err()
}

// Delays returns a copy of the recorded delays in call order.
func (s *RecordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// Count returns the number of recorded delays.
func (s *RecordingSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

// Total returns the sum of the recorded delays.
func (s *RecordingSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.delays {
		total += d
	}
	return total
}

// Reset forgets all recorded delays.
func (s *RecordingSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = nil
}
