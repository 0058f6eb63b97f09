package timeutil

import (
	"math"
	"time"
)

// Defaults for SleepTimeout.
const (
	DefaultTimeout = 10 * time.Second
	DefaultWait    = time.Millisecond
)

// SleepTimeout bounds a spin wait: callers Sleep between polls and stop
// once Timeout reports the deadline has passed. A non-positive timeout
// expires immediately.
type SleepTimeout struct {
	clock    Clock
	timeout  time.Duration
	wait     time.Duration
	deadline time.Time
}

// NewSleepTimeout returns a timeout of the given length polling every
// wait. Zero values select the defaults; a negative wait disables sleeping.
func NewSleepTimeout(clock Clock, timeout, wait time.Duration) *SleepTimeout {
	if clock == nil {
		clock = RealClock{}
	}
	if wait == 0 {
		wait = DefaultWait
	}
	s := &SleepTimeout{clock: clock, timeout: timeout, wait: wait}
	s.Reset()
	return s
}

// NewSleepTimeoutSeconds builds a timeout from a seconds value, saturating
// timeouts too large to represent.
func NewSleepTimeoutSeconds(clock Clock, seconds float64) *SleepTimeout {
	var d time.Duration
	switch {
	case !(seconds > 0):
		d = -1
	case seconds >= float64(math.MaxInt64)/float64(time.Second):
		d = time.Duration(math.MaxInt64)
	default:
		d = time.Duration(seconds * float64(time.Second))
	}
	return NewSleepTimeout(clock, d, 0)
}

// Reset restarts the timeout from now.
func (s *SleepTimeout) Reset() {
	now := s.clock.Now()
	switch {
	case s.timeout <= 0:
		s.deadline = now
	case s.timeout == time.Duration(math.MaxInt64):
		s.deadline = time.Unix(1<<62, 0)
	default:
		s.deadline = now.Add(s.timeout)
	}
}

// Sleep waits one polling interval.
func (s *SleepTimeout) Sleep() {
	if s.wait > 0 {
		s.clock.Sleep(s.wait)
	}
}

// Timeout reports whether the deadline has been reached.
func (s *SleepTimeout) Timeout() bool {
	return !s.clock.Now().Before(s.deadline)
}

// Deadline returns the wall time the timeout expires.
func (s *SleepTimeout) Deadline() time.Time { return s.deadline }
