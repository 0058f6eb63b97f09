package federation

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/lagcomp/internal/monitoring"
	"github.com/banshee-data/lagcomp/internal/timeutil"
	"github.com/banshee-data/lagcomp/internal/units"
)

var (
	// ErrNegativeInterval is returned for a negative lookahead or advance.
	ErrNegativeInterval = errors.New("federation: interval must be non-negative")
	// ErrGrantTimeout is returned when a time advance is not granted in time.
	ErrGrantTimeout = errors.New("federation: timed out waiting for time advance grant")
	// ErrNoPendingAdvance is returned by Grant when nothing was requested.
	ErrNoPendingAdvance = errors.New("federation: no time advance pending")
)

// ExecutionControl tracks the local federate's logical time. Scenario time
// is the logical time offset by the scenario epoch.
//
// All methods are safe on a nil *ExecutionControl and return the values a
// federate without time management reports: scenario and CTE time of
// -math.MaxFloat64, a lookahead of -1 and a granted time of
// units.MaxLogicalTimeSeconds.
type ExecutionControl struct {
	mu sync.Mutex

	epoch     float64 // scenario time at logical time zero
	granted   int64   // granted logical time, microseconds
	lookahead int64   // microseconds

	pending   bool
	requested int64

	cte      timeutil.Clock // central timing equipment clock, optional
	cteStart time.Time
}

// NewExecutionControl returns a control at logical time zero.
func NewExecutionControl(epoch float64, lookahead time.Duration) (*ExecutionControl, error) {
	e := &ExecutionControl{epoch: epoch}
	if err := e.SetLookahead(lookahead); err != nil {
		return nil, err
	}
	return e, nil
}

// SetLookahead sets the lookahead interval.
func (e *ExecutionControl) SetLookahead(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: lookahead %s", ErrNegativeInterval, d)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookahead = d.Microseconds()
	return nil
}

// SetCTEClock attaches a central timing equipment timeline. CTE time counts
// wall seconds from the moment the clock is attached.
func (e *ExecutionControl) SetCTEClock(c timeutil.Clock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cte = c
	if c != nil {
		e.cteStart = c.Now()
	}
}

// ScenarioTime returns the scenario time in seconds.
func (e *ExecutionControl) ScenarioTime() float64 {
	if e == nil {
		return -math.MaxFloat64
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch + units.MicrosToSeconds(e.granted)
}

// Lookahead returns the lookahead interval in seconds.
func (e *ExecutionControl) Lookahead() float64 {
	if e == nil {
		return -1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return units.MicrosToSeconds(e.lookahead)
}

// LookaheadMicros returns the lookahead interval in microseconds.
func (e *ExecutionControl) LookaheadMicros() int64 {
	if e == nil {
		return -units.MicrosPerSecond
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookahead
}

// GrantedTime returns the granted logical time in seconds.
func (e *ExecutionControl) GrantedTime() float64 {
	if e == nil {
		return units.MaxLogicalTimeSeconds
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return units.MicrosToSeconds(e.granted)
}

// GrantedMicros returns the granted logical time in microseconds.
func (e *ExecutionControl) GrantedMicros() int64 {
	if e == nil {
		return units.SecondsToMicros(units.MaxLogicalTimeSeconds)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.granted
}

// CTETime returns the central timing equipment time in seconds, or
// -math.MaxFloat64 when no CTE timeline exists.
func (e *ExecutionControl) CTETime() float64 {
	if e == nil {
		return -math.MaxFloat64
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cte == nil {
		return -math.MaxFloat64
	}
	return e.cte.Since(e.cteStart).Seconds()
}

// RequestTimeAdvance asks to advance logical time by dt seconds. The new
// time takes effect when Grant is called.
func (e *ExecutionControl) RequestTimeAdvance(dt float64) error {
	if !(dt >= 0) {
		return fmt.Errorf("%w: advance %g", ErrNegativeInterval, dt)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requested = e.granted + units.SecondsToMicros(dt)
	e.pending = true
	monitoring.Debugf(monitoring.LevelStep, "federation: time advance requested to %d us", e.requested)
	return nil
}

// Grant completes the pending time advance.
func (e *ExecutionControl) Grant() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pending {
		return ErrNoPendingAdvance
	}
	e.granted = e.requested
	e.pending = false
	monitoring.Debugf(monitoring.LevelStep, "federation: time advance granted to %d us", e.granted)
	return nil
}

// Pending reports whether a time advance is waiting for a grant.
func (e *ExecutionControl) Pending() bool {
	pending, _ := e.pendingAdvance()
	return pending
}

func (e *ExecutionControl) pendingAdvance() (bool, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending, e.requested
}

// WaitForGrant spins until the pending advance is granted or to expires.
func (e *ExecutionControl) WaitForGrant(to *timeutil.SleepTimeout) error {
	for {
		pending, requested := e.pendingAdvance()
		if !pending {
			return nil
		}
		if to.Timeout() {
			monitoring.Warnf("federation: time advance to %g s not granted before %s",
				units.MicrosToSeconds(requested), to.Deadline().Format(time.RFC3339Nano))
			return fmt.Errorf("%w: requested %d us", ErrGrantTimeout, requested)
		}
		to.Sleep()
	}
}

// Advance requests and immediately grants an advance of dt seconds, as a
// federate that regulates its own time does.
func (e *ExecutionControl) Advance(dt float64) error {
	if err := e.RequestTimeAdvance(dt); err != nil {
		return err
	}
	return e.Grant()
}
