package integ

import (
	"fmt"
	"math"

	"github.com/banshee-data/lagcomp/internal/monitoring"
)

// Defaults for the step-control loop.
const (
	DefaultDt       = 0.05
	DefaultTol      = 1.0e-8
	DefaultMaxSteps = 100000

	// maxPassesPerStep bounds the inner pass loop against a host integrator
	// that never reports a completed main step.
	maxPassesPerStep = 64
)

// Hooks is the capability contract a continuous state supplies to the loop.
// DerivativeFirst populates current derivatives before each pass, Load and
// Unload move data into and out of the integrator's staging buffers, and
// UpdateTime commits the final integrated time to the domain object.
type Hooks interface {
	DerivativeFirst()
	Load(in StagedIntegrator)
	Unload(in StagedIntegrator)
	UpdateTime(t float64)
}

// StepSample describes one completed main step.
type StepSample struct {
	Step   int     // 1-based main step index
	Time   float64 // absolute time after the step
	H      float64 // step size used
	DtGo   float64 // interval remaining after the step
	Passes int     // load/step/unload passes taken
}

// Result summarises one run of the loop.
type Result struct {
	Begin     float64
	End       float64
	Time      float64 // absolute time the state was integrated to
	DtGo      float64 // interval left unconsumed (within Tol on success)
	Steps     int
	Passes    int
	Truncated bool
}

// Loop integrates a Hooks state across an interval with a fixed maximum
// step, shortening the last step to land on the end of the interval.
//
// A Loop carries the integrator's staging buffers, so each compensated
// object needs its own Loop and integrator. Sharing one between objects
// interleaves their stages.
type Loop struct {
	Dt         float64
	Tol        float64
	MaxSteps   int
	Integrator StagedIntegrator

	// Debug logs each iteration's time and remaining interval.
	Debug bool
	// OnStep, when set, observes every completed main step.
	OnStep func(StepSample)
}

// NewLoop returns a Loop with the default step, tolerance and step bound.
func NewLoop(in StagedIntegrator) *Loop {
	return &Loop{
		Dt:         DefaultDt,
		Tol:        DefaultTol,
		MaxSteps:   DefaultMaxSteps,
		Integrator: in,
	}
}

// Validate checks the step configuration.
func (l *Loop) Validate() error {
	if l.Integrator == nil {
		return ErrNilIntegrator
	}
	if !(l.Dt > 0) || math.IsInf(l.Dt, 0) {
		return fmt.Errorf("%w: step %g must be positive and finite", ErrInvalidStep, l.Dt)
	}
	if l.Tol < 0 || math.IsNaN(l.Tol) {
		return fmt.Errorf("%w: tolerance %g must be non-negative", ErrInvalidStep, l.Tol)
	}
	if l.Dt <= l.Tol {
		return fmt.Errorf("%w: step %g must exceed tolerance %g", ErrInvalidStep, l.Dt, l.Tol)
	}
	return nil
}

// Run integrates h from tBegin to tEnd. Intervals at or below the
// tolerance, and backward intervals, leave the state untouched apart from
// committing tBegin as its time.
func (l *Loop) Run(h Hooks, tBegin, tEnd float64) (Result, error) {
	if err := l.Validate(); err != nil {
		return Result{}, err
	}
	maxSteps := l.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	interval := tEnd - tBegin
	dtGo := interval
	elapsed := 0.0
	res := Result{Begin: tBegin, End: tEnd}

	if dtGo < 0 {
		monitoring.Debugf(monitoring.LevelInfo, "integ: backward interval [%g, %g] not integrated", tBegin, tEnd)
	}

	in := l.Integrator
	in.SetTime(0)

	var runErr error
	for dtGo >= 0 && math.Abs(dtGo) > l.Tol {
		if res.Steps >= maxSteps {
			res.Truncated = true
			monitoring.Warnf("integ: step limit %d reached with dt_go=%g of %g", maxSteps, dtGo, interval)
			runErr = fmt.Errorf("%w: %d steps, %g of %g remaining", ErrStepLimit, maxSteps, dtGo, interval)
			break
		}

		step := l.Dt
		if dtGo <= l.Dt {
			step = dtGo
		}

		passes := 0
		for {
			h.DerivativeFirst()
			h.Load(in)
			more := in.Integrate(step)
			h.Unload(in)
			passes++
			if !more {
				break
			}
			if passes >= maxPassesPerStep {
				res.Truncated = true
				runErr = fmt.Errorf("%w: integrator still staging after %d passes", ErrStepLimit, passes)
				break
			}
		}
		res.Passes += passes
		if runErr != nil {
			break
		}
		res.Steps++

		prev := elapsed
		elapsed = in.Time()
		dtGo = interval - elapsed

		if l.Debug {
			monitoring.Logf("Integ t, dt_go: %g, %g", tBegin+elapsed, dtGo)
		}
		if l.OnStep != nil {
			l.OnStep(StepSample{Step: res.Steps, Time: tBegin + elapsed, H: step, DtGo: dtGo, Passes: passes})
		}

		if !(elapsed > prev) {
			res.Truncated = true
			monitoring.Warnf("integ: no progress at t=%g (step %g)", tBegin+elapsed, step)
			runErr = fmt.Errorf("%w: integrator time stalled at %g", ErrStepLimit, elapsed)
			break
		}
	}

	res.Time = tBegin + elapsed
	res.DtGo = dtGo
	h.UpdateTime(res.Time)
	h.DerivativeFirst()
	return res, runErr
}
