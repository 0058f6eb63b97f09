package integ

import "errors"

var (
	// ErrNilIntegrator is returned when a Loop runs without an integrator.
	ErrNilIntegrator = errors.New("integ: nil integrator")
	// ErrInvalidStep is returned for non-positive step sizes or a step that
	// does not exceed the termination tolerance.
	ErrInvalidStep = errors.New("integ: invalid step configuration")
	// ErrStepLimit is returned when the loop hits its iteration bound or
	// stops making progress before consuming the interval.
	ErrStepLimit = errors.New("integ: step limit exceeded")
	// ErrUnknownIntegrator is returned by New for an unrecognised name.
	ErrUnknownIntegrator = errors.New("integ: unknown integrator")
)
