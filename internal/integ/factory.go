package integ

import "fmt"

// Integrator names accepted by New and the configuration layer.
const (
	NameEuler       = "euler"
	NameRK4         = "rk4"
	NameStagedEuler = "staged-euler"
	NameStagedHeun  = "staged-heun"
	NameStagedRK4   = "staged-rk4"
)

// Names lists every integrator New can build.
func Names() []string {
	return []string{NameEuler, NameRK4, NameStagedEuler, NameStagedHeun, NameStagedRK4}
}

// IsValidName reports whether name is a known integrator.
func IsValidName(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// New builds the named integrator for an n-element state. Self-contained
// steppers need the derivative function f; staged integrators ignore it
// because their derivatives are loaded by the caller on every pass.
func New(name string, n int, f DerivFunc) (StagedIntegrator, error) {
	if n <= 0 {
		return nil, fmt.Errorf("integ: state size must be positive, got %d", n)
	}
	switch name {
	case NameEuler, NameRK4:
		if f == nil {
			return nil, fmt.Errorf("%w: %s needs a derivative function", ErrNilIntegrator, name)
		}
		var s Stepper = &EulerStepper{}
		if name == NameRK4 {
			s = &RK4Stepper{}
		}
		return NewSelfContained(s, f, n), nil
	case NameStagedEuler:
		return NewStagedEuler(n), nil
	case NameStagedHeun:
		return NewStagedHeun(n), nil
	case NameStagedRK4:
		return NewStagedRK4(n), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegrator, name)
	}
}
