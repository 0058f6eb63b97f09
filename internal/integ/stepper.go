package integ

import "gonum.org/v1/gonum/floats"

// DerivFunc evaluates the time derivative of state into deriv. Both slices
// have the same length. Any user data is carried by the closure.
type DerivFunc func(t float64, state, deriv []float64)

// Stepper is a self-contained integrator. Step advances state in place by h
// and returns the new value of the independent variable. The step size may
// change on every call.
type Stepper interface {
	Step(t float64, state []float64, f DerivFunc, h float64) float64
}

// EulerStepper is the explicit first-order method.
type EulerStepper struct {
	k []float64
}

// Step implements Stepper.
func (s *EulerStepper) Step(t float64, state []float64, f DerivFunc, h float64) float64 {
	s.k = grow(s.k, len(state))
	f(t, state, s.k)
	floats.AddScaled(state, h, s.k)
	return t + h
}

// RK4Stepper is the classic fourth-order Runge-Kutta method.
type RK4Stepper struct {
	k1, k2, k3, k4, tmp []float64
}

// Step implements Stepper.
func (s *RK4Stepper) Step(t float64, state []float64, f DerivFunc, h float64) float64 {
	n := len(state)
	s.k1 = grow(s.k1, n)
	s.k2 = grow(s.k2, n)
	s.k3 = grow(s.k3, n)
	s.k4 = grow(s.k4, n)
	s.tmp = grow(s.tmp, n)

	half := 0.5 * h
	f(t, state, s.k1)

	floats.AddScaledTo(s.tmp, state, half, s.k1)
	f(t+half, s.tmp, s.k2)

	floats.AddScaledTo(s.tmp, state, half, s.k2)
	f(t+half, s.tmp, s.k3)

	floats.AddScaledTo(s.tmp, state, h, s.k3)
	f(t+h, s.tmp, s.k4)

	sixth := h / 6
	floats.AddScaled(state, sixth, s.k1)
	floats.AddScaled(state, 2*sixth, s.k2)
	floats.AddScaled(state, 2*sixth, s.k3)
	floats.AddScaled(state, sixth, s.k4)
	return t + h
}

// grow returns buf resized to n, reusing its backing array when possible.
func grow(buf []float64, n int) []float64 {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]float64, n)
}
