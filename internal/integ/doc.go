// Package integ owns the numerical integration used by lag compensation.
//
// Responsibilities: fixed-form self-contained steppers (Euler, RK4),
// host-style staged integrators that need one load/step/unload pass per
// stage (Euler, Heun, RK4), and the shared step-control Loop that drives
// either form across a compensation interval.
// Key types: Stepper, StagedIntegrator, Loop, Hooks.
//
// Dependency rule: integ knows nothing about kinematic state. Callers map
// their domain fields onto the flat state vector through Hooks.
package integ
