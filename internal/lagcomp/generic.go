package lagcomp

import (
	"fmt"

	"github.com/banshee-data/lagcomp/internal/integ"
)

// GenericState is any continuous state that can be carried through the
// compensation loop. It supplies its own derivative, load, unload and
// time-commit behaviour.
type GenericState interface {
	integ.Hooks
}

// GenericCompensator runs the shared step-control loop over a caller-defined
// state. The caller builds the integrator sized for its state vector.
type GenericCompensator struct {
	Name string
	loop integ.Loop
}

// NewGenericCompensator returns a compensator driving in with the default
// step and tolerance.
func NewGenericCompensator(name string, in integ.StagedIntegrator) (*GenericCompensator, error) {
	g := &GenericCompensator{Name: name, loop: *integ.NewLoop(in)}
	if err := g.loop.Validate(); err != nil {
		return nil, fmt.Errorf("lagcomp: generic %q: %w", name, err)
	}
	return g, nil
}

// SetStep overrides the maximum step and tolerance.
func (g *GenericCompensator) SetStep(dt, tol float64) error {
	loop := g.loop
	loop.Dt, loop.Tol = dt, tol
	if err := loop.Validate(); err != nil {
		return err
	}
	g.loop = loop
	return nil
}

// SetMaxSteps overrides the step bound; n <= 0 selects the default.
func (g *GenericCompensator) SetMaxSteps(n int) { g.loop.MaxSteps = n }

// SetDebug enables per-step loop logging.
func (g *GenericCompensator) SetDebug(debug bool) { g.loop.Debug = debug }

// OnStep registers an observer for every completed main step.
func (g *GenericCompensator) OnStep(fn func(integ.StepSample)) { g.loop.OnStep = fn }

// Compensate integrates s from tBegin to tEnd.
func (g *GenericCompensator) Compensate(s GenericState, tBegin, tEnd float64) (integ.Result, error) {
	if s == nil {
		return integ.Result{}, fmt.Errorf("lagcomp: generic %q: nil state", g.Name)
	}
	res, err := g.loop.Run(s, tBegin, tEnd)
	if err != nil {
		return res, fmt.Errorf("lagcomp: generic %q over [%g, %g]: %w", g.Name, tBegin, tEnd, err)
	}
	return res, nil
}
