package lagcomp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lagcomp/internal/integ"
)

// decayingScalar is x' = -k·x carried through the generic hooks.
type decayingScalar struct {
	x, xdot, k, t float64
	loads, unload int
}

func (s *decayingScalar) DerivativeFirst() { s.xdot = -s.k * s.x }

func (s *decayingScalar) Load(in integ.StagedIntegrator) {
	s.loads++
	in.State()[0] = s.x
	in.Deriv()[0] = s.xdot
}

func (s *decayingScalar) Unload(in integ.StagedIntegrator) {
	s.unload++
	s.x = in.State()[0]
}

func (s *decayingScalar) UpdateTime(t float64) { s.t = t }

func TestGenericCompensator_Decay(t *testing.T) {
	t.Parallel()
	g, err := NewGenericCompensator("decay", integ.NewStagedRK4(1))
	require.NoError(t, err)

	s := &decayingScalar{x: 2, k: 0.5}
	res, err := g.Compensate(s, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, 40, res.Steps)
	assert.Equal(t, 160, s.loads)
	assert.Equal(t, s.loads, s.unload)
	assert.InDelta(t, 3, s.t, 1e-9)
	assert.InDelta(t, 2*math.Exp(-1), s.x, 1e-7)
	assert.InDelta(t, -0.5*s.x, s.xdot, 1e-15, "derivative refreshed for final state")
}

func TestGenericCompensator_SharesStepControl(t *testing.T) {
	t.Parallel()
	g, err := NewGenericCompensator("decay", integ.NewStagedEuler(1))
	require.NoError(t, err)
	require.NoError(t, g.SetStep(0.1, integ.DefaultTol))

	var samples []integ.StepSample
	g.OnStep(func(s integ.StepSample) { samples = append(samples, s) })

	s := &decayingScalar{x: 1, k: 1}
	res, err := g.Compensate(s, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Steps)
	assert.Len(t, samples, 10)
	assert.InDelta(t, math.Pow(0.9, 10), s.x, 1e-12)

	// An empty interval commits the start time and leaves the state alone.
	before := s.x
	res, err = g.Compensate(s, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Steps)
	assert.Equal(t, before, s.x)
	assert.Equal(t, 5.0, s.t)
}

func TestGenericCompensator_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewGenericCompensator("none", nil)
	assert.ErrorIs(t, err, integ.ErrNilIntegrator)

	g, err := NewGenericCompensator("g", integ.NewStagedEuler(1))
	require.NoError(t, err)
	assert.ErrorIs(t, g.SetStep(1e-9, 1e-8), integ.ErrInvalidStep)

	_, err = g.Compensate(nil, 0, 1)
	assert.Error(t, err)

	g.SetMaxSteps(2)
	_, err = g.Compensate(&decayingScalar{x: 1, k: 1}, 0, 1)
	assert.ErrorIs(t, err, integ.ErrStepLimit)
}
