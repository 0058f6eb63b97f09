package refframe

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lagcomp/internal/integ"
	"github.com/banshee-data/lagcomp/internal/lagcomp"
)

type fixedTime struct{ now, lookahead float64 }

func (f *fixedTime) ScenarioTime() float64 { return f.now }
func (f *fixedTime) Lookahead() float64    { return f.lookahead }

func TestFrame_ToParent(t *testing.T) {
	t.Parallel()
	f := NewFrame("Body", "Inertial")
	f.Position = r3.Vec{X: 1, Y: 1}
	f.Attitude = lagcomp.AxisAngle(r3.Vec{Z: 1}, math.Pi/2)

	got := f.ToParent(r3.Vec{X: 2})
	assert.InDelta(t, 1, got.X, 1e-12)
	assert.InDelta(t, 3, got.Y, 1e-12)
	assert.InDelta(t, 0, got.Z, 1e-12)
}

func TestFrameLagComp_Compensate(t *testing.T) {
	t.Parallel()
	for _, name := range []string{integ.NameStagedRK4, integ.NameRK4} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := NewFrame("MoonCentricFixed", "EarthMoonBarycentric")
			f.Velocity = r3.Vec{X: 2, Z: -1}
			f.AngularVelocity = r3.Vec{Z: 0.5}

			opts := lagcomp.DefaultOptions()
			opts.Integrator = name
			c, err := NewFrameLagComp(&f, &fixedTime{}, opts)
			require.NoError(t, err)

			res, err := c.Compensate(0, 1)
			require.NoError(t, err)
			assert.Equal(t, 20, res.Steps)

			got := c.State()
			assert.InDelta(t, 1, got.Time, 1e-9)
			assert.InDelta(t, 2, got.Position.X, 1e-9)
			assert.InDelta(t, -1, got.Position.Z, 1e-9)
			assert.InDelta(t, 0.5, got.Attitude.RotationAngle(), 1e-8)
			assert.InDelta(t, 1, got.Attitude.Norm(), 1e-8)

			// The live frame is untouched by Compensate.
			assert.Equal(t, r3.Vec{}, f.Position)
		})
	}
}

func TestFrameLagComp_SendReceive(t *testing.T) {
	t.Parallel()
	clock := &fixedTime{now: 10, lookahead: 0.5}

	f := NewFrame("Site", "MoonCentricFixed")
	f.Time = 10
	f.Velocity = r3.Vec{Y: 4}
	c, err := NewFrameLagComp(&f, clock, lagcomp.DefaultOptions())
	require.NoError(t, err)

	_, err = c.Send()
	require.NoError(t, err)
	assert.InDelta(t, 10.5, f.Time, 1e-9)
	assert.InDelta(t, 2, f.Position.Y, 1e-9)
	assert.InDelta(t, 0.5, c.CompensateDt(), 1e-12)

	before := f
	clock.now = 11
	res, err := c.Receive(false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, lagcomp.DirectionReceive, res.Direction)
	assert.Equal(t, 0, res.Steps)
	if diff := cmp.Diff(before, f); diff != "" {
		t.Errorf("frame changed without received data (-want +got):\n%s", diff)
	}

	res, err = c.Receive(true)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 10, res.Steps)
	assert.InDelta(t, 11, f.Time, 1e-9)
	assert.InDelta(t, 4, f.Position.Y, 1e-9)
}

func TestFrameLagComp_Normalization(t *testing.T) {
	t.Parallel()
	spin := func() Frame {
		f := NewFrame("Body", "Inertial")
		f.AngularVelocity = r3.Vec{X: 0.5, Z: 3}
		return f
	}
	run := func(t *testing.T, norm lagcomp.Normalization) (Frame, *FrameLagComp) {
		f := spin()
		opts := lagcomp.DefaultOptions()
		opts.Normalization = norm
		c, err := NewFrameLagComp(&f, &fixedTime{now: 1}, opts)
		require.NoError(t, err)
		res, err := c.Receive(true)
		require.NoError(t, err)
		require.Equal(t, 20, res.Steps)
		return f, c
	}

	t.Run("never drifts under euler", func(t *testing.T) {
		t.Parallel()
		f, c := run(t, lagcomp.NormalizeNever)
		assert.Greater(t, f.Attitude.Norm(), 1.0+1e-6)
		assert.Greater(t, c.State().Attitude.Norm(), 1.0+1e-6)
	})

	t.Run("step keeps unit norm", func(t *testing.T) {
		t.Parallel()
		f, c := run(t, lagcomp.NormalizeStep)
		assert.InDelta(t, 1.0, f.Attitude.Norm(), 1e-12)
		assert.InDelta(t, 1.0, c.State().Attitude.Norm(), 1e-12)
	})

	t.Run("default is step", func(t *testing.T) {
		t.Parallel()
		f, _ := run(t, "")
		assert.InDelta(t, 1.0, f.Attitude.Norm(), 1e-12)
	})

	t.Run("read normalises the copy only", func(t *testing.T) {
		t.Parallel()
		f, c := run(t, lagcomp.NormalizeRead)
		assert.InDelta(t, 1.0, f.Attitude.Norm(), 1e-12)
		assert.InDelta(t, 1.0, c.State().Attitude.Norm(), 1e-12)
		assert.Greater(t, c.buf.Attitude.Norm(), 1.0+1e-6)
	})

	t.Run("unknown policy", func(t *testing.T) {
		t.Parallel()
		f := spin()
		opts := lagcomp.DefaultOptions()
		opts.Normalization = "always"
		_, err := NewFrameLagComp(&f, &fixedTime{}, opts)
		assert.Error(t, err)
	})
}

func TestFrameLagComp_Unbuffered(t *testing.T) {
	t.Parallel()
	f := NewFrame("Site", "")
	f.Velocity = r3.Vec{X: 1}
	opts := lagcomp.DefaultOptions()
	opts.Buffered = false
	c, err := NewFrameLagComp(&f, &fixedTime{lookahead: 1}, opts)
	require.NoError(t, err)

	_, err = c.Send()
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{}, f.Position)
	assert.InDelta(t, 1, c.State().Position.X, 1e-9)
}

func TestNewFrameLagComp_Errors(t *testing.T) {
	t.Parallel()
	f := NewFrame("Site", "")
	_, err := NewFrameLagComp(nil, &fixedTime{}, lagcomp.DefaultOptions())
	assert.Error(t, err)
	_, err = NewFrameLagComp(&f, nil, lagcomp.DefaultOptions())
	assert.Error(t, err)

	opts := lagcomp.DefaultOptions()
	opts.Integrator = "bogus"
	_, err = NewFrameLagComp(&f, &fixedTime{}, opts)
	assert.ErrorIs(t, err, integ.ErrUnknownIntegrator)

	opts = lagcomp.DefaultOptions()
	opts.Dt = -1
	_, err = NewFrameLagComp(&f, &fixedTime{}, opts)
	assert.ErrorIs(t, err, integ.ErrInvalidStep)
}
