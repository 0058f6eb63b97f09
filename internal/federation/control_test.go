package federation

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lagcomp/internal/timeutil"
	"github.com/banshee-data/lagcomp/internal/units"
)

func TestExecutionControl_Times(t *testing.T) {
	t.Parallel()
	e, err := NewExecutionControl(100, 250*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 100.0, e.ScenarioTime())
	assert.Equal(t, 0.25, e.Lookahead())
	assert.Equal(t, int64(250000), e.LookaheadMicros())

	require.NoError(t, e.Advance(0.1))
	require.NoError(t, e.Advance(0.1))
	require.NoError(t, e.Advance(0.1))
	// Logical time is integral microseconds, so repeated advances do not
	// accumulate floating-point error.
	assert.Equal(t, int64(300000), e.GrantedMicros())
	assert.Equal(t, 0.3, e.GrantedTime())
	assert.InDelta(t, 100.3, e.ScenarioTime(), 1e-12)

	require.NoError(t, e.SetLookahead(time.Second))
	assert.Equal(t, 1.0, e.Lookahead())
}

func TestExecutionControl_NilFallbacks(t *testing.T) {
	t.Parallel()
	var e *ExecutionControl
	assert.Equal(t, -math.MaxFloat64, e.ScenarioTime())
	assert.Equal(t, -1.0, e.Lookahead())
	assert.Equal(t, int64(-1000000), e.LookaheadMicros())
	assert.Equal(t, units.MaxLogicalTimeSeconds, e.GrantedTime())
	assert.Equal(t, -math.MaxFloat64, e.CTETime())
}

func TestExecutionControl_NegativeIntervals(t *testing.T) {
	t.Parallel()
	_, err := NewExecutionControl(0, -time.Millisecond)
	assert.ErrorIs(t, err, ErrNegativeInterval)

	e, err := NewExecutionControl(0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.Advance(-0.5), ErrNegativeInterval)
	assert.ErrorIs(t, e.RequestTimeAdvance(math.NaN()), ErrNegativeInterval)
	assert.ErrorIs(t, e.Grant(), ErrNoPendingAdvance)
}

func TestExecutionControl_GrantProtocol(t *testing.T) {
	t.Parallel()
	e, err := NewExecutionControl(0, 0)
	require.NoError(t, err)

	require.NoError(t, e.RequestTimeAdvance(1.5))
	assert.True(t, e.Pending())
	assert.Equal(t, 0.0, e.ScenarioTime(), "time does not move before the grant")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		assert.NoError(t, e.Grant())
	}()

	require.NoError(t, e.WaitForGrant(timeutil.NewSleepTimeout(nil, 5*time.Second, time.Millisecond)))
	wg.Wait()
	assert.False(t, e.Pending())
	assert.Equal(t, 1.5, e.ScenarioTime())
}

func TestExecutionControl_WaitForGrantTimeout(t *testing.T) {
	t.Parallel()
	e, err := NewExecutionControl(0, 0)
	require.NoError(t, err)
	require.NoError(t, e.RequestTimeAdvance(1))

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	to := timeutil.NewSleepTimeout(clock, 10*time.Millisecond, 2*time.Millisecond)
	assert.ErrorIs(t, e.WaitForGrant(to), ErrGrantTimeout)
	assert.Len(t, clock.Sleeps(), 5)
	assert.True(t, e.Pending())
}

func TestExecutionControl_CTETime(t *testing.T) {
	t.Parallel()
	e, err := NewExecutionControl(0, 0)
	require.NoError(t, err)
	assert.Equal(t, -math.MaxFloat64, e.CTETime(), "no CTE timeline")

	clock := timeutil.NewMockClock(time.Unix(50, 0))
	e.SetCTEClock(clock)
	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1.5, e.CTETime())
}
