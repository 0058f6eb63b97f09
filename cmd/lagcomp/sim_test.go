package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lagcomp/internal/db"
	"github.com/banshee-data/lagcomp/internal/lagcomp"
	"github.com/banshee-data/lagcomp/internal/timeutil"
)

func constantVelocityScenario(delay float64, dropEvery int) *Scenario {
	return &Scenario{
		Name:           "unit",
		FramePeriod:    0.1,
		RunDuration:    1.0,
		TransportDelay: delay,
		DropEvery:      dropEvery,
		Entities: []EntitySpec{
			{Name: "truck", Velocity: [3]float64{10, 0, 0}},
		},
	}
}

func runScenario(t *testing.T, scn *Scenario) *Summary {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	sim, err := NewSimulation(scn, lagcomp.DefaultOptions(), 100*time.Millisecond, clock, 0)
	require.NoError(t, err)
	sum, err := sim.Run()
	require.NoError(t, err)
	return sum
}

func TestSimulation_DelayMatchesLookahead(t *testing.T) {
	sum := runScenario(t, constantVelocityScenario(0.1, 0))

	assert.Equal(t, 10, sum.Frames)
	assert.InDelta(t, 1.0, sum.Terminate, 1e-12)
	require.Len(t, sum.Entities, 1)

	run := sum.Entities[0]
	assert.Equal(t, 10, run.Sends)
	assert.Equal(t, 9, run.Receives)
	assert.Equal(t, 1, run.Skipped)
	assert.Len(t, run.Samples, 9)
	assert.Less(t, run.MaxError(), 1e-9)

	// Every send and every open-gate receive is traced.
	assert.Len(t, sum.Traces, 19)
}

func TestSimulation_ReceiveClosesTransportGap(t *testing.T) {
	sum := runScenario(t, constantVelocityScenario(0.3, 0))

	run := sum.Entities[0]
	assert.Equal(t, 7, run.Receives)
	assert.Equal(t, 3, run.Skipped)
	assert.Less(t, run.MaxError(), 1e-9)

	var forward int
	for _, rec := range sum.Traces {
		if rec.Direction == lagcomp.DirectionReceive {
			assert.InDelta(t, 0.2, rec.End-rec.Begin, 1e-9)
			forward++
		}
	}
	assert.Equal(t, 7, forward)
}

func TestSimulation_DroppedUpdatesLeaveStateStale(t *testing.T) {
	sum := runScenario(t, constantVelocityScenario(0.1, 2))

	run := sum.Entities[0]
	assert.Equal(t, 10, run.Sends)
	assert.Equal(t, 5, run.Receives)
	assert.Equal(t, 5, run.Skipped)

	// A skipped frame keeps the last compensated state, one frame behind.
	var stale int
	for _, s := range run.Samples {
		if !s.Received {
			assert.InDelta(t, 1.0, s.Truth.X-s.Compensated.X, 1e-9)
			stale++
		}
	}
	assert.Equal(t, 4, stale)
}

func TestSimulation_FromFile(t *testing.T) {
	scn, err := LoadScenario(filepath.Join("testdata", "convoy.json"))
	require.NoError(t, err)

	assert.InDelta(t, 0.1, scn.FramePeriod, 1e-12)
	assert.InDelta(t, 0.3, scn.TransportDelay, 1e-12)
	assert.InDelta(t, math.Pi/2, scn.Entities[0].AttitudeAngle, 1e-12)
	assert.InDelta(t, math.Pi/6, scn.Entities[1].AngularVelocity[2], 1e-12)

	sum := runScenario(t, scn)
	require.Len(t, sum.Entities, 2)
	assert.Less(t, sum.Entities[0].MaxError(), 1e-9)
	// Euler steps through constant acceleration lag the closed form.
	assert.Greater(t, sum.Entities[1].MaxError(), 0.0)
	assert.Less(t, sum.Entities[1].MaxError(), 0.1)

	dir := t.TempDir()
	require.NoError(t, storeTraces(filepath.Join(dir, "traces.db"), sum.Traces))
	store, err := db.NewDB(filepath.Join(dir, "traces.db"))
	require.NoError(t, err)
	defer store.Close()
	listed, err := store.ListTraces("drone", 0)
	require.NoError(t, err)
	assert.Equal(t, 17, len(listed))

	require.NoError(t, plotErrors(dir, scn.Name, sum))
	_, err = os.Stat(filepath.Join(dir, "convoy_position_error.png"))
	assert.NoError(t, err)

	htmlFile := filepath.Join(dir, "traces.html")
	require.NoError(t, writeHTML(htmlFile, scn.Name, sum.Traces))
	info, err := os.Stat(htmlFile)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestScenario_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(s *Scenario)
	}{
		{"zero frame period", func(s *Scenario) { s.FramePeriod = 0 }},
		{"zero duration", func(s *Scenario) { s.RunDuration = 0 }},
		{"negative delay", func(s *Scenario) { s.TransportDelay = -1 }},
		{"negative drop", func(s *Scenario) { s.DropEvery = -1 }},
		{"no entities", func(s *Scenario) { s.Entities = nil }},
		{"unnamed entity", func(s *Scenario) { s.Entities[0].Name = "" }},
		{"duplicate entity", func(s *Scenario) { s.Entities = append(s.Entities, s.Entities[0]) }},
		{"bad time unit", func(s *Scenario) { s.TimeUnit = "min" }},
		{"bad angle unit", func(s *Scenario) { s.AngleUnit = "grad" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := constantVelocityScenario(0.1, 0)
			tt.mod(s)
			assert.Error(t, s.Normalize())
		})
	}
}

func TestLoadScenario_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadScenario(filepath.Join(dir, "scenario.yaml"))
	assert.Error(t, err)

	_, err = LoadScenario(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadScenario(bad)
	assert.Error(t, err)
}

func TestKnownFederates_Default(t *testing.T) {
	s := &Scenario{}
	feds := s.KnownFederates()
	require.Len(t, feds, 2)
	assert.True(t, feds[0].Required)
	assert.True(t, feds[1].Required)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "scenario", sanitize(""))
	assert.Equal(t, "convoy_run-1", sanitize("convoy run-1"))
}
