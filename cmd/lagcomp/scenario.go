package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lagcomp/internal/federation"
	"github.com/banshee-data/lagcomp/internal/lagcomp"
	"github.com/banshee-data/lagcomp/internal/units"
)

// EntitySpec is the initial truth state of one scenario entity. Angles are
// in the scenario's angle unit.
type EntitySpec struct {
	Name                   string     `json:"name"`
	Type                   string     `json:"type,omitempty"`
	ParentFrame            string     `json:"parent_frame,omitempty"`
	Position               [3]float64 `json:"position"`
	Velocity               [3]float64 `json:"velocity"`
	Acceleration           [3]float64 `json:"acceleration"`
	AttitudeAxis           [3]float64 `json:"attitude_axis"`
	AttitudeAngle          float64    `json:"attitude_angle"`
	AngularVelocity        [3]float64 `json:"angular_velocity"`
	RotationalAcceleration [3]float64 `json:"rotational_acceleration"`
}

// FederateSpec names a federate taking part in the run.
type FederateSpec struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Scenario describes a publisher/subscriber run. Times are in TimeUnit
// until Normalize converts them to seconds.
type Scenario struct {
	Name           string         `json:"name"`
	Owner          string         `json:"owner"`
	TimeUnit       string         `json:"time_unit"`
	AngleUnit      string         `json:"angle_unit"`
	Epoch          float64        `json:"epoch"`
	FramePeriod    float64        `json:"frame_period"`
	RunDuration    float64        `json:"run_duration"`
	TransportDelay float64        `json:"transport_delay"`
	DropEvery      int            `json:"drop_every"` // drop every Nth published update, 0 keeps all
	Federates      []FederateSpec `json:"federates"`
	Entities       []EntitySpec   `json:"entities"`

	normalized bool
}

// LoadScenario reads, normalizes and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("scenario file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("scenario file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Normalize converts times to seconds and angles to radians, then
// validates the result. It is idempotent.
func (s *Scenario) Normalize() error {
	if s.normalized {
		return s.Validate()
	}
	if s.TimeUnit == "" {
		s.TimeUnit = units.Seconds
	}
	if s.AngleUnit == "" {
		s.AngleUnit = units.Radians
	}
	if !units.IsValidTimeUnit(s.TimeUnit) {
		return fmt.Errorf("invalid time_unit %q, must be one of: %s", s.TimeUnit, units.GetValidTimeUnitsString())
	}
	if !units.IsValidAngleUnit(s.AngleUnit) {
		return fmt.Errorf("invalid angle_unit %q", s.AngleUnit)
	}

	s.Epoch = units.ToSeconds(s.Epoch, s.TimeUnit)
	s.FramePeriod = units.ToSeconds(s.FramePeriod, s.TimeUnit)
	s.RunDuration = units.ToSeconds(s.RunDuration, s.TimeUnit)
	s.TransportDelay = units.ToSeconds(s.TransportDelay, s.TimeUnit)
	for i := range s.Entities {
		e := &s.Entities[i]
		e.AttitudeAngle = units.ToRadians(e.AttitudeAngle, s.AngleUnit)
		for j := range e.AngularVelocity {
			e.AngularVelocity[j] = units.ToRadians(e.AngularVelocity[j], s.AngleUnit)
			e.RotationalAcceleration[j] = units.ToRadians(e.RotationalAcceleration[j], s.AngleUnit)
		}
	}
	s.TimeUnit, s.AngleUnit = units.Seconds, units.Radians
	s.normalized = true
	return s.Validate()
}

// Validate checks a normalized scenario.
func (s *Scenario) Validate() error {
	if !(s.FramePeriod > 0) {
		return fmt.Errorf("frame_period must be positive, got %g", s.FramePeriod)
	}
	if !(s.RunDuration > 0) {
		return fmt.Errorf("run_duration must be positive, got %g", s.RunDuration)
	}
	if !(s.TransportDelay >= 0) {
		return fmt.Errorf("transport_delay must be non-negative, got %g", s.TransportDelay)
	}
	if s.DropEvery < 0 {
		return fmt.Errorf("drop_every must be non-negative, got %d", s.DropEvery)
	}
	if len(s.Entities) == 0 {
		return errors.New("scenario has no entities")
	}
	seen := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.Name == "" {
			return errors.New("entity name is required")
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate entity %q", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// KnownFederates returns the federates for the execution configuration,
// defaulting to a required publisher and subscriber.
func (s *Scenario) KnownFederates() []federation.KnownFederate {
	if len(s.Federates) == 0 {
		return []federation.KnownFederate{
			{Name: "publisher", Required: true},
			{Name: "subscriber", Required: true},
		}
	}
	out := make([]federation.KnownFederate, len(s.Federates))
	for i, f := range s.Federates {
		out[i] = federation.KnownFederate{Name: f.Name, Required: f.Required}
	}
	return out
}

func vec(v [3]float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// InitialState returns the entity's truth state at time t.
func (e EntitySpec) InitialState(t float64) lagcomp.KinematicState {
	return lagcomp.KinematicState{
		Time:                   t,
		Position:               vec(e.Position),
		Velocity:               vec(e.Velocity),
		Attitude:               lagcomp.AxisAngle(vec(e.AttitudeAxis), e.AttitudeAngle),
		AngularVelocity:        vec(e.AngularVelocity),
		Acceleration:           vec(e.Acceleration),
		RotationalAcceleration: vec(e.RotationalAcceleration),
	}
}
