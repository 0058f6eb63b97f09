package federation

import (
	"strings"

	"github.com/banshee-data/lagcomp/internal/monitoring"
	"github.com/banshee-data/lagcomp/internal/units"
)

// NoTerminateTime is the terminate time of a simulation that has not been
// given one. Any terminate time at or above it is treated as unset.
const NoTerminateTime = 1.0e20

// KnownFederate is a federate named in the federation configuration.
type KnownFederate struct {
	Name     string
	Required bool
}

// ExecutionConfiguration is the simulation configuration object the master
// federate publishes: who owns it, how long the run lasts and which
// federates must join.
type ExecutionConfiguration struct {
	Owner             string
	RunDuration       float64 // seconds
	RunDurationMicros int64   // wire form of RunDuration
	NumFederates      int
	RequiredFederates string // comma separated
}

// Configure rebuilds the required federate list from the known federates.
func (c *ExecutionConfiguration) Configure(known []KnownFederate) {
	names := make([]string, 0, len(known))
	for _, f := range known {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	c.NumFederates = len(names)
	c.RequiredFederates = strings.Join(names, ",")
}

// Required returns the required federate names.
func (c *ExecutionConfiguration) Required() []string {
	if c.RequiredFederates == "" {
		return nil
	}
	return strings.Split(c.RequiredFederates, ",")
}

// Pack prepares the configuration for sending. When terminateTime is unset
// the run duration becomes the terminate time; otherwise the run duration is
// what remains between the granted time and terminateTime. It returns the
// terminate time the local simulation should use.
func (c *ExecutionConfiguration) Pack(terminateTime, grantedTime float64) float64 {
	if terminateTime >= NoTerminateTime {
		monitoring.Debugf(monitoring.LevelInfo,
			"federation: setting simulation termination time to %g seconds", c.RunDuration)
		terminateTime = c.RunDuration
	} else {
		c.RunDuration = terminateTime - grantedTime
		if c.RunDuration < 0 {
			c.RunDuration = 0
		}
		monitoring.Debugf(monitoring.LevelInfo,
			"federation: setting simulation duration to %g seconds", c.RunDuration)
	}
	c.RunDurationMicros = units.SecondsToMicros(c.RunDuration)

	monitoring.Debugf(monitoring.LevelInfo,
		"federation: pack owner:'%s' run_duration:%g s run_duration_microsec:%d num_federates:%d required_federates:'%s'",
		c.Owner, c.RunDuration, c.RunDurationMicros, c.NumFederates, c.RequiredFederates)
	return terminateTime
}

// Unpack decodes a received configuration. It returns the terminate time
// to apply and whether one applies: a negative run duration leaves the
// local terminate time alone.
func (c *ExecutionConfiguration) Unpack() (float64, bool) {
	c.RunDuration = units.MicrosToSeconds(c.RunDurationMicros)

	monitoring.Debugf(monitoring.LevelInfo,
		"federation: unpack owner:'%s' run_duration:%g s num_federates:%d required_federates:'%s'",
		c.Owner, c.RunDuration, c.NumFederates, c.RequiredFederates)

	if c.RunDuration >= 0 {
		return c.RunDuration, true
	}
	return 0, false
}
