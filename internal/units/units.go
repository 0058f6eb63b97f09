// Package units provides shared constants and conversions for time and
// angle units and the 64-bit microsecond logical time used by federations.
package units

import (
	"math"
	"time"
)

// Time unit constants
const (
	Seconds      = "s"
	Milliseconds = "ms"
	Microseconds = "us"
)

// Angle unit constants
const (
	Radians = "rad"
	Degrees = "deg"
)

// ValidTimeUnits contains all valid time unit values
var ValidTimeUnits = []string{Seconds, Milliseconds, Microseconds}

// ValidAngleUnits contains all valid angle unit values
var ValidAngleUnits = []string{Radians, Degrees}

// IsValidTimeUnit checks if the given unit is in the list of valid time units
func IsValidTimeUnit(unit string) bool {
	return contains(ValidTimeUnits, unit)
}

// IsValidAngleUnit checks if the given unit is in the list of valid angle units
func IsValidAngleUnit(unit string) bool {
	return contains(ValidAngleUnits, unit)
}

func contains(list []string, unit string) bool {
	for _, v := range list {
		if unit == v {
			return true
		}
	}
	return false
}

// GetValidTimeUnitsString returns a comma-separated string of valid time units for error messages
func GetValidTimeUnitsString() string {
	return "s, ms, us"
}

// ToSeconds converts a time value in the given units to seconds.
// Unknown units are treated as seconds.
func ToSeconds(value float64, unit string) float64 {
	switch unit {
	case Milliseconds:
		return value / 1e3
	case Microseconds:
		return value / 1e6
	default:
		return value
	}
}

// ToRadians converts an angle in the given units to radians.
// Unknown units are treated as radians.
func ToRadians(value float64, unit string) float64 {
	if unit == Degrees {
		return value * math.Pi / 180
	}
	return value
}

// ToDegrees converts an angle in radians to degrees.
func ToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// MicrosPerSecond is the resolution of federation logical time.
const MicrosPerSecond = 1000000

// MaxLogicalTimeSeconds is the largest time, in seconds, that fits in the
// microsecond logical time representation.
const MaxLogicalTimeSeconds = float64(math.MaxInt64 / MicrosPerSecond)

// SecondsToMicros encodes seconds as 64-bit microseconds, rounding to the
// nearest microsecond and saturating at the representable range.
func SecondsToMicros(seconds float64) int64 {
	switch {
	case math.IsNaN(seconds):
		return 0
	case seconds >= MaxLogicalTimeSeconds:
		return math.MaxInt64
	case seconds <= -MaxLogicalTimeSeconds:
		return math.MinInt64
	}
	return int64(math.Round(seconds * MicrosPerSecond))
}

// MicrosToSeconds decodes 64-bit microseconds to seconds.
func MicrosToSeconds(micros int64) float64 {
	whole := micros / MicrosPerSecond
	frac := micros % MicrosPerSecond
	return float64(whole) + float64(frac)/MicrosPerSecond
}

// DurationToSeconds converts a wall-clock duration to seconds.
func DurationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}

// SecondsToDuration converts seconds to a duration, rounding to the
// nearest nanosecond.
func SecondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}
