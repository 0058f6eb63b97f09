package lagcomp

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// KinematicState is the snapshot being compensated. Acceleration and
// RotationalAcceleration are supplied by the surrounding entity model and
// held constant across a compensation; they are never integrated.
type KinematicState struct {
	Time float64

	Position        r3.Vec
	Velocity        r3.Vec
	Attitude        Quaternion
	AngularVelocity r3.Vec // body frame

	Acceleration           r3.Vec
	RotationalAcceleration r3.Vec
}

// NewKinematicState returns a zeroed state with an identity attitude.
func NewKinematicState() KinematicState {
	return KinematicState{Attitude: IdentityQuaternion()}
}

// IsFinite reports whether every integrated field is finite.
func (s *KinematicState) IsFinite() bool {
	vals := [...]float64{
		s.Time,
		s.Position.X, s.Position.Y, s.Position.Z,
		s.Velocity.X, s.Velocity.Y, s.Velocity.Z,
		s.Attitude.Scalar, s.Attitude.Vector.X, s.Attitude.Vector.Y, s.Attitude.Vector.Z,
		s.AngularVelocity.X, s.AngularVelocity.Y, s.AngularVelocity.Z,
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// String renders the state as a multi-line dump for debug output.
func (s KinematicState) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\ttime: %.9g\n", s.Time)
	fmt.Fprintf(&b, "\tposition: (%.9g, %.9g, %.9g)\n", s.Position.X, s.Position.Y, s.Position.Z)
	fmt.Fprintf(&b, "\tvelocity: (%.9g, %.9g, %.9g)\n", s.Velocity.X, s.Velocity.Y, s.Velocity.Z)
	fmt.Fprintf(&b, "\tacceleration: (%.9g, %.9g, %.9g)\n", s.Acceleration.X, s.Acceleration.Y, s.Acceleration.Z)
	fmt.Fprintf(&b, "\tattitude (s,v): (%.9g; %.9g, %.9g, %.9g)\n",
		s.Attitude.Scalar, s.Attitude.Vector.X, s.Attitude.Vector.Y, s.Attitude.Vector.Z)
	fmt.Fprintf(&b, "\tangular velocity: (%.9g, %.9g, %.9g)\n",
		s.AngularVelocity.X, s.AngularVelocity.Y, s.AngularVelocity.Z)
	fmt.Fprintf(&b, "\trotational acceleration: (%.9g, %.9g, %.9g)",
		s.RotationalAcceleration.X, s.RotationalAcceleration.Y, s.RotationalAcceleration.Z)
	return b.String()
}
