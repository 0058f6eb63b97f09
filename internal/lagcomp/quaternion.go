package lagcomp

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// normFloorSquared is the squared norm below which a quaternion is treated
// as zero and cannot be normalised.
const normFloorSquared = 1e-24

// Quaternion is a scalar-first attitude quaternion. Attitudes are kept near
// unit norm; integration drifts the norm slightly.
type Quaternion struct {
	Scalar float64
	Vector r3.Vec
}

// QuaternionDerivative is the time derivative of a Quaternion. It is
// recomputed on every derivative evaluation and never persisted.
type QuaternionDerivative struct {
	Scalar float64
	Vector r3.Vec
}

// IdentityQuaternion is the zero rotation.
func IdentityQuaternion() Quaternion {
	return Quaternion{Scalar: 1}
}

// QuaternionFromNumber converts a gonum quaternion.
func QuaternionFromNumber(n quat.Number) Quaternion {
	return Quaternion{Scalar: n.Real, Vector: r3.Vec{X: n.Imag, Y: n.Jmag, Z: n.Kmag}}
}

// AxisAngle builds the unit quaternion rotating by angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) Quaternion {
	n := r3.Norm(axis)
	if n == 0 {
		return IdentityQuaternion()
	}
	s, c := math.Sincos(angle / 2)
	return Quaternion{Scalar: c, Vector: r3.Scale(s/n, axis)}
}

// Number converts q to a gonum quaternion.
func (q Quaternion) Number() quat.Number {
	return quat.Number{Real: q.Scalar, Imag: q.Vector.X, Jmag: q.Vector.Y, Kmag: q.Vector.Z}
}

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.Number())
}

// Normalized returns q scaled to unit norm. A quaternion too close to zero
// to normalise is returned unchanged with ok false.
func (q Quaternion) Normalized() (Quaternion, bool) {
	n := q.Number()
	sq := n.Real*n.Real + n.Imag*n.Imag + n.Jmag*n.Jmag + n.Kmag*n.Kmag
	if sq < normFloorSquared {
		return q, false
	}
	return QuaternionFromNumber(quat.Scale(1/math.Sqrt(sq), n)), true
}

// Mul returns the Hamilton product q ⊗ p.
func (q Quaternion) Mul(p Quaternion) Quaternion {
	return QuaternionFromNumber(quat.Mul(q.Number(), p.Number()))
}

// RotationAngle returns the rotation angle in [0, 2π] encoded by q.
func (q Quaternion) RotationAngle() float64 {
	return 2 * math.Atan2(r3.Norm(q.Vector), q.Scalar)
}

// ComputeQDot returns Q̇ = ½ Q ⊗ ω, treating the body-frame angular
// velocity as the pure quaternion (0, ω). Every caller that needs a
// quaternion rate goes through here so the derivative rows and the
// diagnostic rate always agree.
func ComputeQDot(scalar float64, vector, omega r3.Vec) QuaternionDerivative {
	q := quat.Number{Real: scalar, Imag: vector.X, Jmag: vector.Y, Kmag: vector.Z}
	w := quat.Number{Imag: omega.X, Jmag: omega.Y, Kmag: omega.Z}
	d := quat.Scale(0.5, quat.Mul(q, w))
	return QuaternionDerivative{Scalar: d.Real, Vector: r3.Vec{X: d.Imag, Y: d.Jmag, Z: d.Kmag}}
}

// PropagateConstantRate returns s advanced by dt under constant
// acceleration and constant body rate, using the closed-form solution.
// RotationalAcceleration is ignored. It is the reference the numerical
// compensation is checked against.
func PropagateConstantRate(s KinematicState, dt float64) KinematicState {
	out := s
	out.Time = s.Time + dt
	out.Position = r3.Add(s.Position, r3.Add(r3.Scale(dt, s.Velocity), r3.Scale(0.5*dt*dt, s.Acceleration)))
	out.Velocity = r3.Add(s.Velocity, r3.Scale(dt, s.Acceleration))

	half := quat.Number{
		Imag: 0.5 * dt * s.AngularVelocity.X,
		Jmag: 0.5 * dt * s.AngularVelocity.Y,
		Kmag: 0.5 * dt * s.AngularVelocity.Z,
	}
	out.Attitude = QuaternionFromNumber(quat.Mul(s.Attitude.Number(), quat.Exp(half)))
	return out
}
