package lagcomp

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// StateSize is the length of the rigid-body integration state vector.
const StateSize = 13

// Slot indexes the rigid-body state vector.
type Slot int

const (
	SlotPosX Slot = iota
	SlotPosY
	SlotPosZ
	SlotVelX
	SlotVelY
	SlotVelZ
	SlotQuatScalar
	SlotQuatX
	SlotQuatY
	SlotQuatZ
	SlotAngVelX
	SlotAngVelY
	SlotAngVelZ
)

// ErrLayoutMismatch is returned when the state-vector layout and the
// derivative function disagree about which slot holds which field.
var ErrLayoutMismatch = errors.New("lagcomp: state layout does not match derivative function")

// slotField binds a state-vector slot to the KinematicState field it mirrors.
type slotField struct {
	name string
	ref  func(*KinematicState) *float64
}

// rigidBodyLayout is the one place the slot→field mapping is written down.
// Gather and Scatter walk it; validateLayout checks it against
// rigidBodyDerivatives.
var rigidBodyLayout = [StateSize]slotField{
	SlotPosX:       {"position.x", func(s *KinematicState) *float64 { return &s.Position.X }},
	SlotPosY:       {"position.y", func(s *KinematicState) *float64 { return &s.Position.Y }},
	SlotPosZ:       {"position.z", func(s *KinematicState) *float64 { return &s.Position.Z }},
	SlotVelX:       {"velocity.x", func(s *KinematicState) *float64 { return &s.Velocity.X }},
	SlotVelY:       {"velocity.y", func(s *KinematicState) *float64 { return &s.Velocity.Y }},
	SlotVelZ:       {"velocity.z", func(s *KinematicState) *float64 { return &s.Velocity.Z }},
	SlotQuatScalar: {"attitude.scalar", func(s *KinematicState) *float64 { return &s.Attitude.Scalar }},
	SlotQuatX:      {"attitude.vector.x", func(s *KinematicState) *float64 { return &s.Attitude.Vector.X }},
	SlotQuatY:      {"attitude.vector.y", func(s *KinematicState) *float64 { return &s.Attitude.Vector.Y }},
	SlotQuatZ:      {"attitude.vector.z", func(s *KinematicState) *float64 { return &s.Attitude.Vector.Z }},
	SlotAngVelX:    {"angular_velocity.x", func(s *KinematicState) *float64 { return &s.AngularVelocity.X }},
	SlotAngVelY:    {"angular_velocity.y", func(s *KinematicState) *float64 { return &s.AngularVelocity.Y }},
	SlotAngVelZ:    {"angular_velocity.z", func(s *KinematicState) *float64 { return &s.AngularVelocity.Z }},
}

// SlotName returns the field name held by slot i.
func SlotName(i Slot) string {
	if i < 0 || int(i) >= StateSize {
		return fmt.Sprintf("slot(%d)", int(i))
	}
	return rigidBodyLayout[i].name
}

// Gather copies the integrated fields of s into dst in layout order.
func Gather(s *KinematicState, dst []float64) {
	for i := range rigidBodyLayout {
		dst[i] = *rigidBodyLayout[i].ref(s)
	}
}

// Scatter copies src back into the integrated fields of s.
func Scatter(src []float64, s *KinematicState) {
	for i := range rigidBodyLayout {
		*rigidBodyLayout[i].ref(s) = src[i]
	}
}

func vecAt(x []float64, i Slot) r3.Vec {
	return r3.Vec{X: x[i], Y: x[i+1], Z: x[i+2]}
}

func putVec(d []float64, i Slot, v r3.Vec) {
	d[i], d[i+1], d[i+2] = v.X, v.Y, v.Z
}

// rigidBodyDerivatives evaluates the translational and rotational rigid-body
// derivatives with accelerations held constant.
func rigidBodyDerivatives(x, d []float64, accel, rotAccel r3.Vec) {
	// Translational state derivatives.
	putVec(d, SlotPosX, vecAt(x, SlotVelX))
	putVec(d, SlotVelX, accel)

	// Rotational state derivatives.
	qdot := ComputeQDot(x[SlotQuatScalar], vecAt(x, SlotQuatX), vecAt(x, SlotAngVelX))
	d[SlotQuatScalar] = qdot.Scalar
	putVec(d, SlotQuatX, qdot.Vector)
	putVec(d, SlotAngVelX, rotAccel)
}

var (
	layoutOnce sync.Once
	layoutErr  error
)

// validateLayout checks the layout and derivative function once per process.
func validateLayout() error {
	layoutOnce.Do(func() { layoutErr = checkLayout() })
	return layoutErr
}

// checkLayout fills every slot with a distinct value, scatters it into a
// state, and confirms that the derivative computed from the vector matches
// the derivative computed from the named fields.
func checkLayout() error {
	sample := make([]float64, StateSize)
	for i := range sample {
		sample[i] = float64(i + 1)
	}

	var s KinematicState
	Scatter(sample, &s)

	back := make([]float64, StateSize)
	Gather(&s, back)
	for i := range sample {
		if back[i] != sample[i] {
			return fmt.Errorf("%w: slot %d (%s) does not round-trip", ErrLayoutMismatch, i, rigidBodyLayout[i].name)
		}
	}

	// Every slot must alias a distinct field.
	seen := make(map[*float64]int, StateSize)
	for i := range rigidBodyLayout {
		p := rigidBodyLayout[i].ref(&s)
		if j, dup := seen[p]; dup {
			return fmt.Errorf("%w: slots %d and %d alias the same field", ErrLayoutMismatch, j, i)
		}
		seen[p] = i
	}

	accel := r3.Vec{X: 101, Y: 102, Z: 103}
	rotAccel := r3.Vec{X: 201, Y: 202, Z: 203}
	d := make([]float64, StateSize)
	rigidBodyDerivatives(sample, d, accel, rotAccel)

	qdot := ComputeQDot(s.Attitude.Scalar, s.Attitude.Vector, s.AngularVelocity)
	want := KinematicState{
		Position:        s.Velocity,
		Velocity:        accel,
		Attitude:        Quaternion{Scalar: qdot.Scalar, Vector: qdot.Vector},
		AngularVelocity: rotAccel,
	}
	expected := make([]float64, StateSize)
	Gather(&want, expected)
	for i := range expected {
		if d[i] != expected[i] {
			return fmt.Errorf("%w: derivative slot %d (%s) = %g, want %g",
				ErrLayoutMismatch, i, rigidBodyLayout[i].name, d[i], expected[i])
		}
	}
	return nil
}
