// Package refframe holds reference-frame state and compensates it through
// the generic lag compensation hooks.
package refframe

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lagcomp/internal/lagcomp"
)

// Frame is a reference frame's transform relative to its parent frame.
// Velocity and AngularVelocity are held constant across a compensation.
type Frame struct {
	Name   string
	Parent string
	Time   float64

	Position        r3.Vec
	Velocity        r3.Vec
	Attitude        lagcomp.Quaternion
	AngularVelocity r3.Vec // frame axes
}

// NewFrame returns a frame coincident with its parent.
func NewFrame(name, parent string) Frame {
	return Frame{Name: name, Parent: parent, Attitude: lagcomp.IdentityQuaternion()}
}

// ToParent expresses point p, given in this frame, in the parent frame.
func (f *Frame) ToParent(p r3.Vec) r3.Vec {
	q := f.Attitude.Number()
	v := quat.Number{Imag: p.X, Jmag: p.Y, Kmag: p.Z}
	r := quat.Mul(quat.Mul(q, v), quat.Conj(q))
	return r3.Add(f.Position, r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag})
}
