package entity

import (
	"errors"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lagcomp/internal/lagcomp"
	"github.com/banshee-data/lagcomp/internal/monitoring"
)

// ErrMissingName is returned when an entity is created without a name.
var ErrMissingName = errors.New("entity: physical entity name is required")

// PhysicalEntity is a simulated object whose kinematic state is shared
// between federates. Identity fields may be unset until Initialize fills
// them with empty strings.
type PhysicalEntity struct {
	InstanceID string

	name        *string
	typ         *string
	status      *string
	parentFrame *string

	// State holds the kinematic state with the accelerations supplied by
	// the entity model.
	State             lagcomp.KinematicState
	CenterOfMass      r3.Vec
	BodyWrtStructural lagcomp.Quaternion

	registry *Registry
	attrs    map[string]*Attribute // resolved by ResolveAttributes

	initialized bool
}

// New creates an entity named name. Publishing entities own their
// attributes; subscribing entities receive them.
func New(name, parentFrame string, publishes bool) (*PhysicalEntity, error) {
	return NewWithAttributes(name, parentFrame, publishes, AttributeNames...)
}

// NewWithAttributes creates an entity whose object configuration declares
// only the named attributes. ResolveAttributes fails if any entity
// attribute is missing.
func NewWithAttributes(name, parentFrame string, publishes bool, attributes ...string) (*PhysicalEntity, error) {
	if name == "" {
		return nil, ErrMissingName
	}
	e := &PhysicalEntity{
		InstanceID:        uuid.NewString(),
		name:              &name,
		parentFrame:       &parentFrame,
		State:             lagcomp.NewKinematicState(),
		BodyWrtStructural: lagcomp.IdentityQuaternion(),
		registry:          NewRegistry(name, publishes, attributes...),
	}
	return e, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (e *PhysicalEntity) Name() string        { return deref(e.name) }
func (e *PhysicalEntity) Type() string        { return deref(e.typ) }
func (e *PhysicalEntity) Status() string      { return deref(e.status) }
func (e *PhysicalEntity) ParentFrame() string { return deref(e.parentFrame) }

func (e *PhysicalEntity) SetName(s string)        { e.name = &s }
func (e *PhysicalEntity) SetType(s string)        { e.typ = &s }
func (e *PhysicalEntity) SetStatus(s string)      { e.status = &s }
func (e *PhysicalEntity) SetParentFrame(s string) { e.parentFrame = &s }

// Attributes returns the entity's attribute registry.
func (e *PhysicalEntity) Attributes() *Registry { return e.registry }

// Initialized reports whether Initialize has run.
func (e *PhysicalEntity) Initialized() bool { return e.initialized }

// Initialize substitutes empty strings for unset identity fields, warning
// about each one.
func (e *PhysicalEntity) Initialize() {
	fill := func(p **string, what, field string) {
		if *p == nil {
			monitoring.Warnf("entity: unexpected unset entity %s; setting %s to empty string", what, field)
			empty := ""
			*p = &empty
		}
	}
	fill(&e.name, "name", "name")
	fill(&e.typ, "type", "type")
	fill(&e.status, "status", "status")
	fill(&e.parentFrame, "parent_ref_frame", "parent_ref_frame")
	e.initialized = true
}

// ResolveAttributes looks up every entity attribute once so later cycles
// can read received flags without a lookup. An unresolvable name is a fatal
// configuration error.
func (e *PhysicalEntity) ResolveAttributes() error {
	attrs := make(map[string]*Attribute, len(AttributeNames))
	for _, n := range AttributeNames {
		a, err := e.registry.Lookup(n)
		if err != nil {
			return err
		}
		attrs[n] = a
	}
	e.attrs = attrs
	return nil
}

// Attribute returns a resolved attribute, or nil before ResolveAttributes.
func (e *PhysicalEntity) Attribute(name string) *Attribute {
	return e.attrs[name]
}

// Time returns the timestamp of the entity state.
func (e *PhysicalEntity) Time() float64 { return e.State.Time }

// LoadState copies the full kinematic state, accelerations included.
func (e *PhysicalEntity) LoadState(dst *lagcomp.KinematicState) {
	*dst = e.State
}

// StoreState writes back the time and integrated fields. Accelerations
// belong to the entity model and are left alone.
func (e *PhysicalEntity) StoreState(src *lagcomp.KinematicState) {
	e.State.Time = src.Time
	e.State.Position = src.Position
	e.State.Velocity = src.Velocity
	e.State.Attitude = src.Attitude
	e.State.AngularVelocity = src.AngularVelocity
}

// Update is one cycle's worth of received attribute values. Nil fields
// were not received.
type Update struct {
	Name                   *string
	Type                   *string
	Status                 *string
	ParentFrame            *string
	State                  *lagcomp.KinematicState // time and integrated fields
	Acceleration           *r3.Vec
	RotationalAcceleration *r3.Vec
	CenterOfMass           *r3.Vec
	BodyWrtStructural      *lagcomp.Quaternion
}

// Snapshot returns an update carrying every attribute of e.
func (e *PhysicalEntity) Snapshot() Update {
	name, typ, status, parent := e.Name(), e.Type(), e.Status(), e.ParentFrame()
	state := e.State
	accel, rot := e.State.Acceleration, e.State.RotationalAcceleration
	cm, body := e.CenterOfMass, e.BodyWrtStructural
	return Update{
		Name:                   &name,
		Type:                   &typ,
		Status:                 &status,
		ParentFrame:            &parent,
		State:                  &state,
		Acceleration:           &accel,
		RotationalAcceleration: &rot,
		CenterOfMass:           &cm,
		BodyWrtStructural:      &body,
	}
}

// Apply clears the received flags, then applies u and marks each attribute
// it carries as received.
func (e *PhysicalEntity) Apply(u Update) {
	e.registry.ClearReceived()
	mark := func(name string) {
		if a, err := e.registry.Lookup(name); err == nil {
			a.MarkReceived()
		}
	}

	if u.Name != nil {
		e.SetName(*u.Name)
		mark(AttrName)
	}
	if u.Type != nil {
		e.SetType(*u.Type)
		mark(AttrType)
	}
	if u.Status != nil {
		e.SetStatus(*u.Status)
		mark(AttrStatus)
	}
	if u.ParentFrame != nil {
		e.SetParentFrame(*u.ParentFrame)
		mark(AttrParentReferenceFrame)
	}
	if u.State != nil {
		e.StoreState(u.State)
		mark(AttrState)
	}
	if u.Acceleration != nil {
		e.State.Acceleration = *u.Acceleration
		mark(AttrAcceleration)
	}
	if u.RotationalAcceleration != nil {
		e.State.RotationalAcceleration = *u.RotationalAcceleration
		mark(AttrRotationalAcceleration)
	}
	if u.CenterOfMass != nil {
		e.CenterOfMass = *u.CenterOfMass
		mark(AttrCenterOfMass)
	}
	if u.BodyWrtStructural != nil {
		e.BodyWrtStructural = *u.BodyWrtStructural
		mark(AttrBodyWrtStructural)
	}
}
