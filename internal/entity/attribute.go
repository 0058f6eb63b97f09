package entity

import (
	"errors"
	"fmt"
)

// Attribute names of a physical entity.
const (
	AttrName                   = "name"
	AttrType                   = "type"
	AttrStatus                 = "status"
	AttrParentReferenceFrame   = "parent_reference_frame"
	AttrState                  = "state"
	AttrAcceleration           = "acceleration"
	AttrRotationalAcceleration = "rotational_acceleration"
	AttrCenterOfMass           = "center_of_mass"
	AttrBodyWrtStructural      = "body_wrt_structural"
)

// AttributeNames lists every physical entity attribute in publication order.
var AttributeNames = []string{
	AttrName,
	AttrType,
	AttrStatus,
	AttrParentReferenceFrame,
	AttrState,
	AttrAcceleration,
	AttrRotationalAcceleration,
	AttrCenterOfMass,
	AttrBodyWrtStructural,
}

var (
	// ErrUnknownAttribute is returned when an attribute name cannot be
	// resolved. It is a fatal configuration error.
	ErrUnknownAttribute = errors.New("entity: unknown attribute")
	// ErrNilAttributeName is returned for an empty attribute name.
	ErrNilAttributeName = errors.New("entity: empty attribute name")
)

// Attribute is one published or subscribed field group. The received flag
// is set when fresh data for the attribute arrives in the current cycle.
type Attribute struct {
	Name         string
	Publish      bool
	Subscribe    bool
	LocallyOwned bool

	received bool
}

// MarkReceived flags fresh data for this cycle.
func (a *Attribute) MarkReceived() { a.received = true }

// ClearReceived resets the flag at the start of a cycle.
func (a *Attribute) ClearReceived() { a.received = false }

// IsReceived reports whether data arrived this cycle.
func (a *Attribute) IsReceived() bool { return a != nil && a.received }

// Registry holds the attributes of one object instance.
type Registry struct {
	object string
	order  []string
	attrs  map[string]*Attribute
}

// NewRegistry creates attributes named names for object. A publishing
// registry owns and publishes its attributes; otherwise it subscribes.
func NewRegistry(object string, publishes bool, names ...string) *Registry {
	r := &Registry{object: object, attrs: make(map[string]*Attribute, len(names))}
	for _, n := range names {
		if _, dup := r.attrs[n]; dup {
			continue
		}
		r.order = append(r.order, n)
		r.attrs[n] = &Attribute{
			Name:         n,
			Publish:      publishes,
			Subscribe:    !publishes,
			LocallyOwned: publishes,
		}
	}
	return r
}

// Lookup returns the named attribute.
func (r *Registry) Lookup(name string) (*Attribute, error) {
	if name == "" {
		return nil, ErrNilAttributeName
	}
	a, ok := r.attrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: object %q has no attribute named %q; check the attribute name and the object configuration",
			ErrUnknownAttribute, r.object, name)
	}
	return a, nil
}

// Names returns the attribute names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ClearReceived resets every received flag.
func (r *Registry) ClearReceived() {
	for _, a := range r.attrs {
		a.ClearReceived()
	}
}

// Received returns the names of attributes received this cycle.
func (r *Registry) Received() []string {
	var out []string
	for _, n := range r.order {
		if r.attrs[n].received {
			out = append(out, n)
		}
	}
	return out
}
