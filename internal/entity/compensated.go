package entity

import (
	"fmt"

	"github.com/banshee-data/lagcomp/internal/lagcomp"
)

// Compensated couples an entity to its own lag compensator.
type Compensated struct {
	Entity *PhysicalEntity
	comp   *lagcomp.Compensator
	state  *Attribute
}

// NewCompensated resolves the entity's attributes and builds and
// initialises a compensator for it. Errors here are fatal configuration
// errors for the caller.
func NewCompensated(e *PhysicalEntity, clock lagcomp.TimeSource, opts lagcomp.Options) (*Compensated, error) {
	if e.attrs == nil {
		if err := e.ResolveAttributes(); err != nil {
			return nil, err
		}
	}
	if opts.Name == "" {
		opts.Name = e.Name()
	}
	comp, err := lagcomp.NewCompensator(e, clock, opts)
	if err != nil {
		return nil, err
	}
	if err := comp.Initialize(); err != nil {
		return nil, err
	}
	return &Compensated{Entity: e, comp: comp, state: e.Attribute(AttrState)}, nil
}

// Compensator returns the underlying compensator.
func (c *Compensated) Compensator() *lagcomp.Compensator { return c.comp }

// Send compensates the entity state ahead by the lookahead before it is
// published.
func (c *Compensated) Send() (lagcomp.Result, error) {
	res, err := c.comp.SendLagCompensation()
	if err != nil {
		return res, fmt.Errorf("entity %q: send: %w", c.Entity.Name(), err)
	}
	return res, nil
}

// Receive compensates a freshly received state up to the current scenario
// time. It does nothing when the state attribute was not received this
// cycle.
func (c *Compensated) Receive() (lagcomp.Result, error) {
	res, err := c.comp.ReceiveLagCompensation(c.state.IsReceived())
	if err != nil {
		return res, fmt.Errorf("entity %q: receive: %w", c.Entity.Name(), err)
	}
	return res, nil
}
