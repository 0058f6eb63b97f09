package lagcomp

import (
	"errors"
	"fmt"

	"github.com/banshee-data/lagcomp/internal/config"
	"github.com/banshee-data/lagcomp/internal/integ"
	"github.com/banshee-data/lagcomp/internal/monitoring"
)

// ErrNonFinite is returned when compensation produces NaN or Inf.
var ErrNonFinite = errors.New("lagcomp: compensated state is not finite")

// Entity is the live simulation object whose state is compensated.
type Entity interface {
	// Time returns the timestamp embedded in the entity's current state.
	Time() float64
	// LoadState copies the entity's kinematic fields into dst.
	LoadState(dst *KinematicState)
	// StoreState writes the compensated fields of src back to the entity.
	StoreState(src *KinematicState)
}

// TimeSource is the slice of federation time management the compensator
// reads: the current scenario time and the lookahead interval, in seconds.
type TimeSource interface {
	ScenarioTime() float64
	Lookahead() float64
}

// Normalization selects when the attitude quaternion is renormalised.
type Normalization string

const (
	// NormalizeNever leaves integration drift in place.
	NormalizeNever Normalization = "never"
	// NormalizeStep renormalises after every main integration step.
	NormalizeStep Normalization = "step"
	// NormalizeRead renormalises only when the state is read or copied out.
	NormalizeRead Normalization = "read"
)

// IsValidNormalization reports whether n is a known policy.
func IsValidNormalization(n Normalization) bool {
	switch n {
	case NormalizeNever, NormalizeStep, NormalizeRead:
		return true
	}
	return false
}

// Options configures a Compensator.
type Options struct {
	Name          string // entity name used in diagnostics and traces
	Integrator    string // see integ.Names
	Dt            float64
	Tol           float64
	MaxSteps      int
	Normalization Normalization
	// Buffered means the entity's transmitted state is a copy of the
	// working state, so the send side may write the extrapolated state
	// back. Leave false when the live working state is transmitted
	// directly.
	Buffered bool
	Debug    bool
	Trace    *TraceCollector
}

// DefaultOptions returns the host-integrator configuration with the
// standard step and tolerance. Staged Euler lets the attitude drift off
// the unit sphere, so the default renormalises after every step.
func DefaultOptions() Options {
	return Options{
		Integrator:    integ.NameStagedEuler,
		Dt:            integ.DefaultDt,
		Tol:           integ.DefaultTol,
		MaxSteps:      integ.DefaultMaxSteps,
		Normalization: NormalizeStep,
		Buffered:      true,
	}
}

// OptionsFromConfig maps the tuning config onto compensator options.
// Name and Trace are left for the caller.
func OptionsFromConfig(cfg *config.LagCompConfig) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		Integrator:    cfg.GetIntegrator(),
		Dt:            cfg.GetIntegDt(),
		Tol:           cfg.GetIntegTol(),
		MaxSteps:      cfg.GetMaxSteps(),
		Normalization: Normalization(cfg.GetQuaternionNormalization()),
		Buffered:      cfg.GetBufferedState(),
		Debug:         cfg.GetDebug(),
	}
}

// Result is the status of one compensation entry point.
type Result struct {
	integ.Result
	Direction Direction
	// Skipped is set when the receive gate was closed.
	Skipped bool
}

// Compensator is the rigid-body lag compensator for one entity. It owns a
// lag-compensation buffer separate from the entity and one integrator,
// which must not be shared with another Compensator.
type Compensator struct {
	opts   Options
	entity Entity
	clock  TimeSource
	loop   integ.Loop

	data         KinematicState // lag-compensation buffer
	qdot         QuaternionDerivative
	compensateDt float64

	x, d []float64 // derivative scratch
}

// NewCompensator validates the state layout and options. Call Initialize
// (or SetIntegrator) before compensating.
func NewCompensator(entity Entity, clock TimeSource, opts Options) (*Compensator, error) {
	if err := validateLayout(); err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, errors.New("lagcomp: nil entity")
	}
	if clock == nil {
		return nil, errors.New("lagcomp: nil time source")
	}
	if opts.Normalization == "" {
		opts.Normalization = DefaultOptions().Normalization
	}
	if !IsValidNormalization(opts.Normalization) {
		return nil, fmt.Errorf("lagcomp: unknown quaternion normalization %q", opts.Normalization)
	}

	c := &Compensator{
		opts:   opts,
		entity: entity,
		clock:  clock,
		data:   NewKinematicState(),
		x:      make([]float64, StateSize),
		d:      make([]float64, StateSize),
	}
	c.loop = integ.Loop{
		Dt:       opts.Dt,
		Tol:      opts.Tol,
		MaxSteps: opts.MaxSteps,
		Debug:    opts.Debug,
	}
	if opts.Trace != nil {
		c.loop.OnStep = opts.Trace.step
	}
	return c, nil
}

// Initialize builds the configured integrator. A missing integrator is a
// fatal configuration error for the caller.
func (c *Compensator) Initialize() error {
	in, err := integ.New(c.opts.Integrator, StateSize, c.derivatives)
	if err != nil {
		return fmt.Errorf("lagcomp: initialize %q: %w", c.opts.Name, err)
	}
	return c.SetIntegrator(in)
}

// SetIntegrator installs a host-provided integrator sized for StateSize.
func (c *Compensator) SetIntegrator(in integ.StagedIntegrator) error {
	if in == nil {
		return fmt.Errorf("lagcomp: %q: %w", c.opts.Name, integ.ErrNilIntegrator)
	}
	if len(in.State()) < StateSize || len(in.Deriv()) < StateSize {
		return fmt.Errorf("lagcomp: %q: integrator buffers hold %d states, need %d",
			c.opts.Name, len(in.State()), StateSize)
	}
	c.loop.Integrator = in
	return c.loop.Validate()
}

// State returns the lag-compensation buffer.
func (c *Compensator) State() KinematicState {
	s := c.data
	if c.opts.Normalization == NormalizeRead {
		normalizeAttitude(&s)
	}
	return s
}

// QDot returns the attitude rate computed for the last compensated state.
func (c *Compensator) QDot() QuaternionDerivative { return c.qdot }

// CompensateDt returns the interval of the most recent compensation.
func (c *Compensator) CompensateDt() float64 { return c.compensateDt }

// SendLagCompensation extrapolates the entity state ahead by the lookahead
// interval before it is transmitted.
func (c *Compensator) SendLagCompensation() (Result, error) {
	begin := c.clock.ScenarioTime()
	c.compensateDt = c.clock.Lookahead()
	end := begin + c.compensateDt

	monitoring.Debugf(monitoring.LevelTrace,
		"******* Compensator.SendLagCompensation(%s): scenario-time:%g lookahead:%g adjusted-time:%g",
		c.opts.Name, begin, c.compensateDt, end)

	res, err := c.compensate(begin, end, DirectionSend)
	out := Result{Result: res, Direction: DirectionSend}
	if err != nil {
		return out, err
	}

	if c.opts.Buffered {
		c.copyOut()
	}
	return out, nil
}

// ReceiveLagCompensation extrapolates a just-received state from its
// timestamp to the current scenario time. When received is false the
// entity is left untouched: the local copy is already compensated and must
// not be extrapolated from itself.
func (c *Compensator) ReceiveLagCompensation(received bool) (Result, error) {
	end := c.clock.ScenarioTime()
	dataT := c.entity.Time()
	c.compensateDt = end - dataT

	monitoring.Debugf(monitoring.LevelTrace,
		"******* Compensator.ReceiveLagCompensation(%s): scenario-time:%g data-time:%g comp-time-step:%g",
		c.opts.Name, end, dataT, c.compensateDt)

	if !received {
		return Result{Direction: DirectionReceive, Skipped: true}, nil
	}

	res, err := c.compensate(dataT, end, DirectionReceive)
	out := Result{Result: res, Direction: DirectionReceive}
	if err != nil {
		return out, err
	}
	c.copyOut()
	return out, nil
}

// Compensate copies the entity state into the buffer and integrates it from
// tBegin to tEnd. The entity itself is not modified.
func (c *Compensator) Compensate(tBegin, tEnd float64) (integ.Result, error) {
	return c.compensate(tBegin, tEnd, DirectionDirect)
}

func (c *Compensator) compensate(tBegin, tEnd float64, dir Direction) (integ.Result, error) {
	c.entity.LoadState(&c.data)
	c.qdot = ComputeQDot(c.data.Attitude.Scalar, c.data.Attitude.Vector, c.data.AngularVelocity)
	c.compensateDt = tEnd - tBegin

	if c.opts.Debug {
		monitoring.Logf("%s data before compensation:\n%s", dir, c.data)
	}
	c.opts.Trace.begin(c.opts.Name, dir, tBegin, tEnd, c.data)

	res, err := c.loop.Run(rigidBodyHooks{c}, tBegin, tEnd)
	if err == nil && !c.data.IsFinite() {
		err = fmt.Errorf("%w: %s at t=%g", ErrNonFinite, c.opts.Name, res.Time)
	}

	if c.opts.Debug {
		monitoring.Logf("%s data after compensation:\n%s", dir, c.data)
	}
	c.opts.Trace.end(c.data, res, err)

	if err != nil {
		return res, fmt.Errorf("lagcomp: compensate %q over [%g, %g]: %w", c.opts.Name, tBegin, tEnd, err)
	}
	return res, nil
}

func (c *Compensator) copyOut() {
	out := c.data
	if c.opts.Normalization == NormalizeRead {
		normalizeAttitude(&out)
	}
	c.entity.StoreState(&out)
}

// derivatives is the self-contained integrator's derivative callback.
func (c *Compensator) derivatives(_ float64, x, d []float64) {
	rigidBodyDerivatives(x, d, c.data.Acceleration, c.data.RotationalAcceleration)
}

func normalizeAttitude(s *KinematicState) {
	if q, ok := s.Attitude.Normalized(); ok {
		s.Attitude = q
	}
}

// rigidBodyHooks maps the compensation buffer onto the integrator.
type rigidBodyHooks struct{ c *Compensator }

func (h rigidBodyHooks) DerivativeFirst() {
	c := h.c
	Gather(&c.data, c.x)
	c.derivatives(0, c.x, c.d)
	c.qdot = QuaternionDerivative{
		Scalar: c.d[SlotQuatScalar],
		Vector: vecAt(c.d, SlotQuatX),
	}
}

func (h rigidBodyHooks) Load(in integ.StagedIntegrator) {
	c := h.c
	Gather(&c.data, in.State())
	copy(in.Deriv(), c.d)
}

func (h rigidBodyHooks) Unload(in integ.StagedIntegrator) {
	c := h.c
	Scatter(in.State(), &c.data)
	if c.opts.Normalization == NormalizeStep && in.Stage() == 0 {
		normalizeAttitude(&c.data)
	}
}

func (h rigidBodyHooks) UpdateTime(t float64) {
	h.c.data.Time = t
}
