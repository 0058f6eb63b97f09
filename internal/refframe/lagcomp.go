package refframe

import (
	"fmt"

	"github.com/banshee-data/lagcomp/internal/integ"
	"github.com/banshee-data/lagcomp/internal/lagcomp"
	"github.com/banshee-data/lagcomp/internal/monitoring"
)

// Frame state vector slots.
const (
	slotPos   = 0 // 3
	slotQuat  = 3 // 4: scalar then vector
	stateSize = 7
)

// FrameLagComp compensates a reference frame with the shared step-control
// loop. It implements lagcomp.GenericState over a 7-slot vector of
// position and attitude.
type FrameLagComp struct {
	frame *Frame
	clock lagcomp.TimeSource
	comp  *lagcomp.GenericCompensator

	// Buffered allows Send to write the extrapolated frame back.
	Buffered bool

	buf   Frame // lag-compensation buffer
	x, d  []float64
	dtGo  float64
	norm  lagcomp.Normalization
	debug bool
}

var _ lagcomp.GenericState = (*FrameLagComp)(nil)

// NewFrameLagComp builds a compensator for frame using the named
// integrator and step settings.
func NewFrameLagComp(frame *Frame, clock lagcomp.TimeSource, opts lagcomp.Options) (*FrameLagComp, error) {
	if frame == nil {
		return nil, fmt.Errorf("refframe: nil frame")
	}
	if clock == nil {
		return nil, fmt.Errorf("refframe: %q: nil time source", frame.Name)
	}
	norm := opts.Normalization
	if norm == "" {
		norm = lagcomp.DefaultOptions().Normalization
	}
	if !lagcomp.IsValidNormalization(norm) {
		return nil, fmt.Errorf("refframe: %q: unknown quaternion normalization %q", frame.Name, norm)
	}
	f := &FrameLagComp{
		frame:    frame,
		clock:    clock,
		Buffered: opts.Buffered,
		x:        make([]float64, stateSize),
		d:        make([]float64, stateSize),
		norm:     norm,
		debug:    opts.Debug,
	}
	in, err := integ.New(opts.Integrator, stateSize, f.derivatives)
	if err != nil {
		return nil, fmt.Errorf("refframe: %q: %w", frame.Name, err)
	}
	f.comp, err = lagcomp.NewGenericCompensator(frame.Name, in)
	if err != nil {
		return nil, err
	}
	if err := f.comp.SetStep(opts.Dt, opts.Tol); err != nil {
		return nil, fmt.Errorf("refframe: %q: %w", frame.Name, err)
	}
	f.comp.SetMaxSteps(opts.MaxSteps)
	f.comp.SetDebug(opts.Debug)
	return f, nil
}

// State returns the lag-compensation buffer.
func (f *FrameLagComp) State() Frame {
	s := f.buf
	if f.norm == lagcomp.NormalizeRead {
		normalize(&s)
	}
	return s
}

func normalize(f *Frame) {
	if q, ok := f.Attitude.Normalized(); ok {
		f.Attitude = q
	}
}

// CompensateDt returns the interval of the most recent compensation.
func (f *FrameLagComp) CompensateDt() float64 { return f.dtGo }

func (f *FrameLagComp) gather(dst []float64) {
	dst[slotPos], dst[slotPos+1], dst[slotPos+2] = f.buf.Position.X, f.buf.Position.Y, f.buf.Position.Z
	dst[slotQuat] = f.buf.Attitude.Scalar
	dst[slotQuat+1], dst[slotQuat+2], dst[slotQuat+3] = f.buf.Attitude.Vector.X, f.buf.Attitude.Vector.Y, f.buf.Attitude.Vector.Z
}

func (f *FrameLagComp) scatter(src []float64) {
	f.buf.Position.X, f.buf.Position.Y, f.buf.Position.Z = src[slotPos], src[slotPos+1], src[slotPos+2]
	f.buf.Attitude.Scalar = src[slotQuat]
	f.buf.Attitude.Vector.X, f.buf.Attitude.Vector.Y, f.buf.Attitude.Vector.Z = src[slotQuat+1], src[slotQuat+2], src[slotQuat+3]
}

func (f *FrameLagComp) derivatives(_ float64, x, d []float64) {
	v := f.buf.Velocity
	d[slotPos], d[slotPos+1], d[slotPos+2] = v.X, v.Y, v.Z

	q := lagcomp.Quaternion{Scalar: x[slotQuat]}
	q.Vector.X, q.Vector.Y, q.Vector.Z = x[slotQuat+1], x[slotQuat+2], x[slotQuat+3]
	qd := lagcomp.ComputeQDot(q.Scalar, q.Vector, f.buf.AngularVelocity)
	d[slotQuat] = qd.Scalar
	d[slotQuat+1], d[slotQuat+2], d[slotQuat+3] = qd.Vector.X, qd.Vector.Y, qd.Vector.Z
}

// DerivativeFirst evaluates the frame derivatives for the buffer.
func (f *FrameLagComp) DerivativeFirst() {
	f.gather(f.x)
	f.derivatives(0, f.x, f.d)
}

// Load stages the buffer and its derivatives into the integrator.
func (f *FrameLagComp) Load(in integ.StagedIntegrator) {
	f.gather(in.State())
	copy(in.Deriv(), f.d)
}

// Unload copies the integrated state back into the buffer, renormalising
// the attitude after each full step under NormalizeStep.
func (f *FrameLagComp) Unload(in integ.StagedIntegrator) {
	f.scatter(in.State())
	if f.norm == lagcomp.NormalizeStep && in.Stage() == 0 {
		normalize(&f.buf)
	}
}

// UpdateTime commits the integrated time to the buffer.
func (f *FrameLagComp) UpdateTime(t float64) { f.buf.Time = t }

// Compensate copies the live frame into the buffer and integrates it from
// tBegin to tEnd.
func (f *FrameLagComp) Compensate(tBegin, tEnd float64) (integ.Result, error) {
	f.buf = *f.frame
	f.dtGo = tEnd - tBegin
	if f.debug {
		monitoring.Logf("frame %s before compensation: t=%g pos=%v att=%v", f.buf.Name, f.buf.Time, f.buf.Position, f.buf.Attitude)
	}
	res, err := f.comp.Compensate(f, tBegin, tEnd)
	if f.debug {
		monitoring.Logf("frame %s after compensation: t=%g pos=%v att=%v", f.buf.Name, f.buf.Time, f.buf.Position, f.buf.Attitude)
	}
	return res, err
}

// Send extrapolates the frame ahead by the lookahead interval.
func (f *FrameLagComp) Send() (lagcomp.Result, error) {
	begin := f.clock.ScenarioTime()
	end := begin + f.clock.Lookahead()
	monitoring.Debugf(monitoring.LevelTrace,
		"******* FrameLagComp.Send(%s): scenario-time:%g adjusted-time:%g", f.frame.Name, begin, end)

	res, err := f.Compensate(begin, end)
	out := lagcomp.Result{Result: res, Direction: lagcomp.DirectionSend}
	if err != nil {
		return out, err
	}
	if f.Buffered {
		f.copyOut()
	}
	return out, nil
}

// Receive extrapolates a received frame from its timestamp to the current
// scenario time. The frame is left alone and the result marked Skipped
// when nothing was received.
func (f *FrameLagComp) Receive(received bool) (lagcomp.Result, error) {
	end := f.clock.ScenarioTime()
	monitoring.Debugf(monitoring.LevelTrace,
		"******* FrameLagComp.Receive(%s): scenario-time:%g data-time:%g", f.frame.Name, end, f.frame.Time)
	if !received {
		return lagcomp.Result{Direction: lagcomp.DirectionReceive, Skipped: true}, nil
	}
	res, err := f.Compensate(f.frame.Time, end)
	out := lagcomp.Result{Result: res, Direction: lagcomp.DirectionReceive}
	if err != nil {
		return out, err
	}
	f.copyOut()
	return out, nil
}

func (f *FrameLagComp) copyOut() {
	out := f.State()
	f.frame.Time = out.Time
	f.frame.Position = out.Position
	f.frame.Attitude = out.Attitude
}
