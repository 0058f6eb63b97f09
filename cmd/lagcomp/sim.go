package main

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lagcomp/internal/entity"
	"github.com/banshee-data/lagcomp/internal/federation"
	"github.com/banshee-data/lagcomp/internal/lagcomp"
	"github.com/banshee-data/lagcomp/internal/monitoring"
	"github.com/banshee-data/lagcomp/internal/report"
	"github.com/banshee-data/lagcomp/internal/timeutil"
	"github.com/banshee-data/lagcomp/internal/units"
)

// grantTimeout bounds how long the subscriber waits for each time grant.
const grantTimeout = 5 * time.Second

// Sample is the subscriber's view of one entity at one frame.
type Sample struct {
	Time        float64
	Received    bool
	Truth       r3.Vec
	Compensated r3.Vec
}

// EntityRun collects one entity's samples and counters.
type EntityRun struct {
	Name     string
	Samples  []Sample
	Sends    int
	Receives int
	Skipped  int
}

// MaxError returns the largest position error over the samples.
func (r *EntityRun) MaxError() float64 {
	var m float64
	for _, s := range r.Samples {
		if d := r3.Norm(r3.Sub(s.Compensated, s.Truth)); d > m {
			m = d
		}
	}
	return m
}

// Series returns the position error against time for plotting.
func (r *EntityRun) Series() (report.Series, error) {
	times := make([]float64, len(r.Samples))
	got := make([]r3.Vec, len(r.Samples))
	want := make([]r3.Vec, len(r.Samples))
	for i, s := range r.Samples {
		times[i], got[i], want[i] = s.Time, s.Compensated, s.Truth
	}
	return report.PositionErrorSeries(r.Name, times, got, want)
}

// Summary is the outcome of a simulation run.
type Summary struct {
	Frames    int
	Terminate float64 // logical seconds
	Entities  []*EntityRun
	Traces    []lagcomp.TraceRecord
}

type delivery struct {
	dueMicros int64
	update    entity.Update
}

type simEntity struct {
	spec   EntitySpec
	truth0 lagcomp.KinematicState
	pub    *entity.Compensated
	sub    *entity.Compensated
	queue  []delivery
	seen   bool
	run    *EntityRun
}

// Simulation runs a publishing and a subscribing federate in lockstep,
// passing entity updates between them with a transport delay.
type Simulation struct {
	scn    *Scenario
	opts   lagcomp.Options
	clock  timeutil.Clock
	pacer  *timeutil.Pacer
	pubCtl *federation.ExecutionControl
	subCtl *federation.ExecutionControl
	trace  *lagcomp.TraceCollector
}

// NewSimulation prepares a run. rate paces scenario time against wall
// time; zero runs as fast as possible.
func NewSimulation(scn *Scenario, opts lagcomp.Options, lookahead time.Duration, clock timeutil.Clock, rate float64) (*Simulation, error) {
	if err := scn.Normalize(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	pubCtl, err := federation.NewExecutionControl(scn.Epoch, lookahead)
	if err != nil {
		return nil, err
	}
	subCtl, err := federation.NewExecutionControl(scn.Epoch, lookahead)
	if err != nil {
		return nil, err
	}
	pubCtl.SetCTEClock(clock)

	frames := int(scn.RunDuration/scn.FramePeriod) + 1
	trace := lagcomp.NewTraceCollector(2 * frames * len(scn.Entities))
	trace.SetClock(clock)
	trace.SetEnabled(true)
	opts.Trace = trace

	return &Simulation{
		scn:    scn,
		opts:   opts,
		clock:  clock,
		pacer:  timeutil.NewPacer(clock, rate),
		pubCtl: pubCtl,
		subCtl: subCtl,
		trace:  trace,
	}, nil
}

// configure publishes the execution configuration from the publisher and
// unpacks it on the subscriber, returning the terminate time both use.
func (s *Simulation) configure() (float64, error) {
	owner := s.scn.Owner
	if owner == "" {
		owner = "publisher"
	}
	master := federation.ExecutionConfiguration{Owner: owner, RunDuration: s.scn.RunDuration}
	master.Configure(s.scn.KnownFederates())
	terminate := master.Pack(federation.NoTerminateTime, s.pubCtl.GrantedTime())

	received := federation.ExecutionConfiguration{
		Owner:             master.Owner,
		RunDurationMicros: master.RunDurationMicros,
		NumFederates:      master.NumFederates,
		RequiredFederates: master.RequiredFederates,
	}
	subTerminate, ok := received.Unpack()
	if !ok {
		return 0, fmt.Errorf("execution configuration carries no run duration")
	}
	if subTerminate != terminate {
		monitoring.Warnf("lagcomp: subscriber terminate time %g differs from publisher %g", subTerminate, terminate)
	}
	monitoring.Logf("lagcomp: run owned by %s with required federates %v until %g s",
		received.Owner, received.Required(), subTerminate)
	return subTerminate, nil
}

func (s *Simulation) newEntities() ([]*simEntity, error) {
	out := make([]*simEntity, 0, len(s.scn.Entities))
	for _, spec := range s.scn.Entities {
		pubEntity, err := entity.New(spec.Name, spec.ParentFrame, true)
		if err != nil {
			return nil, err
		}
		pubEntity.SetType(spec.Type)
		pubEntity.SetStatus("active")
		pubEntity.Initialize()
		truth0 := spec.InitialState(s.scn.Epoch)
		pubEntity.State = truth0

		subEntity, err := entity.New(spec.Name, spec.ParentFrame, false)
		if err != nil {
			return nil, err
		}
		subEntity.Initialize()

		pub, err := entity.NewCompensated(pubEntity, s.pubCtl, s.opts)
		if err != nil {
			return nil, fmt.Errorf("publisher %q: %w", spec.Name, err)
		}
		sub, err := entity.NewCompensated(subEntity, s.subCtl, s.opts)
		if err != nil {
			return nil, fmt.Errorf("subscriber %q: %w", spec.Name, err)
		}
		out = append(out, &simEntity{
			spec:   spec,
			truth0: truth0,
			pub:    pub,
			sub:    sub,
			run:    &EntityRun{Name: spec.Name},
		})
	}
	return out, nil
}

// Run executes the scenario until the terminate time.
func (s *Simulation) Run() (*Summary, error) {
	terminate, err := s.configure()
	if err != nil {
		return nil, err
	}
	ents, err := s.newEntities()
	if err != nil {
		return nil, err
	}

	sum := &Summary{Terminate: terminate}
	for _, e := range ents {
		sum.Entities = append(sum.Entities, e.run)
	}

	endMicros := units.SecondsToMicros(terminate)
	delayMicros := units.SecondsToMicros(s.scn.TransportDelay)
	for frame := 0; s.subCtl.GrantedMicros() < endMicros; frame++ {
		if err := s.publish(ents, frame, delayMicros); err != nil {
			return sum, err
		}
		if err := s.subscribe(ents); err != nil {
			return sum, err
		}
		sum.Frames++

		s.pacer.Wait(s.subCtl.ScenarioTime())
		if err := s.advance(); err != nil {
			return sum, err
		}
	}

	sum.Traces = s.trace.Records()
	return sum, nil
}

func (s *Simulation) publish(ents []*simEntity, frame int, delayMicros int64) error {
	t := s.pubCtl.ScenarioTime()
	for _, e := range ents {
		e.pub.Entity.State = lagcomp.PropagateConstantRate(e.truth0, t-s.scn.Epoch)
		if _, err := e.pub.Send(); err != nil {
			return err
		}
		e.run.Sends++

		if s.scn.DropEvery > 0 && (frame+1)%s.scn.DropEvery == 0 {
			monitoring.Debugf(monitoring.LevelStep, "lagcomp: dropping update %d for %s", frame, e.spec.Name)
			continue
		}
		e.queue = append(e.queue, delivery{
			dueMicros: s.pubCtl.GrantedMicros() + delayMicros,
			update:    e.pub.Entity.Snapshot(),
		})
	}
	return nil
}

func (s *Simulation) subscribe(ents []*simEntity) error {
	now := s.subCtl.GrantedMicros()
	t := s.subCtl.ScenarioTime()
	for _, e := range ents {
		// Only the newest due update matters.
		var latest *entity.Update
		n := 0
		for n < len(e.queue) && e.queue[n].dueMicros <= now {
			latest = &e.queue[n].update
			n++
		}
		if latest != nil {
			e.sub.Entity.Apply(*latest)
			e.seen = true
		} else {
			e.sub.Entity.Apply(entity.Update{})
		}
		e.queue = e.queue[n:]

		res, err := e.sub.Receive()
		if err != nil {
			return err
		}
		if res.Skipped {
			e.run.Skipped++
		} else {
			e.run.Receives++
		}
		if !e.seen {
			continue
		}
		truth := lagcomp.PropagateConstantRate(e.truth0, t-s.scn.Epoch)
		e.run.Samples = append(e.run.Samples, Sample{
			Time:        t,
			Received:    !res.Skipped,
			Truth:       truth.Position,
			Compensated: e.sub.Entity.State.Position,
		})
	}
	return nil
}

func (s *Simulation) advance() error {
	if err := s.pubCtl.Advance(s.scn.FramePeriod); err != nil {
		return err
	}
	if err := s.subCtl.RequestTimeAdvance(s.scn.FramePeriod); err != nil {
		return err
	}
	if err := s.subCtl.Grant(); err != nil {
		return err
	}
	return s.subCtl.WaitForGrant(timeutil.NewSleepTimeout(s.clock, grantTimeout, 0))
}
