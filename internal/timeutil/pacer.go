package timeutil

import (
	"math"
	"time"
)

// Pacer ties scenario time to wall time so a scenario can be replayed at
// real time or a multiple of it. A Pacer with a non-positive rate never
// sleeps.
type Pacer struct {
	clock Clock
	rate  float64 // scenario seconds per wall second

	started   bool
	wallStart time.Time
	simStart  float64
}

// NewPacer returns a pacer running at rate on clock.
func NewPacer(clock Clock, rate float64) *Pacer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Pacer{clock: clock, rate: rate}
}

// Start anchors scenario time simTime to the current wall time.
func (p *Pacer) Start(simTime float64) {
	p.started = true
	p.wallStart = p.clock.Now()
	p.simStart = simTime
}

// Due returns how long to wait before scenario time simTime is reached.
func (p *Pacer) Due(simTime float64) time.Duration {
	if !p.started || !(p.rate > 0) {
		return 0
	}
	wall := (simTime - p.simStart) / p.rate
	if math.IsInf(wall, 0) || math.IsNaN(wall) {
		return 0
	}
	target := p.wallStart.Add(time.Duration(wall * float64(time.Second)))
	if d := target.Sub(p.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Wait sleeps until scenario time simTime is due and returns the time slept.
// The first call starts the pacer at simTime.
func (p *Pacer) Wait(simTime float64) time.Duration {
	if !p.started {
		p.Start(simTime)
		return 0
	}
	d := p.Due(simTime)
	if d > 0 {
		p.clock.Sleep(d)
	}
	return d
}
