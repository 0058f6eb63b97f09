package timeutil

import (
	"testing"
	"time"
)

func TestPacer_RealTime(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	p := NewPacer(clock, 1)

	if d := p.Wait(10); d != 0 {
		t.Errorf("first Wait should start the pacer without sleeping, slept %v", d)
	}

	if d := p.Wait(10.5); d != 500*time.Millisecond {
		t.Errorf("Wait(10.5) slept %v, want 500ms", d)
	}

	// Work took longer than the scenario step; no sleep.
	clock.Advance(2 * time.Second)
	if d := p.Wait(11); d != 0 {
		t.Errorf("Wait behind schedule slept %v, want 0", d)
	}
}

func TestPacer_Rate(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	p := NewPacer(clock, 4)
	p.Start(0)

	if d := p.Due(2); d != 500*time.Millisecond {
		t.Errorf("Due(2) at 4x = %v, want 500ms", d)
	}
}

func TestPacer_Unpaced(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	p := NewPacer(clock, 0)
	p.Start(0)

	if d := p.Wait(100); d != 0 {
		t.Errorf("unpaced Wait slept %v", d)
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("unpaced pacer should never sleep")
	}
}
