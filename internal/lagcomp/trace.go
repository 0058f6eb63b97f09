package lagcomp

import (
	"time"

	"github.com/banshee-data/lagcomp/internal/integ"
	"github.com/banshee-data/lagcomp/internal/timeutil"
	"github.com/google/uuid"
)

// Direction identifies which entry point produced a compensation.
type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
	DirectionDirect  Direction = "direct" // Compensate called without an entry point
)

// defaultTraceCapacity bounds the retained records when no limit is set.
const defaultTraceCapacity = 1024

// TraceStep is one main integration step inside a compensation.
type TraceStep struct {
	Step     int
	Time     float64
	StepSize float64
	DtGo     float64
	Passes   int
}

// TraceRecord captures one compensation cycle end to end.
type TraceRecord struct {
	RunID     string
	Entity    string
	Direction Direction
	Begin     float64
	End       float64
	Before    KinematicState
	After     KinematicState
	Steps     []TraceStep
	Result    integ.Result
	Err       string
	CreatedAt time.Time
}

// TraceCollector accumulates compensation records when enabled. It is not
// safe for concurrent use; compensation runs synchronously per entity.
type TraceCollector struct {
	enabled  bool
	capacity int
	clock    timeutil.Clock
	current  *TraceRecord
	records  []TraceRecord
}

// NewTraceCollector creates a disabled collector retaining at most
// capacity records (defaultTraceCapacity when capacity <= 0).
func NewTraceCollector(capacity int) *TraceCollector {
	if capacity <= 0 {
		capacity = defaultTraceCapacity
	}
	return &TraceCollector{capacity: capacity, clock: timeutil.RealClock{}}
}

// SetClock sets the clock used to stamp CreatedAt. A nil clock restores
// the wall clock.
func (c *TraceCollector) SetClock(clock timeutil.Clock) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	c.clock = clock
}

// SetEnabled controls whether records are captured.
func (c *TraceCollector) SetEnabled(enabled bool) {
	c.enabled = enabled
	if !enabled {
		c.current = nil
	}
}

// IsEnabled returns true if the collector is recording.
func (c *TraceCollector) IsEnabled() bool {
	return c != nil && c.enabled
}

func (c *TraceCollector) begin(entity string, dir Direction, tBegin, tEnd float64, before KinematicState) {
	if !c.IsEnabled() {
		return
	}
	c.current = &TraceRecord{
		RunID:     uuid.NewString(),
		Entity:    entity,
		Direction: dir,
		Begin:     tBegin,
		End:       tEnd,
		Before:    before,
		CreatedAt: c.clock.Now(),
	}
}

func (c *TraceCollector) step(s integ.StepSample) {
	if !c.IsEnabled() || c.current == nil {
		return
	}
	c.current.Steps = append(c.current.Steps, TraceStep{
		Step:     s.Step,
		Time:     s.Time,
		StepSize: s.H,
		DtGo:     s.DtGo,
		Passes:   s.Passes,
	})
}

func (c *TraceCollector) end(after KinematicState, res integ.Result, err error) {
	if !c.IsEnabled() || c.current == nil {
		return
	}
	c.current.After = after
	c.current.Result = res
	if err != nil {
		c.current.Err = err.Error()
	}
	if len(c.records) >= c.capacity {
		copy(c.records, c.records[1:])
		c.records = c.records[:len(c.records)-1]
	}
	c.records = append(c.records, *c.current)
	c.current = nil
}

// Records returns the captured records, oldest first.
func (c *TraceCollector) Records() []TraceRecord {
	if c == nil {
		return nil
	}
	out := make([]TraceRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Reset drops all captured records.
func (c *TraceCollector) Reset() {
	c.records = c.records[:0]
	c.current = nil
}
