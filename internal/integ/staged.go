package integ

import "gonum.org/v1/gonum/floats"

// StagedIntegrator is the host-provided form of integrator. The caller
// loads the current state and its derivative into the staging buffers,
// calls Integrate, then unloads State back into its own storage. Integrate
// returns true while more passes are needed to finish the main step.
//
// Time is the integrator's independent variable. The step-control loop
// resets it to zero at the start of each compensation, so it measures the
// time elapsed within the compensation interval.
type StagedIntegrator interface {
	// State is the staging state buffer for the current stage.
	State() []float64
	// Deriv is the derivative buffer for the current stage.
	Deriv() []float64
	// Stage is the index of the current intermediate stage; zero means the
	// next Integrate call starts a new main step.
	Stage() int
	Time() float64
	SetTime(t float64)
	Integrate(h float64) (more bool)
}

// tableau holds explicit Runge-Kutta coefficients.
type tableau struct {
	a [][]float64 // a[i][j]: weight of stage j derivative in stage i state
	b []float64   // final combination weights
}

var (
	eulerTableau = tableau{
		a: [][]float64{{}},
		b: []float64{1},
	}
	heunTableau = tableau{
		a: [][]float64{{}, {1}},
		b: []float64{0.5, 0.5},
	}
	rk4Tableau = tableau{
		a: [][]float64{{}, {0.5}, {0, 0.5}, {0, 0, 1}},
		b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
	}
)

// StagedRK is an explicit Runge-Kutta integrator driven one stage per pass.
type StagedRK struct {
	tab    tableau
	stage  int
	t      float64
	x0     []float64
	state  []float64
	derivs [][]float64
}

func newStagedRK(tab tableau, n int) *StagedRK {
	s := &StagedRK{
		tab:    tab,
		x0:     make([]float64, n),
		state:  make([]float64, n),
		derivs: make([][]float64, len(tab.b)),
	}
	for i := range s.derivs {
		s.derivs[i] = make([]float64, n)
	}
	return s
}

// NewStagedEuler returns a single-pass staged Euler integrator for n states.
func NewStagedEuler(n int) *StagedRK { return newStagedRK(eulerTableau, n) }

// NewStagedHeun returns a two-pass staged Heun (RK2) integrator.
func NewStagedHeun(n int) *StagedRK { return newStagedRK(heunTableau, n) }

// NewStagedRK4 returns a four-pass staged RK4 integrator.
func NewStagedRK4(n int) *StagedRK { return newStagedRK(rk4Tableau, n) }

func (s *StagedRK) State() []float64  { return s.state }
func (s *StagedRK) Deriv() []float64  { return s.derivs[s.stage] }
func (s *StagedRK) Stage() int        { return s.stage }
func (s *StagedRK) Time() float64     { return s.t }
func (s *StagedRK) SetTime(t float64) { s.t = t }

// Stages returns the number of passes per main step.
func (s *StagedRK) Stages() int { return len(s.tab.b) }

// Integrate consumes the derivative loaded for the current stage. On
// intermediate stages it leaves the next stage's state in State and returns
// true. On the last stage it writes the stepped state, advances Time by h
// and returns false.
func (s *StagedRK) Integrate(h float64) bool {
	if s.stage == 0 {
		copy(s.x0, s.state)
	}

	next := s.stage + 1
	if next < len(s.tab.b) {
		copy(s.state, s.x0)
		for j, a := range s.tab.a[next] {
			if a != 0 {
				floats.AddScaled(s.state, h*a, s.derivs[j])
			}
		}
		s.stage = next
		return true
	}

	copy(s.state, s.x0)
	for j, b := range s.tab.b {
		if b != 0 {
			floats.AddScaled(s.state, h*b, s.derivs[j])
		}
	}
	s.t += h
	s.stage = 0
	return false
}

// SelfContained adapts a Stepper and its derivative function to the staged
// protocol as a single-pass integrator, so one step-control loop serves both
// strategies. The derivative buffer is exposed for symmetry with hosts that
// always load derivatives; the Stepper evaluates its own.
type SelfContained struct {
	Stepper Stepper
	F       DerivFunc

	t     float64
	state []float64
	deriv []float64
}

// NewSelfContained wraps s for an n-element state vector.
func NewSelfContained(s Stepper, f DerivFunc, n int) *SelfContained {
	return &SelfContained{
		Stepper: s,
		F:       f,
		state:   make([]float64, n),
		deriv:   make([]float64, n),
	}
}

func (s *SelfContained) State() []float64  { return s.state }
func (s *SelfContained) Deriv() []float64  { return s.deriv }
func (s *SelfContained) Stage() int        { return 0 }
func (s *SelfContained) Time() float64     { return s.t }
func (s *SelfContained) SetTime(t float64) { s.t = t }

// Integrate advances the staged state by one full step.
func (s *SelfContained) Integrate(h float64) bool {
	s.t = s.Stepper.Step(s.t, s.state, s.F, h)
	return false
}
