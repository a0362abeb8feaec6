package dynamo

import (
	"math"
)

// State is a state vector. The lander uses [x, y, vx, vy] for the plant and
// appends the costates [p1, p2, p3, p4] for the boundary-value problem.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether every component is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// MaxAbs is the infinity norm.
func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// combine applies op componentwise. Components of s beyond len(other) are
// copied unchanged.
func (s State) combine(other State, op func(a, b float64) float64) State {
	result := s.Clone()
	for i := range result {
		if i < len(other) {
			result[i] = op(s[i], other[i])
		}
	}
	return result
}

func (s State) Add(other State) State {
	return s.combine(other, func(a, b float64) float64 { return a + b })
}

func (s State) Sub(other State) State {
	return s.combine(other, func(a, b float64) float64 { return a - b })
}

// Control is a thrust command [ux, uy].
type Control []float64

// System is an ODE dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// AdaptiveIntegrator also returns a suggested next step size.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, u Control, t, dt, tol float64) (State, float64, error)
}

type Controller interface {
	Compute(x State, t float64) Control
}

// Metric accumulates a scalar over observed samples.
type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}
