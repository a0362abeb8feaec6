package lander

import (
	"math"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// Weights holds the cost weights and the gravity of one problem.
type Weights struct {
	Alpha   float64 `yaml:"alpha" json:"alpha"`     // control effort
	Beta    float64 `yaml:"beta" json:"beta"`       // terminal velocity
	Gamma   float64 `yaml:"gamma" json:"gamma"`     // final time
	Gravity float64 `yaml:"gravity" json:"gravity"` // G
	Nu      float64 `yaml:"nu" json:"nu"`           // soft y >= 0
}

func DefaultWeights() Weights {
	return Weights{
		Alpha:   10,
		Beta:    25,
		Gamma:   3,
		Gravity: 2,
		Nu:      0,
	}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"alpha": w.Alpha, "beta": w.Beta, "gamma": w.Gamma, "gravity": w.Gravity, "nu": w.Nu,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dynamo.InvalidInputf("weight %s is not finite", name)
		}
	}
	if w.Alpha <= 0 {
		return dynamo.InvalidInputf("alpha must be positive, got %g", w.Alpha)
	}
	if w.Beta < 0 || w.Gamma < 0 || w.Nu < 0 {
		return dynamo.InvalidInputf("beta, gamma and nu must be non-negative")
	}
	return nil
}

// InitialConditions is the lander state at t = 0.
type InitialConditions struct {
	X  float64 `yaml:"x" json:"x"`
	Y  float64 `yaml:"y" json:"y"`
	VX float64 `yaml:"vx" json:"vx"`
	VY float64 `yaml:"vy" json:"vy"`
}

func (ic InitialConditions) Validate() error {
	s := dynamo.State{ic.X, ic.Y, ic.VX, ic.VY}
	if !s.IsValid() {
		return dynamo.InvalidInputf("initial conditions are not finite: %v", s)
	}
	return nil
}

func (ic InitialConditions) State() dynamo.State {
	return dynamo.State{ic.X, ic.Y, ic.VX, ic.VY}
}
