package metrics

import (
	"math"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// TouchdownSpeed is the speed |v| at the last observed sample.
type TouchdownSpeed struct {
	speed float64
}

func NewTouchdownSpeed() *TouchdownSpeed {
	return &TouchdownSpeed{}
}

func (s *TouchdownSpeed) Name() string { return "touchdown_speed" }

func (s *TouchdownSpeed) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) >= 4 {
		s.speed = math.Hypot(x[2], x[3])
	}
}

func (s *TouchdownSpeed) Value() float64 { return s.speed }
func (s *TouchdownSpeed) Reset()         { s.speed = 0 }

// Energy is the specific mechanical energy ½|v|² + G·y at the last sample.
// A soft landing drives it to zero.
type Energy struct {
	gravity float64
	value   float64
}

func NewEnergy(gravity float64) *Energy {
	return &Energy{gravity: gravity}
}

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 4 {
		return
	}
	e.value = 0.5*(x[2]*x[2]+x[3]*x[3]) + e.gravity*x[1]
}

func (e *Energy) Value() float64 { return e.value }
func (e *Energy) Reset()         { e.value = 0 }

// GroundSafety is the fraction of samples at or above the threshold height.
type GroundSafety struct {
	threshold  float64
	violations int
	samples    int
}

func NewGroundSafety(threshold float64) *GroundSafety {
	return &GroundSafety{threshold: threshold}
}

func (g *GroundSafety) Name() string { return "ground_safety" }

func (g *GroundSafety) Observe(x dynamo.State, u dynamo.Control, t float64) {
	g.samples++
	if len(x) > 1 && x[1] < g.threshold {
		g.violations++
	}
}

func (g *GroundSafety) Value() float64 {
	if g.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(g.violations)/float64(g.samples)
}

func (g *GroundSafety) Reset() {
	g.violations = 0
	g.samples = 0
}
