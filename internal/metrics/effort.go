package metrics

import (
	"math"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// ControlEffort integrates α|u|² over time with the trapezoidal rule. It is
// the effort part of the running cost.
type ControlEffort struct {
	alpha  float64
	sum    float64
	prevT  float64
	prevU2 float64
	seen   bool
}

func NewControlEffort(alpha float64) *ControlEffort {
	return &ControlEffort{alpha: alpha}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	var u2 float64
	for _, v := range u {
		u2 += v * v
	}
	if c.seen {
		c.sum += 0.5 * (t - c.prevT) * (u2 + c.prevU2)
	}
	c.prevT, c.prevU2, c.seen = t, u2, true
}

func (c *ControlEffort) Value() float64 {
	return c.alpha * c.sum
}

func (c *ControlEffort) Reset() {
	*c = ControlEffort{alpha: c.alpha}
}

// PeakThrust is the largest thrust magnitude observed.
type PeakThrust struct {
	peak float64
}

func NewPeakThrust() *PeakThrust {
	return &PeakThrust{}
}

func (p *PeakThrust) Name() string { return "peak_thrust" }

func (p *PeakThrust) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) >= 2 {
		p.peak = math.Max(p.peak, math.Hypot(u[0], u[1]))
	}
}

func (p *PeakThrust) Value() float64 { return p.peak }
func (p *PeakThrust) Reset()         { p.peak = 0 }
