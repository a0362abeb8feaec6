package metrics

import (
	"math"

	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/lander"
)

// Clearance is the smallest normalized distance sqrt((dx²/RX + dy²/RY))
// to any obstacle center. Values below 1 mean the path entered an ellipse.
type Clearance struct {
	obstacles []lander.Obstacle
	min       float64
}

func NewClearance(obstacles []lander.Obstacle) *Clearance {
	return &Clearance{obstacles: obstacles, min: math.Inf(1)}
}

func (c *Clearance) Name() string { return "clearance" }

func (c *Clearance) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for _, o := range c.obstacles {
		cx, cy := o.Center.At(t)
		dx, dy := x[0]-cx, x[1]-cy
		c.min = math.Min(c.min, math.Sqrt(dx*dx/o.RX+dy*dy/o.RY))
	}
}

func (c *Clearance) Value() float64 { return c.min }
func (c *Clearance) Reset()         { c.min = math.Inf(1) }

// Evaluate feeds every mesh point of tr through the metrics and returns
// their values by name.
func Evaluate(tr *lander.Trajectory, ms ...dynamo.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
	}
	for i := 0; i < tr.Len(); i++ {
		x := dynamo.State{tr.X[i], tr.Y[i], tr.VX[i], tr.VY[i]}
		u := dynamo.Control{tr.UX[i], tr.UY[i]}
		for _, m := range ms {
			m.Observe(x, u, tr.T[i])
		}
	}
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// Standard returns the metrics reported for every solve.
func Standard(f lander.Formulation) []dynamo.Metric {
	ms := []dynamo.Metric{
		NewControlEffort(f.Weights.Alpha),
		NewPeakThrust(),
		NewTouchdownSpeed(),
		NewEnergy(f.Weights.Gravity),
		NewGroundSafety(-1e-3),
	}
	if obstacles := f.Obstacles(); len(obstacles) > 0 {
		ms = append(ms, NewClearance(obstacles))
	}
	return ms
}
