package lander

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/integrators"
)

// Plant is the physical point-mass lander with state [x, y, vx, vy] and
// control [ux, uy]. It is used to replay extracted thrust commands.
type Plant struct {
	Gravity float64
}

func NewPlant(gravity float64) *Plant {
	return &Plant{Gravity: gravity}
}

func (p *Plant) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	var ux, uy float64
	if len(u) >= 2 {
		ux, uy = u[0], u[1]
	}
	return dynamo.State{x[2], x[3], ux, uy - p.Gravity}
}

func (p *Plant) StateDim() int   { return 4 }
func (p *Plant) ControlDim() int { return 2 }

// OpenLoop plays back a trajectory's thrust as a function of time, linearly
// interpolated between mesh points. It ignores the measured state.
type OpenLoop struct {
	t, ux, uy []float64
}

func NewOpenLoop(tr *Trajectory) *OpenLoop {
	return &OpenLoop{t: tr.T, ux: tr.UX, uy: tr.UY}
}

func (c *OpenLoop) Compute(x dynamo.State, t float64) dynamo.Control {
	if len(c.t) == 0 {
		return dynamo.Control{0, 0}
	}
	i, s := bracket(c.t, t)
	return dynamo.Control{lerp(c.ux, i, s), lerp(c.uy, i, s)}
}

// bracket locates t in the increasing ts: t lies a fraction s of the way
// from ts[i] to ts[i+1]. Times outside the range clamp to an end with s = 0.
func bracket(ts []float64, t float64) (int, float64) {
	n := len(ts)
	switch {
	case t <= ts[0]:
		return 0, 0
	case t >= ts[n-1]:
		return n - 1, 0
	}
	i := sort.SearchFloat64s(ts, t)
	return i - 1, (t - ts[i-1]) / (ts[i] - ts[i-1])
}

func lerp(v []float64, i int, s float64) float64 {
	if s == 0 {
		return v[i]
	}
	return v[i] + s*(v[i+1]-v[i])
}

// costateSystem is the state-costate ODE in physical time.
type costateSystem struct {
	form Formulation
	tf   float64
}

func (c costateSystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	z := mat.NewDense(StateDim, 1, x.Clone())
	d := c.form.Dynamics([]float64{t / c.tf}, z, []float64{c.tf})
	out := make(dynamo.State, StateDim)
	for i := range out {
		out[i] = d.At(i, 0) / c.tf
	}
	return out
}

func (c costateSystem) StateDim() int   { return StateDim }
func (c costateSystem) ControlDim() int { return 0 }

// Shoot integrates the state-costate equations forward from the solved
// initial point and returns z(tf). Its distance from the collocated end
// state measures how well the mesh resolves the dynamics.
func (tr *Trajectory) Shoot(integ dynamo.Integrator, steps int) dynamo.State {
	sys := costateSystem{form: tr.form, tf: tr.TF}
	return integrators.Propagate(integ, sys, tr.StateAt(0), nil, 0, tr.TF, steps)
}
