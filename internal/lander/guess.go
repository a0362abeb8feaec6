package lander

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// Guess controls the starting point of the collocation solve.
//
// By default the solver starts from the potential-free optimal descent,
// which is known in closed form, at the final time where its terminal
// Hamiltonian vanishes. TF is only used when no such time exists. Flat
// switches to the naive guess of straight-line states, uniform costates
// equal to Costate and final time TF.
type Guess struct {
	MeshSize int     `yaml:"mesh_size" json:"mesh_size"`
	TF       float64 `yaml:"tf" json:"tf"`
	Costate  float64 `yaml:"costate" json:"costate"`
	Flat     bool    `yaml:"flat" json:"flat"`
}

func DefaultGuess() Guess {
	return Guess{MeshSize: 200, TF: 20, Costate: 1}
}

func (g Guess) Validate() error {
	if g.MeshSize < 2 {
		return dynamo.InvalidInputf("mesh size must be at least 2, got %d", g.MeshSize)
	}
	if !(g.TF > 0) || math.IsInf(g.TF, 0) {
		return dynamo.InvalidInputf("tf guess must be positive and finite, got %g", g.TF)
	}
	if math.IsNaN(g.Costate) || math.IsInf(g.Costate, 0) {
		return dynamo.InvalidInputf("costate guess is not finite")
	}
	return nil
}

// InitialGuess returns the uniform mesh, the 8 x MeshSize state guess and
// the parameter vector [tf].
func (f Formulation) InitialGuess(g Guess) (tau []float64, z *mat.Dense, p []float64) {
	n := g.MeshSize
	tau = floats.Span(make([]float64, n), 0, 1)
	if g.Flat {
		return tau, f.flatGuess(g, tau), []float64{g.TF}
	}

	tf, ok := descentTime(f.Initial, f.Weights)
	if !ok {
		tf = g.TF
	}
	d := newDescent(f.Initial, f.Weights, tf)
	z = mat.NewDense(StateDim, n, nil)
	for j, s := range tau {
		z.SetCol(j, d.at(s*tf))
	}
	return tau, z, []float64{tf}
}

// flatGuess holds x at x0, lets height and horizontal speed fall linearly
// to zero and sets vy to the mean descent rate.
func (f Formulation) flatGuess(g Guess, tau []float64) *mat.Dense {
	n := len(tau)
	ic := f.Initial
	z := mat.NewDense(StateDim, n, nil)
	floats.Span(z.RawRowView(IdxY), ic.Y, 0)
	floats.Span(z.RawRowView(IdxVX), ic.VX, 0)
	for j := 0; j < n; j++ {
		z.Set(IdxX, j, ic.X)
		z.Set(IdxVY, j, -ic.Y/g.TF)
		for r := IdxP1; r <= IdxP4; r++ {
			z.Set(r, j, g.Costate)
		}
	}
	return z
}

// descent is the optimal descent without potentials for a fixed final time.
// Then p1 = 0, p2 = c2 and p3 = c3 are constant and p4 = a - c2·t, so every
// state is a polynomial in t. c3 follows from p3(tf) = -2β·vx(tf), and a, c2
// from y(tf) = 0 and p4(tf) = -2β·vy(tf).
type descent struct {
	ic        InitialConditions
	w         Weights
	a, c2, c3 float64
}

func newDescent(ic InitialConditions, w Weights, tf float64) descent {
	al, b, g := w.Alpha, w.Beta, w.Gravity
	d := descent{ic: ic, w: w}
	d.c3 = -2 * b * ic.VX / (1 + b*tf/al)

	a11, a12 := tf*tf/(4*al), -tf*tf*tf/(12*al)
	a21, a22 := 1+b*tf/al, -tf-b*tf*tf/(2*al)
	r1 := -(ic.Y + ic.VY*tf - g*tf*tf/2)
	r2 := -2 * b * (ic.VY - g*tf)
	// det = -tf³/(6α) - β·tf⁴/(24α²), never zero for tf > 0.
	det := a11*a22 - a12*a21
	d.a = (r1*a22 - a12*r2) / det
	d.c2 = (a11*r2 - a21*r1) / det
	return d
}

func (d descent) at(t float64) []float64 {
	ic, al, g := d.ic, d.w.Alpha, d.w.Gravity
	return []float64{
		IdxX:  ic.X + ic.VX*t + d.c3*t*t/(4*al),
		IdxY:  ic.Y + ic.VY*t + (d.a*t*t/2-d.c2*t*t*t/6)/(2*al) - g*t*t/2,
		IdxVX: ic.VX + d.c3*t/(2*al),
		IdxVY: ic.VY + (d.a*t-d.c2*t*t/2)/(2*al) - g*t,
		IdxP1: 0,
		IdxP2: d.c2,
		IdxP3: d.c3,
		IdxP4: d.a - d.c2*t,
	}
}

const (
	descentScanStart  = 0.05
	descentScanFactor = 1.25
	descentScanEnd    = 1e4
	descentBisections = 80
)

// descentTime returns the first final time, scanning geometrically upward,
// at which the closed-form descent has H(tf) = 0.
func descentTime(ic InitialConditions, w Weights) (float64, bool) {
	base := Formulation{Weights: w, Initial: ic}
	h := func(tf float64) float64 {
		return base.Hamiltonian(tf, newDescent(ic, w, tf).at(tf))
	}
	lo := descentScanStart
	hlo := h(lo)
	for hi := lo * descentScanFactor; hi < descentScanEnd; hi *= descentScanFactor {
		hhi := h(hi)
		if math.IsNaN(hlo) || math.IsNaN(hhi) || (hlo > 0) == (hhi > 0) {
			lo, hlo = hi, hhi
			continue
		}
		for i := 0; i < descentBisections; i++ {
			mid := (lo + hi) / 2
			if (h(mid) > 0) == (hlo > 0) {
				lo = mid
			} else {
				hi = mid
			}
		}
		return (lo + hi) / 2, true
	}
	return 0, false
}
