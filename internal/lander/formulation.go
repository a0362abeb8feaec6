package lander

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// Rows of the state-costate vector.
const (
	IdxX = iota
	IdxY
	IdxVX
	IdxVY
	IdxP1
	IdxP2
	IdxP3
	IdxP4

	StateDim    = 8
	ResidualDim = 9
)

// Formulation is one descent problem: weights, initial state and the extra
// running-cost terms. The ground penalty is added automatically when Nu > 0.
type Formulation struct {
	Weights Weights
	Initial InitialConditions
	Terms   []Potential
}

func (f Formulation) Validate() error {
	if err := f.Weights.Validate(); err != nil {
		return err
	}
	if err := f.Initial.Validate(); err != nil {
		return err
	}
	for i, term := range f.Terms {
		if term == nil {
			return dynamo.InvalidInputf("potential term %d is nil", i)
		}
		if v, ok := term.(validator); ok {
			if err := v.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f Formulation) terms() []Potential {
	if f.Weights.Nu > 0 {
		return append([]Potential{GroundPenalty{Nu: f.Weights.Nu}}, f.Terms...)
	}
	return f.Terms
}

// Obstacles returns the obstacle terms in order.
func (f Formulation) Obstacles() []Obstacle {
	var out []Obstacle
	for _, term := range f.Terms {
		if o, ok := term.(Obstacle); ok {
			out = append(out, o)
		}
	}
	return out
}

// Controls returns the optimal thrust (ux, uy) for the costates p3, p4.
func (f Formulation) Controls(p3, p4 float64) (ux, uy float64) {
	return p3 / (2 * f.Weights.Alpha), p4 / (2 * f.Weights.Alpha)
}

func (f Formulation) potential(terms []Potential, s Sample) (v float64, g Grad) {
	for _, term := range terms {
		v += term.Value(s)
		g = g.add(term.Gradient(s))
	}
	return v, g
}

func sampleAt(t float64, z []float64) Sample {
	return Sample{T: t, X: z[IdxX], Y: z[IdxY], VX: z[IdxVX], VY: z[IdxVY]}
}

// Dynamics is dz/dτ on every column of z. p holds the single free
// parameter tf; potentials see physical time τ·tf.
func (f Formulation) Dynamics(tau []float64, z *mat.Dense, p []float64) *mat.Dense {
	tf := p[0]
	g := f.Weights.Gravity
	terms := f.terms()

	_, m := z.Dims()
	out := mat.NewDense(StateDim, m, nil)
	for j := 0; j < m; j++ {
		ux, uy := f.Controls(z.At(IdxP3, j), z.At(IdxP4, j))
		var dV Grad
		if len(terms) > 0 {
			_, dV = f.potential(terms, Sample{
				T:  tau[j] * tf,
				X:  z.At(IdxX, j),
				Y:  z.At(IdxY, j),
				VX: z.At(IdxVX, j),
				VY: z.At(IdxVY, j),
			})
		}
		out.Set(IdxX, j, tf*z.At(IdxVX, j))
		out.Set(IdxY, j, tf*z.At(IdxVY, j))
		out.Set(IdxVX, j, tf*ux)
		out.Set(IdxVY, j, tf*(uy-g))
		out.Set(IdxP1, j, tf*dV.X)
		out.Set(IdxP2, j, tf*dV.Y)
		out.Set(IdxP3, j, tf*(dV.VX-z.At(IdxP1, j)))
		out.Set(IdxP4, j, tf*(dV.VY-z.At(IdxP2, j)))
	}
	return out
}

// Hamiltonian evaluates H = p·f - L at physical time t.
func (f Formulation) Hamiltonian(t float64, z []float64) float64 {
	w := f.Weights
	ux, uy := f.Controls(z[IdxP3], z[IdxP4])
	v, _ := f.potential(f.terms(), sampleAt(t, z))
	return z[IdxP1]*z[IdxVX] + z[IdxP2]*z[IdxVY] + z[IdxP3]*ux + z[IdxP4]*(uy-w.Gravity) -
		w.Alpha*(ux*ux+uy*uy) - w.Gamma - v
}

// Boundary returns the nine residuals: initial state, touchdown height,
// free terminal x, terminal velocity costates and H(tf) = 0.
func (f Formulation) Boundary(ya, yb, p []float64) []float64 {
	tf := p[0]
	ic := f.Initial
	beta := f.Weights.Beta
	return []float64{
		ya[IdxX] - ic.X,
		ya[IdxY] - ic.Y,
		ya[IdxVX] - ic.VX,
		ya[IdxVY] - ic.VY,
		yb[IdxY],
		yb[IdxP1],
		yb[IdxP3] + 2*beta*yb[IdxVX],
		yb[IdxP4] + 2*beta*yb[IdxVY],
		f.Hamiltonian(tf, yb),
	}
}
