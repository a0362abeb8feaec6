package lander

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/bvp"
	"github.com/san-kum/moonlander/internal/dynamo"
)

// thrustEps is the magnitude below which the thrust angle is reported as 0.
const thrustEps = 1e-12

var errNoSpline = errors.New("lander: trajectory has no solution spline")

// Trajectory is the read-only result of a successful solve. All slices have
// one entry per mesh point. UY is the thrust command p4/(2α); AY = UY - G
// is the resulting vertical acceleration.
type Trajectory struct {
	TF float64 `json:"tf"`

	Tau []float64 `json:"tau"`
	T   []float64 `json:"t"`
	X   []float64 `json:"x"`
	Y   []float64 `json:"y"`
	VX  []float64 `json:"vx"`
	VY  []float64 `json:"vy"`
	P1  []float64 `json:"p1"`
	P2  []float64 `json:"p2"`
	P3  []float64 `json:"p3"`
	P4  []float64 `json:"p4"`
	UX  []float64 `json:"ux"`
	UY  []float64 `json:"uy"`
	AY  []float64 `json:"ay"`

	Thrust []float64 `json:"thrust"`
	Angle  []float64 `json:"angle"`

	Nodes            int     `json:"nodes"`
	Iterations       int     `json:"iterations"`
	MaxResidual      float64 `json:"max_residual"`
	BoundaryResidual float64 `json:"boundary_residual"`

	form Formulation
	sol  *bvp.Solution
}

// ThrustAngle is atan2(-ux, uy): zero when thrusting straight up against
// gravity. It is 0 when both components vanish.
func ThrustAngle(ux, uy float64) float64 {
	if math.Abs(ux) < thrustEps && math.Abs(uy) < thrustEps {
		return 0
	}
	return math.Atan2(-ux, uy)
}

func (f Formulation) extract(sol *bvp.Solution) (*Trajectory, error) {
	tr, err := f.fill(sol.X, sol.Y, sol.P[0])
	if err != nil {
		return nil, err
	}
	tr.Nodes = len(sol.X)
	tr.Iterations = sol.Iterations
	tr.MaxResidual = floats.Max(sol.RMSResiduals)
	tr.BoundaryResidual = sol.MaxBCResidual
	tr.sol = sol
	return tr, nil
}

func (f Formulation) fill(tau []float64, z *mat.Dense, tf float64) (*Trajectory, error) {
	m := len(tau)
	row := func(r int) []float64 { return mat.Row(nil, r, z) }
	tr := &Trajectory{
		TF:     tf,
		Tau:    append([]float64(nil), tau...),
		T:      make([]float64, m),
		X:      row(IdxX),
		Y:      row(IdxY),
		VX:     row(IdxVX),
		VY:     row(IdxVY),
		P1:     row(IdxP1),
		P2:     row(IdxP2),
		P3:     row(IdxP3),
		P4:     row(IdxP4),
		UX:     make([]float64, m),
		UY:     make([]float64, m),
		AY:     make([]float64, m),
		Thrust: make([]float64, m),
		Angle:  make([]float64, m),
		form:   f,
	}
	for j := range tau {
		tr.T[j] = tau[j] * tf
		ux, uy := f.Controls(tr.P3[j], tr.P4[j])
		tr.UX[j], tr.UY[j] = ux, uy
		tr.AY[j] = uy - f.Weights.Gravity
		tr.Thrust[j] = math.Hypot(ux, uy)
		tr.Angle[j] = ThrustAngle(ux, uy)
	}

	for _, s := range [][]float64{tr.T, tr.X, tr.Y, tr.VX, tr.VY, tr.UX, tr.UY, tr.Thrust, tr.Angle} {
		if !dynamo.State(s).IsValid() {
			return nil, dynamo.ErrInvalidState
		}
	}
	return tr, nil
}

func (tr *Trajectory) Len() int {
	return len(tr.T)
}

// Touchdown returns the final state [x, y, vx, vy].
func (tr *Trajectory) Touchdown() dynamo.State {
	n := tr.Len() - 1
	return dynamo.State{tr.X[n], tr.Y[n], tr.VX[n], tr.VY[n]}
}

// At linearly interpolates the state [x, y, vx, vy] and thrust [ux, uy]
// at physical time t, clamped to [0, TF].
func (tr *Trajectory) At(t float64) (dynamo.State, dynamo.Control) {
	i, s := bracket(tr.T, t)
	x := dynamo.State{lerp(tr.X, i, s), lerp(tr.Y, i, s), lerp(tr.VX, i, s), lerp(tr.VY, i, s)}
	return x, dynamo.Control{lerp(tr.UX, i, s), lerp(tr.UY, i, s)}
}

// StateAt returns the 8-dimensional state-costate vector at mesh point i.
func (tr *Trajectory) StateAt(i int) dynamo.State {
	return dynamo.State{tr.X[i], tr.Y[i], tr.VX[i], tr.VY[i], tr.P1[i], tr.P2[i], tr.P3[i], tr.P4[i]}
}

// Hamiltonian returns H along the trajectory. It is constant in time when no
// potential depends on t, and 0 at touchdown for any converged solve.
func (tr *Trajectory) Hamiltonian() []float64 {
	h := make([]float64, tr.Len())
	for i := range h {
		h[i] = tr.form.Hamiltonian(tr.T[i], tr.StateAt(i))
	}
	return h
}

// Resample evaluates the solution spline on n uniformly spaced times.
// Only trajectories produced by a solve carry the spline.
func (tr *Trajectory) Resample(n int) (*Trajectory, error) {
	if tr.sol == nil {
		return nil, errNoSpline
	}
	if n < 2 {
		return nil, dynamo.InvalidInputf("resample needs at least 2 points, got %d", n)
	}
	tau := floats.Span(make([]float64, n), 0, 1)
	out, err := tr.form.fill(tau, tr.sol.Eval(tau), tr.TF)
	if err != nil {
		return nil, err
	}
	out.Nodes = tr.Nodes
	out.Iterations = tr.Iterations
	out.MaxResidual = tr.MaxResidual
	out.BoundaryResidual = tr.BoundaryResidual
	out.sol = tr.sol
	return out, nil
}

// Restore rebuilds a trajectory from stored state-costate columns.
func Restore(f Formulation, tau []float64, z *mat.Dense, tf float64) (*Trajectory, error) {
	if r, c := z.Dims(); r != StateDim || c != len(tau) {
		return nil, dynamo.InvalidInputf("restore needs %dx%d states, got %dx%d: %w", StateDim, len(tau), r, c, dynamo.ErrDimensionMismatch)
	}
	return f.fill(tau, z, tf)
}

func (tr *Trajectory) Formulation() Formulation {
	return tr.form
}
