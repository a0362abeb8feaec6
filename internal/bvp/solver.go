package bvp

import (
	"context"
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// Func is the right-hand side dy/dx = f(x, y, p). y has one column per mesh
// point and the returned matrix must have the same shape.
type Func func(x []float64, y *mat.Dense, p []float64) *mat.Dense

// BCFunc returns the n+k boundary residuals for the end states ya, yb and
// the unknown parameters p.
type BCFunc func(ya, yb, p []float64) []float64

// Problem is a two-point boundary value problem on [x[0], x[m-1]].
type Problem struct {
	Fun Func
	BC  BCFunc
}

type Options struct {
	// Tol bounds the relative RMS collocation residual of every interval.
	Tol float64
	// BCTol bounds the absolute boundary residual. Defaults to Tol.
	BCTol float64
	// MaxNodes caps the mesh size during refinement.
	MaxNodes int
	// MaxIterations caps outer iterations that add no nodes.
	MaxIterations int
	Logger        log.Logger
}

func DefaultOptions() Options {
	return Options{
		Tol:           1e-3,
		MaxNodes:      1000,
		MaxIterations: 10,
		Logger:        log.NewNopLogger(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tol <= 0 {
		o.Tol = d.Tol
	}
	if o.Tol < 100*2.220446049250313e-16 {
		o.Tol = 100 * 2.220446049250313e-16
	}
	if o.BCTol <= 0 {
		o.BCTol = o.Tol
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = d.MaxNodes
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

type Status int

const (
	Converged Status = iota
	MaxNodesExceeded
	SingularJacobian
	MaxIterationsReached
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxNodesExceeded:
		return "max nodes exceeded"
	case SingularJacobian:
		return "singular jacobian"
	case MaxIterationsReached:
		return "max iterations reached"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) err() error {
	switch s {
	case MaxNodesExceeded:
		return dynamo.ErrMaxNodes
	case SingularJacobian:
		return dynamo.ErrSingularJacobian
	case MaxIterationsReached:
		return dynamo.ErrMaxIterations
	}
	return nil
}

// Solution is the final mesh and the C1 cubic spline through it.
type Solution struct {
	X  []float64
	Y  *mat.Dense
	YP *mat.Dense
	P  []float64

	RMSResiduals  []float64
	MaxBCResidual float64
	Iterations    int
	Status        Status
	Message       string
}

func (s *Solution) Success() bool {
	return s.Status == Converged
}

// Err returns nil on success and a *dynamo.SolveError otherwise.
func (s *Solution) Err() error {
	if s.Success() {
		return nil
	}
	return &dynamo.SolveError{
		Nodes:       len(s.X),
		Iterations:  s.Iterations,
		MaxResidual: floats.Max(s.RMSResiduals),
		Wrapped:     s.Status.err(),
	}
}

// Eval interpolates the solution at xq.
func (s *Solution) Eval(xq []float64) *mat.Dense {
	return interpolate(s.X, s.Y, s.YP, xq)
}

// Solve finds y(x) and p with y' = f(x, y, p) and bc(y(a), y(b), p) = 0
// by 4th order collocation with residual-controlled mesh refinement.
//
// The returned solution is non-nil whenever the inputs are valid; when the
// solver stops without meeting the tolerances the error wraps
// dynamo.ErrNotConverged together with the specific cause.
func Solve(ctx context.Context, prob Problem, x []float64, y *mat.Dense, p []float64, opts Options) (*Solution, error) {
	opts = opts.withDefaults()
	n, k, err := validate(prob, x, y, p)
	if err != nil {
		return nil, err
	}
	logger := log.With(opts.Logger, "subsys", "bvp")

	x = append([]float64(nil), x...)
	m := len(x)
	sys, err := newSystem(prob, n, k, mat.Col(nil, 0, y), mat.Col(nil, m-1, y), p)
	if err != nil {
		return nil, err
	}
	z := sys.augment(y, p)
	h := diffs(x)

	var (
		status     Status
		iterations int
		rms        []float64
		maxBC      float64
		f          *mat.Dense
	)
	for {
		m = len(x)
		var singular bool
		z, singular, err = sys.newton(ctx, x, h, z, opts.Tol, opts.BCTol)
		if err != nil {
			return nil, err
		}
		iterations++

		var col, fMid *mat.Dense
		col, _, f, fMid = sys.collocation(x, h, z)
		ra, rb := sys.boundary(sys.ends(z))
		maxBC = 0
		for _, v := range append(ra, rb...) {
			maxBC = math.Max(maxBC, math.Abs(v))
		}
		rms = sys.rmsResiduals(x, h, z, f, col, fMid)
		maxRMS := floats.Max(rms)

		if singular {
			status = SingularJacobian
			break
		}

		one := make([]bool, m-1)
		two := make([]bool, m-1)
		added := 0
		for i, r := range rms {
			switch {
			case r >= 100*opts.Tol:
				two[i] = true
				added += 2
			case r > opts.Tol:
				one[i] = true
				added++
			}
		}

		level.Debug(logger).Log(
			"iteration", iterations,
			"max_rms", maxRMS,
			"max_bc", maxBC,
			"nodes", m,
			"added", added,
		)

		if m+added > opts.MaxNodes {
			status = MaxNodesExceeded
			break
		}
		if added > 0 {
			// Nodes inherit values from the current spline so the next Newton
			// solve starts from the interpolated solution.
			xNew := refine(x, one, two)
			z = interpolate(x, z, f, xNew)
			x = xNew
			h = diffs(x)
			continue
		}
		if maxBC <= opts.BCTol {
			status = Converged
			break
		}
		if iterations >= opts.MaxIterations {
			status = MaxIterationsReached
			break
		}
	}

	sol := &Solution{
		X:             x,
		Y:             mat.DenseCopyOf(z.Slice(0, n, 0, len(x))),
		YP:            mat.DenseCopyOf(f.Slice(0, n, 0, len(x))),
		P:             sys.params(z, 0),
		RMSResiduals:  rms,
		MaxBCResidual: maxBC,
		Iterations:    iterations,
		Status:        status,
	}
	sol.Message = status.String()

	if !sol.Success() {
		level.Warn(logger).Log("msg", "collocation stopped", "status", status, "nodes", len(x), "iterations", iterations)
	} else {
		level.Info(logger).Log("msg", "converged", "nodes", len(x), "iterations", iterations, "max_rms", floats.Max(rms))
	}
	return sol, sol.Err()
}

func validate(prob Problem, x []float64, y *mat.Dense, p []float64) (n, k int, err error) {
	if prob.Fun == nil || prob.BC == nil {
		return 0, 0, dynamo.InvalidInputf("problem needs both Fun and BC")
	}
	if len(x) < 2 {
		return 0, 0, dynamo.InvalidInputf("mesh needs at least 2 nodes, got %d", len(x))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, dynamo.InvalidInputf("mesh node %d is not finite", i)
		}
		if i > 0 && v <= x[i-1] {
			return 0, 0, dynamo.InvalidInputf("mesh must be strictly increasing at node %d", i)
		}
	}
	if y == nil {
		return 0, 0, dynamo.InvalidInputf("initial guess is nil")
	}
	n, m := y.Dims()
	if m != len(x) {
		return 0, 0, dynamo.InvalidInputf("initial guess has %d columns for %d nodes: %w", m, len(x), dynamo.ErrDimensionMismatch)
	}
	for r := 0; r < n; r++ {
		for c := 0; c < m; c++ {
			if v := y.At(r, c); math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, dynamo.InvalidInputf("initial guess is not finite at (%d, %d)", r, c)
			}
		}
	}
	for j, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, dynamo.InvalidInputf("parameter %d is not finite", j)
		}
	}
	fr, fc := prob.Fun(x, y, p).Dims()
	if fr != n || fc != m {
		return 0, 0, dynamo.InvalidInputf("Fun returned %dx%d, want %dx%d: %w", fr, fc, n, m, dynamo.ErrDimensionMismatch)
	}
	return n, len(p), nil
}
