package bvp

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/dynamo"
)

func linspace(a, b float64, n int) []float64 {
	return floats.Span(make([]float64, n), a, b)
}

// y'' = -y written as a first-order system.
func oscillator(x []float64, y *mat.Dense, p []float64) *mat.Dense {
	out := mat.NewDense(2, len(x), nil)
	for i := range x {
		out.Set(0, i, y.At(1, i))
		out.Set(1, i, -y.At(0, i))
	}
	return out
}

func TestSolveSine(t *testing.T) {
	x := linspace(0, math.Pi/2, 5)
	y := mat.NewDense(2, len(x), nil)
	prob := Problem{
		Fun: oscillator,
		BC: func(ya, yb, p []float64) []float64 {
			return []float64{ya[0], yb[0] - 1}
		},
	}

	sol, err := Solve(context.Background(), prob, x, y, nil, Options{Tol: 1e-6})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !sol.Success() {
		t.Fatalf("status = %v", sol.Status)
	}
	for i, xi := range sol.X {
		if d := math.Abs(sol.Y.At(0, i) - math.Sin(xi)); d > 1e-5 {
			t.Errorf("y(%.3f) off by %.2e", xi, d)
		}
		if d := math.Abs(sol.Y.At(1, i) - math.Cos(xi)); d > 1e-5 {
			t.Errorf("y'(%.3f) off by %.2e", xi, d)
		}
	}

	v := sol.Eval([]float64{0.3, 1.1})
	if math.Abs(v.At(0, 0)-math.Sin(0.3)) > 1e-5 || math.Abs(v.At(0, 1)-math.Sin(1.1)) > 1e-5 {
		t.Errorf("Eval = [%.6f %.6f], want sine", v.At(0, 0), v.At(0, 1))
	}
}

func TestSolveEigenvalue(t *testing.T) {
	// y'' + k^2 y = 0, y(0) = y(1) = 0, y'(0) = k has k = pi near 3.
	x := linspace(0, 1, 11)
	y := mat.NewDense(2, len(x), nil)
	for i, xi := range x {
		y.Set(0, i, math.Sin(3*xi))
		y.Set(1, i, 3*math.Cos(3*xi))
	}
	prob := Problem{
		Fun: func(x []float64, y *mat.Dense, p []float64) *mat.Dense {
			out := mat.NewDense(2, len(x), nil)
			for i := range x {
				out.Set(0, i, y.At(1, i))
				out.Set(1, i, -p[0]*p[0]*y.At(0, i))
			}
			return out
		},
		BC: func(ya, yb, p []float64) []float64 {
			return []float64{ya[0], yb[0], ya[1] - p[0]}
		},
	}

	sol, err := Solve(context.Background(), prob, x, y, []float64{3}, Options{Tol: 1e-6})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(sol.P[0]-math.Pi) > 1e-4 {
		t.Errorf("k = %.6f, want pi", sol.P[0])
	}
}

func TestSolveCoupledBoundary(t *testing.T) {
	// y'' = 2, y(0) + y(1) = 1, y'(0) = -1 gives y = x^2 - x + 1/2.
	x := linspace(0, 1, 6)
	y := mat.NewDense(2, len(x), nil)
	prob := Problem{
		Fun: func(x []float64, y *mat.Dense, p []float64) *mat.Dense {
			out := mat.NewDense(2, len(x), nil)
			for i := range x {
				out.Set(0, i, y.At(1, i))
				out.Set(1, i, 2)
			}
			return out
		},
		BC: func(ya, yb, p []float64) []float64 {
			return []float64{ya[0] + yb[0] - 1, ya[1] + 1}
		},
	}

	sol, err := Solve(context.Background(), prob, x, y, nil, Options{Tol: 1e-6})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	for i, xi := range sol.X {
		want := xi*xi - xi + 0.5
		if d := math.Abs(sol.Y.At(0, i) - want); d > 1e-6 {
			t.Errorf("y(%.2f) = %.8f, want %.8f", xi, sol.Y.At(0, i), want)
		}
	}
}

func TestSolveMaxNodes(t *testing.T) {
	// Boundary layer e^{-10x} cannot be resolved on ten nodes.
	x := linspace(0, 1, 5)
	y := mat.NewDense(2, len(x), nil)
	prob := Problem{
		Fun: func(x []float64, y *mat.Dense, p []float64) *mat.Dense {
			out := mat.NewDense(2, len(x), nil)
			for i := range x {
				out.Set(0, i, y.At(1, i))
				out.Set(1, i, 100*y.At(0, i))
			}
			return out
		},
		BC: func(ya, yb, p []float64) []float64 {
			return []float64{ya[0] - 1, yb[0]}
		},
	}

	sol, err := Solve(context.Background(), prob, x, y, nil, Options{Tol: 1e-8, MaxNodes: 10})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, dynamo.ErrNotConverged) || !errors.Is(err, dynamo.ErrMaxNodes) {
		t.Errorf("err = %v, want not converged / max nodes", err)
	}
	var se *dynamo.SolveError
	if !errors.As(err, &se) || se.Nodes != len(sol.X) {
		t.Errorf("SolveError not reported with node count: %v", err)
	}
	if sol == nil || sol.Status != MaxNodesExceeded {
		t.Errorf("status = %v, want %v", sol.Status, MaxNodesExceeded)
	}
}

func TestSolveInvalidInput(t *testing.T) {
	bc := func(ya, yb, p []float64) []float64 { return []float64{ya[0], yb[0] - 1} }
	good := linspace(0, 1, 4)
	shrink := func(x []float64, y *mat.Dense, p []float64) *mat.Dense { return mat.NewDense(1, len(x), nil) }
	tests := []struct {
		name     string
		prob     Problem
		x        []float64
		y        *mat.Dense
		p        []float64
		mismatch bool
	}{
		{"nil fun", Problem{BC: bc}, good, mat.NewDense(2, 4, nil), nil, false},
		{"short mesh", Problem{Fun: oscillator, BC: bc}, []float64{0}, mat.NewDense(2, 1, nil), nil, false},
		{"non increasing", Problem{Fun: oscillator, BC: bc}, []float64{0, 0.5, 0.5, 1}, mat.NewDense(2, 4, nil), nil, false},
		{"column mismatch", Problem{Fun: oscillator, BC: bc}, good, mat.NewDense(2, 3, nil), nil, true},
		{"nan guess", Problem{Fun: oscillator, BC: bc}, good, mat.NewDense(2, 4, []float64{0, 0, math.NaN(), 0, 0, 0, 0, 0}), nil, false},
		{"nan parameter", Problem{Fun: oscillator, BC: bc}, good, mat.NewDense(2, 4, nil), []float64{math.Inf(1)}, false},
		{"fun shape", Problem{Fun: shrink, BC: bc}, good, mat.NewDense(2, 4, nil), nil, true},
		{"bc count", Problem{Fun: oscillator, BC: func(ya, yb, p []float64) []float64 { return []float64{ya[0]} }}, good, mat.NewDense(2, 4, nil), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(context.Background(), tt.prob, tt.x, tt.y, tt.p, Options{})
			if !errors.Is(err, dynamo.ErrInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
			if tt.mismatch && !errors.Is(err, dynamo.ErrDimensionMismatch) {
				t.Errorf("err = %v, want a dimension mismatch", err)
			}
		})
	}
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := linspace(0, 1, 4)
	prob := Problem{
		Fun: oscillator,
		BC:  func(ya, yb, p []float64) []float64 { return []float64{ya[0], yb[0] - 1} },
	}
	_, err := Solve(ctx, prob, x, mat.NewDense(2, 4, nil), nil, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestHermiteReproducesCubic(t *testing.T) {
	v, d := hermite(1, 8, 3, 12, 1, 0.5)
	if math.Abs(v-3.375) > 1e-12 || math.Abs(d-6.75) > 1e-12 {
		t.Errorf("hermite(1.5) = (%g, %g), want (3.375, 6.75)", v, d)
	}
}

func TestRefine(t *testing.T) {
	got := refine([]float64{0, 3, 6}, []bool{true, false}, []bool{false, true})
	want := []float64{0, 1.5, 3, 4, 5, 6}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("refine = %v, want %v", got, want)
	}
}
