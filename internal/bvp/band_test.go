package bvp

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBandMatchesDense(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n, kl, ku := 17, 3, 4
	band := newBand(n, kl, ku)
	dense := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for c := max(0, r-kl); c <= min(n-1, r+ku); c++ {
			v := rng.Float64()*2 - 1
			band.set(r, c, v)
			dense.Set(r, c, v)
		}
	}
	b := make([]float64, n)
	for i := range b {
		b[i] = rng.Float64()
	}

	if !band.factor() {
		t.Fatal("factor reported singular matrix")
	}
	x := band.solve(b)

	var want mat.VecDense
	if err := want.SolveVec(dense, mat.NewVecDense(n, b)); err != nil {
		t.Fatalf("dense solve: %v", err)
	}
	for i := range x {
		if math.Abs(x[i]-want.AtVec(i)) > 1e-9*(1+math.Abs(want.AtVec(i))) {
			t.Errorf("x[%d] = %.12f, want %.12f", i, x[i], want.AtVec(i))
		}
	}
}

func TestBandNeedsPivoting(t *testing.T) {
	band := newBand(3, 1, 1)
	// Zero leading pivot forces a row swap.
	band.set(0, 0, 0)
	band.set(0, 1, 2)
	band.set(1, 0, 1)
	band.set(1, 1, 1)
	band.set(1, 2, 1)
	band.set(2, 1, 3)
	band.set(2, 2, 1)

	if !band.factor() {
		t.Fatal("factor reported singular matrix")
	}
	x := band.solve([]float64{4, 6, 7})
	want := []float64{3, 2, 1}
	for i := range want {
		if math.Abs(x[i]-want[i]) > 1e-12 {
			t.Errorf("x[%d] = %g, want %g", i, x[i], want[i])
		}
	}
}

func TestBandSingular(t *testing.T) {
	band := newBand(2, 1, 1)
	band.set(0, 0, 1)
	band.set(0, 1, 2)
	band.set(1, 0, 2)
	band.set(1, 1, 4)
	if band.factor() {
		t.Error("expected singular matrix to be rejected")
	}
}
