package bvp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// hermite evaluates the cubic Hermite interpolant on an interval of width h
// at the normalized position s in [0, 1], returning value and derivative.
func hermite(y0, y1, f0, f1, h, s float64) (v, d float64) {
	s2 := s * s
	s3 := s2 * s
	v = (2*s3-3*s2+1)*y0 + (s3-2*s2+s)*h*f0 + (-2*s3+3*s2)*y1 + (s3-s2)*h*f1
	d = (6*s2-6*s)*(y0-y1)/h + (3*s2-4*s+1)*f0 + (3*s2-2*s)*f1
	return v, d
}

// interval returns i such that x[i] <= t <= x[i+1], clamped to the mesh.
func interval(x []float64, t float64) int {
	i := sort.SearchFloat64s(x, t) - 1
	if i < 0 {
		i = 0
	}
	if i > len(x)-2 {
		i = len(x) - 2
	}
	return i
}

// interpolate evaluates the C1 spline defined by nodes x, values z and
// slopes f at every point of xq.
func interpolate(x []float64, z, f *mat.Dense, xq []float64) *mat.Dense {
	rows, _ := z.Dims()
	out := mat.NewDense(rows, len(xq), nil)
	for j, t := range xq {
		i := interval(x, t)
		h := x[i+1] - x[i]
		s := (t - x[i]) / h
		for r := 0; r < rows; r++ {
			v, _ := hermite(z.At(r, i), z.At(r, i+1), f.At(r, i), f.At(r, i+1), h, s)
			out.Set(r, j, v)
		}
	}
	return out
}

// refine inserts one node at the middle of every interval flagged in one and
// two nodes at the thirds of every interval flagged in two.
func refine(x []float64, one, two []bool) []float64 {
	out := make([]float64, 0, len(x)+2*len(one))
	for i := 0; i < len(x)-1; i++ {
		out = append(out, x[i])
		h := x[i+1] - x[i]
		switch {
		case two[i]:
			out = append(out, x[i]+h/3, x[i]+2*h/3)
		case one[i]:
			out = append(out, x[i]+0.5*h)
		}
	}
	return append(out, x[len(x)-1])
}

// diffs returns the interval widths of a mesh.
func diffs(x []float64) []float64 {
	h := make([]float64, len(x)-1)
	for i := range h {
		h[i] = x[i+1] - x[i]
	}
	return h
}

var lobattoOffset = 0.5 * math.Sqrt(3.0/7.0)
