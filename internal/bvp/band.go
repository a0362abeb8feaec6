package bvp

import "math"

// bandLU is an LU factorization with partial pivoting of a square banded
// matrix with kl sub-diagonals and ku super-diagonals.
//
// Row r is stored in a window of 2*kl+ku+1 entries covering columns
// [r-kl, r+kl+ku]; the extra kl columns on the right absorb pivoting fill.
// Multipliers stay in place (LINPACK gbfa/gbsl layout), so solve applies the
// row interchanges one elimination step at a time.
type bandLU struct {
	n, kl, ku int
	width     int
	ab        []float64
	piv       []int
}

func newBand(n, kl, ku int) *bandLU {
	w := 2*kl + ku + 1
	return &bandLU{
		n:     n,
		kl:    kl,
		ku:    ku,
		width: w,
		ab:    make([]float64, n*w),
		piv:   make([]int, n),
	}
}

func (b *bandLU) idx(r, c int) int {
	return r*b.width + c - r + b.kl
}

func (b *bandLU) set(r, c int, v float64) {
	b.ab[b.idx(r, c)] = v
}

func (b *bandLU) at(r, c int) float64 {
	d := c - r
	if d < -b.kl || d > b.kl+b.ku {
		return 0
	}
	return b.ab[b.idx(r, c)]
}

// factor overwrites the band with its LU factors. It reports false when a
// pivot is zero or not finite.
func (b *bandLU) factor() bool {
	n, kl, ku := b.n, b.kl, b.ku
	for k := 0; k < n; k++ {
		last := min(n-1, k+kl)
		p := k
		best := math.Abs(b.ab[b.idx(k, k)])
		for i := k + 1; i <= last; i++ {
			if v := math.Abs(b.ab[b.idx(i, k)]); v > best {
				best, p = v, i
			}
		}
		if best == 0 || math.IsNaN(best) || math.IsInf(best, 0) {
			return false
		}
		b.piv[k] = p

		right := min(n-1, k+kl+ku)
		if p != k {
			for c := k; c <= right; c++ {
				i, j := b.idx(k, c), b.idx(p, c)
				b.ab[i], b.ab[j] = b.ab[j], b.ab[i]
			}
		}

		pivot := b.ab[b.idx(k, k)]
		for i := k + 1; i <= last; i++ {
			li := b.idx(i, k)
			l := b.ab[li] / pivot
			b.ab[li] = l
			if l == 0 {
				continue
			}
			for c := k + 1; c <= right; c++ {
				b.ab[b.idx(i, c)] -= l * b.ab[b.idx(k, c)]
			}
		}
	}
	return true
}

// solve returns x with A x = rhs using the factors from factor.
func (b *bandLU) solve(rhs []float64) []float64 {
	n, kl, ku := b.n, b.kl, b.ku
	x := make([]float64, n)
	copy(x, rhs)

	for k := 0; k < n; k++ {
		if p := b.piv[k]; p != k {
			x[k], x[p] = x[p], x[k]
		}
		if x[k] == 0 {
			continue
		}
		last := min(n-1, k+kl)
		for i := k + 1; i <= last; i++ {
			x[i] -= b.ab[b.idx(i, k)] * x[k]
		}
	}

	for k := n - 1; k >= 0; k-- {
		s := x[k]
		right := min(n-1, k+kl+ku)
		for c := k + 1; c <= right; c++ {
			s -= b.ab[b.idx(k, c)] * x[c]
		}
		x[k] = s / b.ab[b.idx(k, k)]
	}
	return x
}
