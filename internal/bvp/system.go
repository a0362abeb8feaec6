package bvp

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/dynamo"
)

var sqrtEps = math.Sqrt(2.220446049250313e-16)

// system is the first-order problem the collocation works on. Unknown
// parameters are carried as extra rows with zero derivative, so every
// unknown lives in one matrix z of shape nz x m.
//
// Boundary rows that involve only y(a) are placed at the top of the global
// Jacobian and the rest at the bottom, which keeps it banded. When a single
// row mixes both ends, the left state is copied into n extra rows w with
// w' = 0 and the conditions are evaluated entirely at b.
type system struct {
	fun     Func
	bc      BCFunc
	n, k    int
	nz      int
	coupled bool
	left    []int
	right   []int
}

func newSystem(prob Problem, n, k int, ya, yb, p []float64) (*system, error) {
	s := &system{fun: prob.Fun, bc: prob.BC, n: n, k: k, nz: n + k}

	base := prob.BC(ya, yb, p)
	if len(base) != n+k {
		return nil, dynamo.InvalidInputf("boundary function returned %d residuals, want %d: %w",
			len(base), n+k, dynamo.ErrDimensionMismatch)
	}

	onA := dependence(base, ya, func(v []float64) []float64 { return prob.BC(v, yb, p) })
	onB := dependence(base, yb, func(v []float64) []float64 { return prob.BC(ya, v, p) })

	for r := range base {
		if onA[r] && onB[r] {
			s.coupled = true
			break
		}
	}
	if s.coupled {
		s.nz = 2*n + k
		return s, nil
	}

	for r := range base {
		if onA[r] {
			s.left = append(s.left, r)
		} else {
			s.right = append(s.right, r)
		}
	}
	return s, nil
}

// dependence flags the residual rows that change when v is perturbed.
func dependence(base, v []float64, eval func([]float64) []float64) []bool {
	out := make([]bool, len(base))
	w := append([]float64(nil), v...)
	for j := range w {
		w[j] = v[j] + sqrtEps*(1+math.Abs(v[j]))
		r := eval(w)
		for i := range base {
			if r[i] != base[i] {
				out[i] = true
			}
		}
		w[j] = v[j]
	}
	return out
}

// qa is the number of boundary rows evaluated at the left end.
func (s *system) qa() int {
	if s.coupled {
		return s.n
	}
	return len(s.left)
}

// augment stacks y, p (and the left-state copy in coupled mode) into z.
func (s *system) augment(y *mat.Dense, p []float64) *mat.Dense {
	_, m := y.Dims()
	z := mat.NewDense(s.nz, m, nil)
	z.Slice(0, s.n, 0, m).(*mat.Dense).Copy(y)
	for j, v := range p {
		row := z.RawRowView(s.n + j)
		for i := range row {
			row[i] = v
		}
	}
	if s.coupled {
		for r := 0; r < s.n; r++ {
			row := z.RawRowView(s.n + s.k + r)
			for i := range row {
				row[i] = y.At(r, 0)
			}
		}
	}
	return z
}

func (s *system) params(z *mat.Dense, col int) []float64 {
	p := make([]float64, s.k)
	for j := range p {
		p[j] = z.At(s.n+j, col)
	}
	return p
}

// rhs evaluates dz/dx on every column. Parameters are read from column 0.
func (s *system) rhs(x []float64, z *mat.Dense) *mat.Dense {
	m := len(x)
	y := mat.DenseCopyOf(z.Slice(0, s.n, 0, m))
	fy := s.fun(x, y, s.params(z, 0))
	out := mat.NewDense(s.nz, m, nil)
	out.Slice(0, s.n, 0, m).(*mat.Dense).Copy(fy)
	return out
}

// boundary evaluates the left and right boundary rows at the end columns.
func (s *system) boundary(za, zb []float64) (ra, rb []float64) {
	n, k := s.n, s.k
	if s.coupled {
		ra = make([]float64, n)
		for i := range ra {
			ra[i] = za[n+k+i] - za[i]
		}
		rb = s.bc(zb[n+k:n+k+n], zb[:n], zb[n:n+k])
		return ra, rb
	}

	atA := s.bc(za[:n], zb[:n], za[n:n+k])
	atB := s.bc(za[:n], zb[:n], zb[n:n+k])
	ra = make([]float64, len(s.left))
	for i, r := range s.left {
		ra[i] = atA[r]
	}
	rb = make([]float64, len(s.right))
	for i, r := range s.right {
		rb[i] = atB[r]
	}
	return ra, rb
}

func (s *system) ends(z *mat.Dense) (za, zb []float64) {
	_, m := z.Dims()
	return mat.Col(nil, 0, z), mat.Col(nil, m-1, z)
}

// collocation returns the Lobatto IIIA residuals of every interval together
// with the midpoint states and the derivatives at nodes and midpoints.
func (s *system) collocation(x, h []float64, z *mat.Dense) (col, zMid, f, fMid *mat.Dense) {
	m := len(x)
	f = s.rhs(x, z)

	xMid := make([]float64, m-1)
	for i := range xMid {
		xMid[i] = x[i] + 0.5*h[i]
	}
	zMid = mat.NewDense(s.nz, m-1, nil)
	for r := 0; r < s.nz; r++ {
		zr, fr, mr := z.RawRowView(r), f.RawRowView(r), zMid.RawRowView(r)
		for i := range mr {
			mr[i] = 0.5*(zr[i+1]+zr[i]) - 0.125*h[i]*(fr[i+1]-fr[i])
		}
	}
	fMid = s.rhs(xMid, zMid)

	col = mat.NewDense(s.nz, m-1, nil)
	for r := 0; r < s.nz; r++ {
		zr, fr, fm, cr := z.RawRowView(r), f.RawRowView(r), fMid.RawRowView(r), col.RawRowView(r)
		for i := range cr {
			cr[i] = zr[i+1] - zr[i] - h[i]/6*(fr[i]+fr[i+1]+4*fm[i])
		}
	}
	return col, zMid, f, fMid
}

// residual flattens the boundary and collocation residuals in the row order
// of the global Jacobian.
func (s *system) residual(col *mat.Dense, ra, rb []float64) []float64 {
	_, m1 := col.Dims()
	res := make([]float64, 0, len(ra)+m1*s.nz+len(rb))
	res = append(res, ra...)
	for i := 0; i < m1; i++ {
		for r := 0; r < s.nz; r++ {
			res = append(res, col.At(r, i))
		}
	}
	return append(res, rb...)
}

// rhsJacobian returns df/dz for every column as row-major nz x nz blocks,
// approximated by forward differences.
func (s *system) rhsJacobian(x []float64, z, f0 *mat.Dense) []float64 {
	m := len(x)
	nz := s.nz
	jac := make([]float64, m*nz*nz)
	zp := mat.DenseCopyOf(z)
	step := make([]float64, m)

	for b := 0; b < s.n+s.k; b++ {
		row, orig := zp.RawRowView(b), z.RawRowView(b)
		for j := range row {
			ref := orig[j]
			if b >= s.n {
				ref = orig[0]
			}
			row[j] = orig[j] + sqrtEps*(1+math.Abs(ref))
			step[j] = row[j] - orig[j]
		}
		fp := s.rhs(x, zp)
		for a := 0; a < s.n; a++ {
			pa, ba := fp.RawRowView(a), f0.RawRowView(a)
			for j := 0; j < m; j++ {
				jac[j*nz*nz+a*nz+b] = (pa[j] - ba[j]) / step[j]
			}
		}
		copy(row, orig)
	}
	return jac
}

// boundaryJacobian differentiates the left rows with respect to z(a) and the
// right rows with respect to z(b).
func (s *system) boundaryJacobian(za, zb, ra0, rb0 []float64) (da, db []float64) {
	nz := s.nz
	da = make([]float64, len(ra0)*nz)
	db = make([]float64, len(rb0)*nz)
	a := append([]float64(nil), za...)
	b := append([]float64(nil), zb...)
	for c := 0; c < nz; c++ {
		a[c] = za[c] + sqrtEps*(1+math.Abs(za[c]))
		ra, _ := s.boundary(a, zb)
		for r := range ra0 {
			da[r*nz+c] = (ra[r] - ra0[r]) / (a[c] - za[c])
		}
		a[c] = za[c]

		b[c] = zb[c] + sqrtEps*(1+math.Abs(zb[c]))
		_, rb := s.boundary(za, b)
		for r := range rb0 {
			db[r*nz+c] = (rb[r] - rb0[r]) / (b[c] - zb[c])
		}
		b[c] = zb[c]
	}
	return da, db
}

// jacobian assembles and factors the global collocation Jacobian.
func (s *system) jacobian(x, h []float64, z, zMid, f *mat.Dense, ra, rb []float64) (*bandLU, bool) {
	m := len(x)
	nz := s.nz
	qa := s.qa()

	xMid := make([]float64, m-1)
	for i := range xMid {
		xMid[i] = x[i] + 0.5*h[i]
	}
	jNode := s.rhsJacobian(x, z, f)
	jMid := s.rhsJacobian(xMid, zMid, s.rhs(xMid, zMid))
	za, zb := s.ends(z)
	da, db := s.boundaryJacobian(za, zb, ra, rb)

	band := newBand(m*nz, qa+nz-1, 2*nz-1-qa)
	for r := 0; r < qa; r++ {
		for c := 0; c < nz; c++ {
			band.set(r, c, da[r*nz+c])
		}
	}

	prod := mat.NewDense(nz, nz, nil)
	for i := 0; i < m-1; i++ {
		ji := mat.NewDense(nz, nz, jNode[i*nz*nz:(i+1)*nz*nz])
		jn := mat.NewDense(nz, nz, jNode[(i+1)*nz*nz:(i+2)*nz*nz])
		jm := mat.NewDense(nz, nz, jMid[i*nz*nz:(i+1)*nz*nz])
		hi := h[i]
		row0 := qa + i*nz

		prod.Mul(jm, ji)
		for r := 0; r < nz; r++ {
			for c := 0; c < nz; c++ {
				v := -hi/6*ji.At(r, c) - hi/3*jm.At(r, c) - hi*hi/12*prod.At(r, c)
				if r == c {
					v--
				}
				band.set(row0+r, i*nz+c, v)
			}
		}

		prod.Mul(jm, jn)
		for r := 0; r < nz; r++ {
			for c := 0; c < nz; c++ {
				v := -hi/6*jn.At(r, c) - hi/3*jm.At(r, c) + hi*hi/12*prod.At(r, c)
				if r == c {
					v++
				}
				band.set(row0+r, (i+1)*nz+c, v)
			}
		}
	}

	row0 := qa + (m-1)*nz
	for r := 0; r < nz-qa; r++ {
		for c := 0; c < nz; c++ {
			band.set(row0+r, (m-1)*nz+c, db[r*nz+c])
		}
	}
	return band, band.factor()
}

// rmsResiduals estimates the RMS of the relative collocation residual on
// each interval with a 5-point Lobatto quadrature.
func (s *system) rmsResiduals(x, h []float64, z, f, col, fMid *mat.Dense) []float64 {
	m1 := len(h)
	nz := s.nz
	x1 := make([]float64, m1)
	x2 := make([]float64, m1)
	for i := range h {
		mid := x[i] + 0.5*h[i]
		x1[i] = mid + lobattoOffset*h[i]
		x2[i] = mid - lobattoOffset*h[i]
	}

	z1, d1 := mat.NewDense(nz, m1, nil), mat.NewDense(nz, m1, nil)
	z2, d2 := mat.NewDense(nz, m1, nil), mat.NewDense(nz, m1, nil)
	for r := 0; r < nz; r++ {
		for i := 0; i < m1; i++ {
			y0, y1 := z.At(r, i), z.At(r, i+1)
			f0, f1 := f.At(r, i), f.At(r, i+1)
			v, d := hermite(y0, y1, f0, f1, h[i], (x1[i]-x[i])/h[i])
			z1.Set(r, i, v)
			d1.Set(r, i, d)
			v, d = hermite(y0, y1, f0, f1, h[i], (x2[i]-x[i])/h[i])
			z2.Set(r, i, v)
			d2.Set(r, i, d)
		}
	}
	f1 := s.rhs(x1, z1)
	f2 := s.rhs(x2, z2)

	rms := make([]float64, m1)
	for i := range rms {
		var rm, r1, r2 float64
		for r := 0; r < nz; r++ {
			v := 1.5 * col.At(r, i) / h[i] / (1 + math.Abs(fMid.At(r, i)))
			rm += v * v
			v = (d1.At(r, i) - f1.At(r, i)) / (1 + math.Abs(f1.At(r, i)))
			r1 += v * v
			v = (d2.At(r, i) - f2.At(r, i)) / (1 + math.Abs(f2.At(r, i)))
			r2 += v * v
		}
		rms[i] = math.Sqrt(0.5 * (32.0/45.0*rm + 49.0/90.0*(r1+r2)))
	}
	return rms
}
