package bvp

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	maxJacobians  = 4
	maxNewtonIter = 8
	armijoSigma   = 0.2
	armijoTau     = 0.5
	armijoTrials  = 4
)

// newton solves the collocation system on a fixed mesh with a damped Newton
// method. The Jacobian is reused while full steps keep being accepted.
// Collocation residuals are driven well below tol so that the RMS estimate
// reflects discretization error rather than an unfinished solve.
func (s *system) newton(ctx context.Context, x, h []float64, z *mat.Dense, tol, bcTol float64) (*mat.Dense, bool, error) {
	tolR := make([]float64, len(h))
	for i, hi := range h {
		tolR[i] = 2.0 / 3.0 * hi * 5e-2 * tol
	}

	col, zMid, f, fMid := s.collocation(x, h, z)
	ra, rb := s.boundary(s.ends(z))
	res := s.residual(col, ra, rb)

	var (
		lu        *bandLU
		step      []float64
		cost      float64
		njev      int
		recompute = true
	)
	for iter := 0; iter < maxNewtonIter; iter++ {
		if err := ctx.Err(); err != nil {
			return z, false, err
		}
		if recompute {
			var ok bool
			lu, ok = s.jacobian(x, h, z, zMid, f, ra, rb)
			njev++
			if !ok {
				return z, true, nil
			}
			step = lu.solve(res)
			cost = floats.Dot(step, step)
		}

		alpha := 1.0
		var (
			zNew    *mat.Dense
			stepNew []float64
			costNew float64
		)
		for trial := 0; trial <= armijoTrials; trial++ {
			zNew = s.update(z, step, alpha)
			col, zMid, f, fMid = s.collocation(x, h, zNew)
			ra, rb = s.boundary(s.ends(zNew))
			res = s.residual(col, ra, rb)
			stepNew = lu.solve(res)
			costNew = floats.Dot(stepNew, stepNew)
			if costNew < (1-2*alpha*armijoSigma)*cost {
				break
			}
			if trial < armijoTrials {
				alpha *= armijoTau
			}
		}
		z = zNew

		if njev == maxJacobians {
			break
		}
		if collocated(col, fMid, tolR) && bounded(ra, rb, bcTol) {
			break
		}
		if alpha == 1 {
			step, cost = stepNew, costNew
			recompute = false
		} else {
			recompute = true
		}
	}
	return z, false, nil
}

// update returns z - alpha*step, where step is ordered node by node.
func (s *system) update(z *mat.Dense, step []float64, alpha float64) *mat.Dense {
	nz, m := z.Dims()
	out := mat.NewDense(nz, m, nil)
	for r := 0; r < nz; r++ {
		src, dst := z.RawRowView(r), out.RawRowView(r)
		for i := range dst {
			dst[i] = src[i] - alpha*step[i*nz+r]
		}
	}
	return out
}

func collocated(col, fMid *mat.Dense, tolR []float64) bool {
	nz, m1 := col.Dims()
	for r := 0; r < nz; r++ {
		for i := 0; i < m1; i++ {
			// NaN fails the comparison and keeps the solve going.
			if !(math.Abs(col.At(r, i)) < tolR[i]*(1+math.Abs(fMid.At(r, i)))) {
				return false
			}
		}
	}
	return true
}

func bounded(ra, rb []float64, tol float64) bool {
	for _, v := range ra {
		if !(math.Abs(v) < tol) {
			return false
		}
	}
	for _, v := range rb {
		if !(math.Abs(v) < tol) {
			return false
		}
	}
	return true
}
