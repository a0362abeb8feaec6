package sim

import (
	"context"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// Ensemble replays the same system and controller from several initial
// states. Each run gets its own Simulator; metrics are not shared, so the
// base simulator's metrics are not attached to ensemble runs.
type Ensemble struct {
	base    *Simulator
	workers int
}

func NewEnsemble(s *Simulator, workers int) *Ensemble {
	if workers <= 0 {
		workers = 1
	}
	return &Ensemble{base: s, workers: workers}
}

// Run returns one result per initial state, in order.
func (e *Ensemble) Run(ctx context.Context, initial []State, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(initial))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, x0 := range initial {
		g.Go(func() error {
			s := New(e.base.dyn, e.base.integrator, e.base.controller)
			res, err := s.Run(ctx, x0, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Perturb returns x0 followed by copies with each component shifted by
// plus and minus the matching entry of delta.
func Perturb(x0 State, delta []float64) []State {
	out := []State{x0.Clone()}
	for i, d := range delta {
		if d == 0 || i >= len(x0) {
			continue
		}
		up, down := x0.Clone(), x0.Clone()
		up[i] += d
		down[i] -= d
		out = append(out, up, down)
	}
	return out
}

// Sample returns x0 followed by n starts drawn from an independent normal
// distribution around x0 with per-component standard deviation sigma.
// Components with zero sigma are held at x0.
func Sample(x0 State, sigma []float64, n int, seed uint64) ([]State, error) {
	var idx []int
	for i, sd := range sigma {
		if sd < 0 {
			return nil, dynamo.InvalidInputf("sigma[%d] = %g must be non-negative", i, sd)
		}
		if sd > 0 && i < len(x0) {
			idx = append(idx, i)
		}
	}
	out := []State{x0.Clone()}
	if len(idx) == 0 || n <= 0 {
		return out, nil
	}

	mu := make([]float64, len(idx))
	cov := mat.NewSymDense(len(idx), nil)
	for k, i := range idx {
		mu[k] = x0[i]
		cov.SetSym(k, k, sigma[i]*sigma[i])
	}
	dist, ok := distmv.NewNormal(mu, cov, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if !ok {
		return nil, dynamo.InvalidInputf("covariance is not positive definite")
	}

	draw := make([]float64, len(idx))
	for range n {
		dist.Rand(draw)
		x := x0.Clone()
		for k, i := range idx {
			x[i] = draw[k]
		}
		out = append(out, x)
	}
	return out, nil
}
