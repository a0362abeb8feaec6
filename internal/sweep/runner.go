package sweep

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/san-kum/moonlander/internal/config"
	"github.com/san-kum/moonlander/internal/lander"
	"github.com/san-kum/moonlander/internal/metrics"
)

// Point is the outcome of one grid point. Err is set when the solve failed;
// failed points do not abort the sweep.
type Point struct {
	Params  map[string]float64 `json:"params"`
	TF      float64            `json:"tf"`
	Nodes   int                `json:"nodes"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Err     error              `json:"-"`
}

// Value returns the named metric, with "tf" for the flight duration.
func (p Point) Value(metric string) (float64, bool) {
	if p.Err != nil {
		return 0, false
	}
	if metric == "tf" {
		return p.TF, true
	}
	v, ok := p.Metrics[metric]
	return v, ok
}

type Runner struct {
	Base    *config.Config
	Workers int
	Metrics *metrics.SolverMetrics
	Logger  log.Logger
	// Progress limits how often completion is logged.
	Progress rate.Limit
}

// Run solves every grid point concurrently. Results keep grid order. Only
// context cancellation stops the sweep early.
func (r *Runner) Run(ctx context.Context, g *Grid) ([]Point, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "subsys", "sweep")
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	every := r.Progress
	if every == 0 {
		every = rate.Every(time.Second)
	}
	limiter := rate.NewLimiter(every, 1)

	points := g.Points()
	results := make([]Point, len(points))
	var done atomic.Int64

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, params := range points {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.solve(ctx, params)
			if n := done.Add(1); limiter.Allow() || int(n) == len(points) {
				level.Info(logger).Log("msg", "progress", "done", n, "total", len(points))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) solve(ctx context.Context, params map[string]float64) Point {
	pt := Point{Params: params}
	cfg, err := Apply(r.Base, params)
	if err != nil {
		pt.Err = err
		return pt
	}
	f, err := cfg.Formulation()
	if err != nil {
		pt.Err = err
		return pt
	}

	start := time.Now()
	tr, err := lander.Solve(ctx, f, cfg.Options())
	if r.Metrics != nil {
		r.Metrics.Observe(tr, err, time.Since(start))
	}
	if err != nil {
		pt.Err = err
		return pt
	}
	pt.TF = tr.TF
	pt.Nodes = tr.Nodes
	pt.Metrics = metrics.Evaluate(tr, metrics.Standard(f)...)
	return pt
}

// Best returns the successful point with the smallest value of metric.
func Best(points []Point, metric string) (Point, bool) {
	best, found := Point{}, false
	bestVal := math.Inf(1)
	for _, p := range points {
		v, ok := p.Value(metric)
		if !ok || math.IsNaN(v) {
			continue
		}
		if !found || v < bestVal {
			best, bestVal, found = p, v, true
		}
	}
	return best, found
}
