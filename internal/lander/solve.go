package lander

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/moonlander/internal/bvp"
	"github.com/san-kum/moonlander/internal/dynamo"
)

type Options struct {
	Guess    Guess
	Tol      float64
	MaxNodes int
	Logger   log.Logger
}

func DefaultOptions() Options {
	return Options{
		Guess:    DefaultGuess(),
		Tol:      1e-3,
		MaxNodes: 30000,
		Logger:   log.NewNopLogger(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Guess == (Guess{}) {
		o.Guess = d.Guess
	}
	if o.Tol <= 0 {
		o.Tol = d.Tol
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = d.MaxNodes
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Solve runs the collocation solve for f and extracts the trajectory.
// Failure to converge is reported as a *dynamo.SolveError matching
// dynamo.ErrNotConverged; no partial trajectory is returned.
func Solve(ctx context.Context, f Formulation, opts Options) (*Trajectory, error) {
	opts = opts.withDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Guess.Validate(); err != nil {
		return nil, err
	}
	logger := log.With(opts.Logger, "subsys", "lander")

	tau, z, p := f.InitialGuess(opts.Guess)
	level.Debug(logger).Log("msg", "solving", "terms", len(f.terms()), "mesh", len(tau), "tf_guess", p[0])

	sol, err := bvp.Solve(ctx, bvp.Problem{Fun: f.Dynamics, BC: f.Boundary}, tau, z, p, bvp.Options{
		Tol:      opts.Tol,
		MaxNodes: opts.MaxNodes,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("lander: %w", err)
	}
	if tf := sol.P[0]; !(tf > 0) {
		return nil, fmt.Errorf("lander: solved final time %.4g is not positive: %w", tf, dynamo.ErrNotConverged)
	}

	tr, err := f.extract(sol)
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("msg", "trajectory", "tf", tr.TF, "nodes", tr.Nodes, "touchdown_vx", tr.VX[len(tr.VX)-1])
	return tr, nil
}

// SolveBaseline solves the unconstrained descent from ic.
func SolveBaseline(ctx context.Context, ic InitialConditions, w Weights, opts Options) (*Trajectory, error) {
	return Solve(ctx, Formulation{Weights: w, Initial: ic}, opts)
}

// SolveWithFinalAngle adds the final-approach shaping when on is set.
func SolveWithFinalAngle(ctx context.Context, ic InitialConditions, w Weights, angle FinalAngle, on bool, opts Options) (*Trajectory, error) {
	f := Formulation{Weights: w, Initial: ic}
	if on {
		f.Terms = []Potential{angle}
	}
	return Solve(ctx, f, opts)
}

// SolveWithObstacles adds one repulsive field per obstacle.
func SolveWithObstacles(ctx context.Context, ic InitialConditions, w Weights, obstacles []Obstacle, opts Options) (*Trajectory, error) {
	f := Formulation{Weights: w, Initial: ic}
	for _, o := range obstacles {
		f.Terms = append(f.Terms, o)
	}
	return Solve(ctx, f, opts)
}
