package integrators

import (
	"math"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// Dormand-Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// 5th order weights minus the embedded 4th order ones.
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// RK45 is the Dormand-Prince embedded pair. StepAdaptive always accepts the
// step and proposes the next step size from the error estimate.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	next, _, _ := r.StepAdaptive(dyn, x, u, t, dt, 1e-6)
	return next
}

func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, error) {
	if !(tol > 0) {
		return nil, 0, dynamo.InvalidInputf("rk45 tolerance must be positive, got %g", tol)
	}
	n := len(x)
	var k [7]dynamo.State
	k[0] = dyn.Derive(x, u, t)

	var next dynamo.State
	for s := 1; s < 7; s++ {
		stage := x.Clone()
		for j := 0; j < s; j++ {
			if a := dpA[s][j]; a != 0 {
				for i := 0; i < n; i++ {
					stage[i] += dt * a * k[j][i]
				}
			}
		}
		k[s] = dyn.Derive(stage, u, t+dpC[s]*dt)
		if s == 6 {
			next = stage
		}
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		var e float64
		for s := 0; s < 7; s++ {
			e += dpE[s] * k[s][i]
		}
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*e)/scale)
	}
	if !next.IsValid() {
		return next, dt * r.minScale, dynamo.ErrInvalidState
	}

	ratio := errMax / tol
	switch {
	case ratio > 1:
		return next, dt * math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25)), nil
	case ratio > 0:
		return next, dt * math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2)), nil
	default:
		return next, dt * r.maxScale, nil
	}
}
