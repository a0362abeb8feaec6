// Package integrators provides fixed and adaptive step ODE integrators over
// dynamo.System. They replay solved thrust schedules on the physical plant
// and shoot the state-costate equations forward to cross-check a solve.
//
// Integrators are stateless and safe for concurrent use.
package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/moonlander/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"euler":  func() dynamo.Integrator { return NewEuler() },
	"rk4":    func() dynamo.Integrator { return NewRK4() },
	"rk45":   func() dynamo.Integrator { return NewRK45() },
	"verlet": func() dynamo.Integrator { return NewVerlet() },
}

// ByName returns the integrator registered under name.
func ByName(name string) (dynamo.Integrator, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator %q (have %v)", dynamo.ErrInvalidInput, name, Names())
	}
	return ctor(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Propagate takes steps equal steps from t0 to t1 with a fixed control u.
func Propagate(integ dynamo.Integrator, dyn dynamo.System, x0 dynamo.State, u dynamo.Control, t0, t1 float64, steps int) dynamo.State {
	x := x0.Clone()
	dt := (t1 - t0) / float64(steps)
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, u, t0+float64(i)*dt, dt)
	}
	return x
}

// axpy returns x + a*k.
func axpy(x dynamo.State, a float64, k dynamo.State) dynamo.State {
	out := make(dynamo.State, len(x))
	for i := range x {
		out[i] = x[i] + a*k[i]
	}
	return out
}
