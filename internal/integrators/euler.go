package integrators

import "github.com/san-kum/moonlander/internal/dynamo"

// Euler is the explicit first-order method. Only useful as a baseline.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	return axpy(x, dt, dyn.Derive(x, u, t))
}
