package integrators

import "github.com/san-kum/moonlander/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta method. The control is held
// constant across the step.
type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	k1 := dyn.Derive(x, u, t)
	k2 := dyn.Derive(axpy(x, dt/2, k1), u, t+dt/2)
	k3 := dyn.Derive(axpy(x, dt/2, k2), u, t+dt/2)
	k4 := dyn.Derive(axpy(x, dt, k3), u, t+dt)

	out := make(dynamo.State, len(x))
	for i := range x {
		out[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}
