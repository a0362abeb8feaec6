package integrators

import "github.com/san-kum/moonlander/internal/dynamo"

// Verlet is velocity Verlet for states laid out as [positions..., velocities...]
// whose position rates are the velocities, such as the lander plant
// [x, y, vx, vy].
type Verlet struct{}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2
	a0 := dyn.Derive(x, u, t)

	out := make(dynamo.State, n)
	for i := 0; i < half; i++ {
		out[i] = x[i] + x[half+i]*dt + 0.5*a0[half+i]*dt*dt
		out[half+i] = x[half+i]
	}
	a1 := dyn.Derive(out, u, t+dt)
	for i := 0; i < half; i++ {
		out[half+i] = x[half+i] + 0.5*(a0[half+i]+a1[half+i])*dt
	}
	return out
}
