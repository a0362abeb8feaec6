package control

import (
	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/lander"
)

// Tracking flies a solved trajectory with feedback:
//
//	u = u_ref(t) + Kp·(r_ref(t) - r) + Kd·(v_ref(t) - v)
//
// per axis, with r = (x, y) and v = (vx, vy). With Kp = Kd = 0 it is the
// open-loop replay.
type Tracking struct {
	Ref *lander.Trajectory
	Kp  float64
	Kd  float64
}

func NewTracking(ref *lander.Trajectory, kp, kd float64) *Tracking {
	return &Tracking{Ref: ref, Kp: kp, Kd: kd}
}

func (c *Tracking) Compute(x dynamo.State, t float64) dynamo.Control {
	ref, u := c.Ref.At(t)
	if len(x) < 4 {
		return u
	}
	return dynamo.Control{
		u[0] + c.Kp*(ref[0]-x[0]) + c.Kd*(ref[2]-x[2]),
		u[1] + c.Kp*(ref[1]-x[1]) + c.Kd*(ref[3]-x[3]),
	}
}
