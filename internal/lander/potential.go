package lander

import (
	"fmt"
	"math"

	"github.com/san-kum/moonlander/internal/dynamo"
)

// Sample is the point at which potential terms are evaluated. T is physical
// time.
type Sample struct {
	T      float64
	X, Y   float64
	VX, VY float64
}

// Grad holds the partial derivatives of a potential with respect to the four
// state components. They enter the costate equations as ṗ1 = ∂V/∂x,
// ṗ2 = ∂V/∂y, ṗ3 = ∂V/∂vx - p1 and ṗ4 = ∂V/∂vy - p2.
type Grad struct {
	X, Y   float64
	VX, VY float64
}

func (g Grad) add(o Grad) Grad {
	return Grad{X: g.X + o.X, Y: g.Y + o.Y, VX: g.VX + o.VX, VY: g.VY + o.VY}
}

// Potential is an additive running-cost term V(t, x, y, vx, vy). No term
// depends on the thrust, so the control law u = p/(2α) holds for every
// formulation. The same Value enters the terminal Hamiltonian.
type Potential interface {
	Value(s Sample) float64
	Gradient(s Sample) Grad
}

type validator interface {
	Validate() error
}

// GroundPenalty is the soft height constraint V = Nu·max(0, -y).
type GroundPenalty struct {
	Nu float64
}

func (g GroundPenalty) Value(s Sample) float64 {
	return g.Nu * math.Max(0, -s.Y)
}

func (g GroundPenalty) Gradient(s Sample) Grad {
	if s.Y < 0 {
		return Grad{Y: -g.Nu}
	}
	return Grad{}
}

type FinalAngleMode int

const (
	// Barrier penalizes horizontal speed with (vx/(y+ρ))².
	Barrier FinalAngleMode = iota
	// Step penalizes ζ·vx²·(ε-y)² once the lander is below ε. The ramp is
	// squared so that the costate right-hand side stays continuous at y = ε.
	Step
)

func (m FinalAngleMode) String() string {
	switch m {
	case Barrier:
		return "barrier"
	case Step:
		return "step"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseFinalAngleMode(s string) (FinalAngleMode, error) {
	switch s {
	case "barrier", "":
		return Barrier, nil
	case "step":
		return Step, nil
	}
	return 0, dynamo.InvalidInputf("unknown final angle mode %q", s)
}

// FinalAngle shapes the approach near touchdown so that the lander comes
// down close to vertical: both modes charge horizontal velocity more the
// nearer the ground is.
type FinalAngle struct {
	Mode FinalAngleMode
	Rho  float64
	Zeta float64
	Eps  float64
}

func DefaultFinalAngle() FinalAngle {
	return FinalAngle{Mode: Barrier, Rho: 0.01, Zeta: 10, Eps: 1}
}

func (f FinalAngle) Validate() error {
	switch f.Mode {
	case Barrier:
		if !(f.Rho > 0) || math.IsInf(f.Rho, 0) {
			return dynamo.InvalidInputf("final angle rho must be positive and finite, got %g", f.Rho)
		}
	case Step:
		if !(f.Zeta >= 0) || !(f.Eps >= 0) || math.IsInf(f.Zeta, 0) || math.IsInf(f.Eps, 0) {
			return dynamo.InvalidInputf("final angle zeta and eps must be non-negative and finite")
		}
	default:
		return dynamo.InvalidInputf("unknown final angle mode %v", f.Mode)
	}
	return nil
}

func (f FinalAngle) Value(s Sample) float64 {
	if f.Mode == Step {
		d := math.Max(0, f.Eps-s.Y)
		return f.Zeta * s.VX * s.VX * d * d
	}
	r := s.VX / (s.Y + f.Rho)
	return r * r
}

func (f FinalAngle) Gradient(s Sample) Grad {
	if f.Mode == Step {
		d := math.Max(0, f.Eps-s.Y)
		return Grad{
			Y:  -2 * f.Zeta * s.VX * s.VX * d,
			VX: 2 * f.Zeta * s.VX * d * d,
		}
	}
	d := s.Y + f.Rho
	return Grad{
		Y:  -2 * s.VX * s.VX / (d * d * d),
		VX: 2 * s.VX / (d * d),
	}
}

// Path is a time-parameterized obstacle center.
type Path interface {
	At(t float64) (x, y float64)
}

// LinearPath moves at constant velocity from (X0, Y0) at t = 0.
type LinearPath struct {
	X0, Y0 float64
	VX, VY float64
}

func (p LinearPath) At(t float64) (float64, float64) {
	return p.X0 + p.VX*t, p.Y0 + p.VY*t
}

// Obstacle is the smooth super-elliptical repulsive field
//
//	Φ = W / (s^λ + 1),  s = (x-cx(t))²/RX + (y-cy(t))²/RY
//
// which is close to W inside the ellipse and decays quickly outside.
type Obstacle struct {
	RX, RY    float64
	Center    Path
	Weight    float64
	Sharpness float64
}

func NewObstacle(rx, ry float64, center Path, weight float64) Obstacle {
	return Obstacle{RX: rx, RY: ry, Center: center, Weight: weight, Sharpness: 20}
}

func (o Obstacle) Validate() error {
	if o.Center == nil {
		return dynamo.InvalidInputf("obstacle has no center path")
	}
	if !(o.RX > 0) || !(o.RY > 0) || math.IsInf(o.RX, 0) || math.IsInf(o.RY, 0) {
		return dynamo.InvalidInputf("obstacle radii must be positive and finite, got (%g, %g)", o.RX, o.RY)
	}
	if !(o.Sharpness >= 1) || math.IsInf(o.Sharpness, 0) {
		return dynamo.InvalidInputf("obstacle sharpness must be >= 1, got %g", o.Sharpness)
	}
	if !(o.Weight >= 0) || math.IsInf(o.Weight, 0) {
		return dynamo.InvalidInputf("obstacle weight must be non-negative and finite, got %g", o.Weight)
	}
	return nil
}

// shape returns the offsets from the center, s and w = 1/(s^λ + 1).
func (o Obstacle) shape(smp Sample) (dx, dy, s, w float64) {
	cx, cy := o.Center.At(smp.T)
	dx, dy = smp.X-cx, smp.Y-cy
	s = dx*dx/o.RX + dy*dy/o.RY
	return dx, dy, s, 1 / (math.Pow(s, o.Sharpness) + 1)
}

func (o Obstacle) Value(smp Sample) float64 {
	_, _, _, w := o.shape(smp)
	return o.Weight * w
}

// Gradient uses s^(λ-1)/(s^λ+1)² = (1-w)·w/s, which stays finite when s^λ
// overflows.
func (o Obstacle) Gradient(smp Sample) Grad {
	dx, dy, s, w := o.shape(smp)
	if s == 0 {
		return Grad{}
	}
	k := -2 * o.Sharpness * o.Weight * (1 - w) * w / s
	return Grad{X: k * dx / o.RX, Y: k * dy / o.RY}
}

// Outline samples the s = 1 level set of the obstacle at time t, the ellipse
// with semi-axes sqrt(RX) and sqrt(RY). The first and last points coincide.
func (o Obstacle) Outline(t float64, n int) (xs, ys []float64) {
	cx, cy := o.Center.At(t)
	ax, ay := math.Sqrt(o.RX), math.Sqrt(o.RY)
	xs, ys = make([]float64, n+1), make([]float64, n+1)
	for i := 0; i <= n; i++ {
		th := 2 * math.Pi * float64(i) / float64(n)
		xs[i] = cx + ax*math.Cos(th)
		ys[i] = cy + ay*math.Sin(th)
	}
	return xs, ys
}
