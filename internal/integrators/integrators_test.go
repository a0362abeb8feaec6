package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/moonlander/internal/dynamo"
)

type oscillator struct{}

func (o *oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}
func (o *oscillator) StateDim() int   { return 2 }
func (o *oscillator) ControlDim() int { return 0 }

// ballistic is a thrusting point mass under lunar-like gravity.
type ballistic struct{ g float64 }

func (b *ballistic) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[2], x[3], u[0], u[1] - b.g}
}
func (b *ballistic) StateDim() int   { return 4 }
func (b *ballistic) ControlDim() int { return 2 }

func TestOscillatorAccuracy(t *testing.T) {
	tests := []struct {
		name  string
		integ dynamo.Integrator
		tol   float64
	}{
		{"euler", NewEuler(), 5e-2},
		{"rk4", NewRK4(), 1e-8},
		{"rk45", NewRK45(), 1e-8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := Propagate(tt.integ, &oscillator{}, dynamo.State{1, 0}, nil, 0, 1, 1000)
			if math.Abs(x[0]-math.Cos(1)) > tt.tol || math.Abs(x[1]+math.Sin(1)) > tt.tol {
				t.Errorf("x(1) = %v, want [%.6f %.6f]", x, math.Cos(1), -math.Sin(1))
			}
		})
	}
}

func TestConstantThrustIsExact(t *testing.T) {
	dyn := &ballistic{g: 2}
	x0 := dynamo.State{5, 10, 1, 0}
	u := dynamo.Control{-0.1, 1.5}
	T := 3.0
	want := dynamo.State{
		5 + 1*T - 0.05*T*T,
		10 - 0.25*T*T,
		1 - 0.1*T,
		-0.5 * T,
	}
	for _, name := range []string{"rk4", "rk45", "verlet"} {
		integ, err := ByName(name)
		if err != nil {
			t.Fatal(err)
		}
		x := Propagate(integ, dyn, x0, u, 0, T, 30)
		if d := x.Sub(want).Norm(); d > 1e-10 {
			t.Errorf("%s: x(T) = %v, want %v", name, x, want)
		}
	}
}

func TestRK45AdaptiveStep(t *testing.T) {
	integ := NewRK45()
	x, next, err := integ.StepAdaptive(&oscillator{}, dynamo.State{1, 0}, nil, 0, 0.5, 1e-10)
	if err != nil {
		t.Fatalf("StepAdaptive: %v", err)
	}
	if !x.IsValid() {
		t.Error("invalid state")
	}
	if !(next > 0 && next < 0.5) {
		t.Errorf("next step = %g, want shrink below 0.5 for a tight tolerance", next)
	}

	if _, _, err := integ.StepAdaptive(&oscillator{}, dynamo.State{1, 0}, nil, 0, 0.1, 0); !errors.Is(err, dynamo.ErrInvalidInput) {
		t.Errorf("zero tolerance: err = %v", err)
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("midpoint"); !errors.Is(err, dynamo.ErrInvalidInput) {
		t.Errorf("unknown integrator: err = %v", err)
	}
}

func BenchmarkRK4(b *testing.B) {
	integ := NewRK4()
	dyn := &ballistic{g: 2}
	x := dynamo.State{5, 10, 1, 0}
	u := dynamo.Control{0, 2}
	for i := 0; i < b.N; i++ {
		x = integ.Step(dyn, x, u, 0, 0.01)
	}
}

func BenchmarkRK45(b *testing.B) {
	integ := NewRK45()
	dyn := &ballistic{g: 2}
	x := dynamo.State{5, 10, 1, 0}
	u := dynamo.Control{0, 2}
	for i := 0; i < b.N; i++ {
		x = integ.Step(dyn, x, u, 0, 0.01)
	}
}
