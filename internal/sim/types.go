package sim

import (
	"fmt"

	"github.com/san-kum/moonlander/internal/dynamo"
)

type (
	State   = dynamo.State
	Control = dynamo.Control
)

type Config struct {
	Dt       float64
	Duration float64

	// Adaptive enables step-doubling error control with Tolerance, MinDt and MaxDt.
	Adaptive  bool
	Tolerance float64
	MinDt     float64
	MaxDt     float64

	ValidateState bool
	// Ground stops the run at the first step that ends with y below it.
	// Only meaningful when the state has a height component at index 1.
	Ground *float64
}

type Result struct {
	States     []State
	Controls   []Control
	Times      []float64
	Metrics    map[string]float64
	Errors     []error
	StepsTaken int
}

// Final returns the last recorded state.
func (r *Result) Final() State {
	return r.States[len(r.States)-1]
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("sim: step %d at t=%.4f: %s", e.Step, e.Time, e.Message)
}

func (e SimError) Unwrap() error {
	return dynamo.ErrInvalidState
}
