package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for trajectory optimization.
var (
	// ErrInvalidInput indicates a rejected problem definition (bad weights, mesh, obstacle...).
	ErrInvalidInput = errors.New("dynamo: invalid input")

	// ErrInvalidState indicates a state vector with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrNotConverged indicates the boundary-value solver found no trajectory.
	ErrNotConverged = errors.New("dynamo: boundary-value problem did not converge")

	// ErrMaxNodes indicates mesh refinement hit the node ceiling.
	ErrMaxNodes = errors.New("dynamo: maximum number of mesh nodes exceeded")

	// ErrSingularJacobian indicates the collocation Jacobian could not be factored.
	ErrSingularJacobian = errors.New("dynamo: singular collocation jacobian")

	// ErrMaxIterations indicates refinement stopped before boundary residuals met tolerance.
	ErrMaxIterations = errors.New("dynamo: maximum number of iterations reached")

	// ErrDimensionMismatch indicates mismatched state/residual dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// InvalidInputf returns an error wrapping ErrInvalidInput. The format may
// itself use %w to wrap a further cause.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

// SolveError reports a boundary-value solve that ended without a solution.
// It matches ErrNotConverged as well as the wrapped cause.
type SolveError struct {
	Nodes       int
	Iterations  int
	MaxResidual float64
	Wrapped     error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%v (nodes=%d, iterations=%d, max rms residual=%.3g)",
		e.Wrapped, e.Nodes, e.Iterations, e.MaxResidual)
}

func (e *SolveError) Unwrap() []error {
	return []error{ErrNotConverged, e.Wrapped}
}
