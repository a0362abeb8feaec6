// Package dynamo provides the shared primitives of the lander toolkit.
//
// The package defines the small vocabulary every other package speaks:
//
//   - [State]: vector representing a physical or state-costate sample
//   - [Control]: thrust command vector
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator interface
//   - [Controller]: control law interface (open-loop replay only)
//   - domain errors ([ErrNotConverged], [ErrInvalidInput], ...) and [SolveError]
//
// # Thread Safety
//
// All types here are plain values. Implementations of [System] and [Controller]
// used by the lander are immutable after construction and safe for concurrent use.
package dynamo
