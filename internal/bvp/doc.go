// Package bvp solves two-point boundary value problems with unknown
// parameters by 4th order collocation.
//
// The solution is a C1 cubic spline whose defect is forced to zero at
// interval midpoints (the three-stage Lobatto IIIA scheme). The nonlinear
// collocation system is solved with a damped Newton method over a banded
// Jacobian, and the mesh is refined wherever the estimated RMS residual
// exceeds the tolerance.
//
// Boundary conditions may mix y(a) and y(b) in the same row; such problems
// are reduced internally to separated form.
package bvp
