// Package lander builds and solves the optimal descent problem of a planar
// lunar lander.
//
// Pontryagin's minimum principle turns the control problem into a two-point
// boundary value problem over the state-costate vector
//
//	z = [x, y, vx, vy, p1, p2, p3, p4]
//
// with an unknown final time tf. Time is normalized to τ = t/tf so the
// problem lives on [0, 1] and tf is a free parameter of the collocation
// solve in package bvp.
//
// The running cost is α|u|² + γ + ΣV where each V is a [Potential] term
// (ground penalty, final-approach shaping, moving obstacles). Optimal
// thrust is u = (p3, p4)/(2α). The terminal cost β|v(tf)|² fixes the
// velocity costates at touchdown and the free final time makes the
// Hamiltonian vanish there.
//
// A [Formulation] is an immutable value; its Dynamics and Boundary methods
// are safe to call from any number of concurrent solves.
package lander
