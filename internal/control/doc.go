// Package control provides feedback controllers for replaying solved
// descents on the point-mass plant.
//
// [Tracking] implements [dynamo.Controller]: the solved thrust as
// feedforward plus a PD correction toward the reference path.
//
// # Usage
//
//	ctrl := control.NewTracking(tr, 4, 4) // reference, Kp, Kd
//	s := sim.New(lander.NewPlant(g), integ, ctrl)
//
// Tracking is stateless and safe to share across ensemble runs.
package control
