// Package metrics scores descent trajectories.
//
// Each metric implements dynamo.Metric and can be fed either by a forward
// replay through sim.Simulator or directly from a solved trajectory with
// Evaluate. SolverMetrics exports solve outcomes to Prometheus.
package metrics
