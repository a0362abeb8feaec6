package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/lander"
)

// SolverMetrics counts and times trajectory solves.
type SolverMetrics struct {
	solves   *prometheus.CounterVec
	duration prometheus.Histogram
	nodes    prometheus.Histogram
	tf       prometheus.Histogram
}

func NewSolverMetrics(reg prometheus.Registerer) *SolverMetrics {
	factory := promauto.With(reg)
	return &SolverMetrics{
		solves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moonlander",
			Name:      "solves_total",
			Help:      "Trajectory solves by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "moonlander",
			Name:      "solve_duration_seconds",
			Help:      "Wall time of trajectory solves.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		nodes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "moonlander",
			Name:      "mesh_nodes",
			Help:      "Final mesh size of converged solves.",
			Buckets:   prometheus.ExponentialBuckets(50, 2, 10),
		}),
		tf: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "moonlander",
			Name:      "final_time",
			Help:      "Solved flight duration of converged solves.",
			Buckets:   prometheus.LinearBuckets(1, 2, 15),
		}),
	}
}

// Outcome classifies a solve result for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "converged"
	case errors.Is(err, dynamo.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, dynamo.ErrNotConverged):
		return "not_converged"
	default:
		return "error"
	}
}

func (m *SolverMetrics) Observe(tr *lander.Trajectory, err error, took time.Duration) {
	m.solves.WithLabelValues(Outcome(err)).Inc()
	m.duration.Observe(took.Seconds())
	if err == nil && tr != nil {
		m.nodes.Observe(float64(tr.Nodes))
		m.tf.Observe(tr.TF)
	}
}
