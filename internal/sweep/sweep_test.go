package sweep

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/moonlander/internal/config"
	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/metrics"
)

func TestGridPoints(t *testing.T) {
	g, err := NewGrid([]string{"alpha", "vx0"}, [][]float64{{1, 2}, {0, 1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Size() != 6 {
		t.Fatalf("size = %d, want 6", g.Size())
	}
	pts := g.Points()
	if len(pts) != 6 {
		t.Fatalf("got %d points", len(pts))
	}
	if pts[0]["alpha"] != 1 || pts[0]["vx0"] != 0 || pts[1]["vx0"] != 1 || pts[5]["alpha"] != 2 || pts[5]["vx0"] != 2 {
		t.Errorf("unexpected order: %v", pts)
	}
	pts[0]["alpha"] = 99
	if pts[1]["alpha"] != 1 {
		t.Error("points share maps")
	}
}

func TestNewGridRejects(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		ranges [][]float64
	}{
		{"length mismatch", []string{"alpha"}, nil},
		{"unknown", []string{"mass"}, [][]float64{{1}}},
		{"duplicate", []string{"beta", "beta"}, [][]float64{{1}, {2}}},
		{"empty range", []string{"beta"}, [][]float64{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGrid(tt.params, tt.ranges); !errors.Is(err, dynamo.ErrInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
		})
	}
}

func TestParseAxis(t *testing.T) {
	name, vals, err := ParseAxis("beta=1:5:5")
	if err != nil || name != "beta" || len(vals) != 5 || vals[0] != 1 || vals[4] != 5 || math.Abs(vals[2]-3) > 1e-12 {
		t.Errorf("span axis = %q %v %v", name, vals, err)
	}
	name, vals, err = ParseAxis("vx0=0, 0.5,2")
	if err != nil || name != "vx0" || len(vals) != 3 || vals[1] != 0.5 {
		t.Errorf("list axis = %q %v %v", name, vals, err)
	}
	for _, bad := range []string{"beta", "=1", "beta=", "beta=1:2:1", "beta=a,b", "beta=1:x:3"} {
		if _, _, err := ParseAxis(bad); err == nil {
			t.Errorf("ParseAxis(%q) should fail", bad)
		}
	}
}

func TestApply(t *testing.T) {
	base := config.DefaultConfig()
	cfg, err := Apply(base, map[string]float64{"gamma": 7, "y0": 3})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Weights.Gamma != 7 || cfg.Initial.Y != 3 {
		t.Errorf("apply did not set fields: %+v", cfg)
	}
	if base.Weights.Gamma == 7 {
		t.Error("apply mutated base")
	}
	if _, err := Apply(base, map[string]float64{"mass": 1}); !errors.Is(err, dynamo.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
	if len(Params()) != len(setters) {
		t.Error("Params() incomplete")
	}
}

func TestBest(t *testing.T) {
	points := []Point{
		{TF: 3, Metrics: map[string]float64{"control_effort": 5}},
		{TF: 1, Err: dynamo.ErrNotConverged},
		{TF: 2, Metrics: map[string]float64{"control_effort": 9}},
	}
	if p, ok := Best(points, "tf"); !ok || p.TF != 2 {
		t.Errorf("best tf = %+v %v", p, ok)
	}
	if p, ok := Best(points, "control_effort"); !ok || p.TF != 3 {
		t.Errorf("best effort = %+v %v", p, ok)
	}
	if _, ok := Best(points, "missing"); ok {
		t.Error("missing metric should find nothing")
	}
}

func solveCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "moonlander_solves_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRunnerSolvesGrid(t *testing.T) {
	base := config.DefaultConfig()
	base.Guess.MeshSize = 60

	g, err := NewGrid([]string{"vx0", "alpha"}, [][]float64{{0.5, 1}, {10, -1}})
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	r := &Runner{Base: base, Workers: 2, Metrics: metrics.NewSolverMetrics(reg)}

	points, err := r.Run(context.Background(), g)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("got %d points", len(points))
	}
	for i, p := range points {
		if p.Params["alpha"] < 0 {
			if !errors.Is(p.Err, dynamo.ErrInvalidInput) {
				t.Errorf("point %d: err = %v, want invalid input", i, p.Err)
			}
			continue
		}
		if p.Err != nil {
			t.Fatalf("point %d failed: %v", i, p.Err)
		}
		if !(p.TF > 0) || p.Nodes == 0 {
			t.Errorf("point %d: tf %g nodes %d", i, p.TF, p.Nodes)
		}
		if _, ok := p.Metrics["control_effort"]; !ok {
			t.Errorf("point %d missing metrics", i)
		}
	}
	if got := solveCount(t, reg, "converged"); got != 2 {
		t.Errorf("converged solves = %g, want 2", got)
	}
	if _, ok := Best(points, "tf"); !ok {
		t.Error("no best point")
	}
}

func TestRunnerCancelled(t *testing.T) {
	g, err := NewGrid([]string{"vx0"}, [][]float64{{0, 1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Base: config.DefaultConfig(), Workers: 1}
	if _, err := r.Run(ctx, g); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
