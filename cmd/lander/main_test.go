package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/moonlander/internal/config"
	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/integrators"
	"github.com/san-kum/moonlander/internal/lander"
	"github.com/san-kum/moonlander/internal/sim"
)

func newProblemCmd(t *testing.T) *cobra.Command {
	t.Helper()
	preset, configFile, obstacleSpecs = "", "", nil
	cmd := &cobra.Command{Use: "test"}
	addProblemFlags(cmd)
	return cmd
}

func TestParseObstacle(t *testing.T) {
	o, err := parseObstacle("1, 2, 6.5, 5")
	if err != nil {
		t.Fatal(err)
	}
	if o.RX != 1 || o.RY != 2 || o.X != 6.5 || o.Y != 5 || o.Weight != 1 || o.Sharpness != 20 {
		t.Errorf("defaults not applied: %+v", o)
	}

	o, err = parseObstacle("1,1,0,4,0.5,-0.1,10,2")
	if err != nil {
		t.Fatal(err)
	}
	if o.VX != 0.5 || o.VY != -0.1 || o.Weight != 10 || o.Sharpness != 2 {
		t.Errorf("full spec = %+v", o)
	}

	for _, bad := range []string{"1,2,3", "1,2,3,4,5,6,7,8,9", "a,1,1,1"} {
		if _, err := parseObstacle(bad); err == nil {
			t.Errorf("parseObstacle(%q) should fail", bad)
		}
	}
}

func TestBuildConfigLayers(t *testing.T) {
	cmd := newProblemCmd(t)
	if err := cmd.Flags().Set("alpha", "7"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("obstacle", "1,1,6,5"); err != nil {
		t.Fatal(err)
	}
	preset = "convoy"

	cfg, err := buildConfig(cmd, []string{config.ProblemObstacles})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Weights.Alpha != 7 {
		t.Errorf("alpha flag not applied: %g", cfg.Weights.Alpha)
	}
	if cfg.Initial.VX != 2 {
		t.Errorf("preset initial state lost: %+v", cfg.Initial)
	}
	if len(cfg.Obstacles) != 1 || cfg.Obstacles[0].X != 6 {
		t.Errorf("obstacle flag should replace preset obstacles: %+v", cfg.Obstacles)
	}
	if got := config.GetPreset(config.ProblemObstacles, "convoy"); len(got.Obstacles) != 2 {
		t.Error("preset was mutated")
	}
}

func TestBuildConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lander.yaml")
	base := config.DefaultConfig()
	base.Initial.Y = 42
	if err := config.Save(path, base); err != nil {
		t.Fatal(err)
	}

	cmd := newProblemCmd(t)
	configFile = path
	if err := cmd.Flags().Set("final-angle", "true"); err != nil {
		t.Fatal(err)
	}
	cfg, err := buildConfig(cmd, []string{config.ProblemFinalAngle})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Initial.Y != 42 || cfg.Problem != config.ProblemFinalAngle || !cfg.FinalAngle.On {
		t.Errorf("config = %+v", cfg)
	}

	configFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := buildConfig(cmd, nil); err == nil {
		t.Error("missing config file should fail")
	}
}

func TestBuildConfigUnknownPreset(t *testing.T) {
	cmd := newProblemCmd(t)
	preset = "nope"
	if _, err := buildConfig(cmd, nil); err == nil {
		t.Error("unknown preset should fail")
	}
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", ""} {
		if _, err := newLogger(lvl); err != nil {
			t.Errorf("newLogger(%q): %v", lvl, err)
		}
	}
	if _, err := newLogger("loud"); err == nil {
		t.Error("unknown level should fail")
	}
}

type hoverThrust struct{}

func (hoverThrust) Compute(x dynamo.State, t float64) dynamo.Control { return dynamo.Control{0, 2} }

func TestStepTrace(t *testing.T) {
	var buf bytes.Buffer
	trace := &stepTrace{logger: log.NewLogfmtLogger(&buf), every: 4}
	s := sim.New(lander.NewPlant(2), integrators.NewRK4(), hoverThrust{})
	s.AddObserver(trace)

	res, err := s.Run(context.Background(), dynamo.State{0, 10, 1, 0}, sim.Config{Dt: 0.1, Duration: 1})
	if err != nil {
		t.Fatal(err)
	}
	if trace.n != res.StepsTaken {
		t.Errorf("traced %d steps, run took %d", trace.n, res.StepsTaken)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("logged %d lines, want steps 0, 4 and 8:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "step=4") || !strings.Contains(lines[1], "uy=2") {
		t.Errorf("unexpected line %q", lines[1])
	}
}
