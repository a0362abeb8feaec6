package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/moonlander/internal/config"
	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/export"
	"github.com/san-kum/moonlander/internal/integrators"
	"github.com/san-kum/moonlander/internal/lander"
	"github.com/san-kum/moonlander/internal/metrics"
	"github.com/san-kum/moonlander/internal/sim"
	"github.com/san-kum/moonlander/internal/storage"
)

func solveConfig(ctx context.Context, cfg *config.Config) (*lander.Trajectory, map[string]float64, error) {
	f, err := cfg.Formulation()
	if err != nil {
		return nil, nil, err
	}
	opts := cfg.Options()
	opts.Logger = logger

	start := time.Now()
	tr, err := lander.Solve(ctx, f, opts)
	if err != nil {
		return nil, nil, err
	}
	level.Info(logger).Log("msg", "solved", "problem", cfg.Problem, "took", time.Since(start))
	return tr, metrics.Evaluate(tr, metrics.Standard(f)...), nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	fmt.Printf("solving %s problem...\n", cfg.Problem)
	start := time.Now()
	tr, values, err := solveConfig(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))
	printSummary(tr, values)

	if compareAngle {
		if err := compareFinalAngle(ctx, cfg, tr); err != nil {
			return err
		}
	}
	if showPlots {
		printPlots(tr)
	}
	if replayCheck {
		if err := replayOpenLoop(ctx, cfg, tr); err != nil {
			return err
		}
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(cfg, tr, values)
		if err != nil {
			return err
		}
		fmt.Printf("\nrun id: %s\n", runID)
	}
	if figureDir != "" {
		paths, err := export.SaveFigure(tr, figureDir, cfg.Problem)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Printf("wrote %s\n", p)
		}
	}
	if svgPath != "" {
		if err := os.WriteFile(svgPath, []byte(export.TrajectoryToSVG(tr, 800, 600, "#00ff88")), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}
	return nil
}

func printSummary(tr *lander.Trajectory, values map[string]float64) {
	td := tr.Touchdown()
	h := tr.Hamiltonian()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "final time\t%.6f s\n", tr.TF)
	fmt.Fprintf(w, "final position\t(%.3f, %.3f)\n", td[0], td[1])
	fmt.Fprintf(w, "final velocity\t(%.4f, %.4f)\n", td[2], td[3])
	fmt.Fprintf(w, "final angle\t%.4f rad\n", tr.Angle[tr.Len()-1])
	fmt.Fprintf(w, "H(tf)\t%.2e\n", h[len(h)-1])
	fmt.Fprintf(w, "mesh nodes\t%d\n", tr.Nodes)
	fmt.Fprintf(w, "iterations\t%d\n", tr.Iterations)
	fmt.Fprintf(w, "max rms residual\t%.2e\n", tr.MaxResidual)
	fmt.Fprintf(w, "max bc residual\t%.2e\n", tr.BoundaryResidual)
	w.Flush()

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, values[name])
	}
}

// compareFinalAngle solves the same problem with the final angle term off.
// A converged pair lands with less horizontal speed when the term is on.
func compareFinalAngle(ctx context.Context, cfg *config.Config, on *lander.Trajectory) error {
	if cfg.Problem != config.ProblemFinalAngle || !cfg.FinalAngle.On {
		return fmt.Errorf("--compare needs the final_angle problem with the term on")
	}
	off := cfg.Clone()
	off.FinalAngle.On = false
	base, _, err := solveConfig(ctx, off)
	if err != nil {
		return fmt.Errorf("baseline for comparison: %w", err)
	}

	vxOn, vxOff := on.VX[on.Len()-1], base.VX[base.Len()-1]
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Println()
	fmt.Fprintln(w, "\tTF\tVX(TF)\tANGLE(TF)")
	fmt.Fprintf(w, "off\t%.6f\t%.6f\t%.6f\n", base.TF, vxOff, base.Angle[base.Len()-1])
	fmt.Fprintf(w, "on\t%.6f\t%.6f\t%.6f\n", on.TF, vxOn, on.Angle[on.Len()-1])
	w.Flush()

	if !(math.Abs(vxOn) < math.Abs(vxOff)) {
		level.Warn(logger).Log("msg", "final angle term did not lower the touchdown speed", "vx_on", vxOn, "vx_off", vxOff)
	}
	return nil
}

// replayOpenLoop integrates the plant under the solved thrust and reports
// how far the integrated touchdown lands from the collocated one.
func replayOpenLoop(ctx context.Context, cfg *config.Config, tr *lander.Trajectory) error {
	name := cfg.Replay.Integrator
	if replayIntegName != "" {
		name = replayIntegName
	}
	integ, err := integrators.ByName(name)
	if err != nil {
		return err
	}
	s := sim.New(lander.NewPlant(cfg.Weights.Gravity), integ, lander.NewOpenLoop(tr))
	s.AddMetric(metrics.NewTouchdownSpeed())
	s.AddObserver(&stepTrace{logger: log.With(logger, "subsys", "replay"), every: 100})
	res, err := s.Run(ctx, cfg.Initial.State(), sim.Config{Dt: cfg.Replay.Dt, Duration: tr.TF, ValidateState: true})
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return res.Errors[0]
	}

	dev := res.Final().Sub(tr.Touchdown())
	fmt.Printf("\nopen-loop replay (%s, dt=%g, %d steps):\n", name, cfg.Replay.Dt, res.StepsTaken)
	fmt.Printf("  touchdown error: %.2e (position %.2e)\n", dev.Norm(), math.Hypot(dev[0], dev[1]))
	fmt.Printf("  touchdown speed: %.6f\n", res.Metrics["touchdown_speed"])
	return nil
}

// stepTrace logs every n-th replay step at debug level.
type stepTrace struct {
	logger log.Logger
	every  int
	n      int
}

func (o *stepTrace) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	if o.n%o.every == 0 {
		level.Debug(o.logger).Log("step", o.n, "t", t, "x", x[0], "y", x[1], "vx", x[2], "vy", x[3], "ux", u[0], "uy", u[1])
	}
	o.n++
}

// uniform samples a trajectory column on n evenly spaced times.
func uniform(tr *lander.Trajectory, n int, col func(x, u []float64) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		x, u := tr.At(tr.TF * float64(i) / float64(n-1))
		out[i] = col(x, u)
	}
	return out
}

func printPlots(tr *lander.Trajectory) {
	series := []struct {
		caption string
		col     func(x, u []float64) float64
	}{
		{"height y", func(x, u []float64) float64 { return x[1] }},
		{"velocity vx", func(x, u []float64) float64 { return x[2] }},
		{"velocity vy", func(x, u []float64) float64 { return x[3] }},
		{"thrust |u|", func(x, u []float64) float64 { return math.Hypot(u[0], u[1]) }},
		{"angle", func(x, u []float64) float64 { return lander.ThrustAngle(u[0], u[1]) }},
	}
	for _, s := range series {
		graph := asciigraph.Plot(uniform(tr, 80, s.col),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s over [0, %.2f] s", s.caption, tr.TF)),
		)
		fmt.Println()
		fmt.Println(graph)
	}
}
