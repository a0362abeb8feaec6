package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/go-kit/log/level"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/moonlander/internal/config"
	"github.com/san-kum/moonlander/internal/control"
	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/export"
	"github.com/san-kum/moonlander/internal/integrators"
	"github.com/san-kum/moonlander/internal/lander"
	"github.com/san-kum/moonlander/internal/sim"
	"github.com/san-kum/moonlander/internal/storage"
	"github.com/san-kum/moonlander/internal/viz"
)

func loadRun(runID string) (*storage.RunMetadata, *lander.Trajectory, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, tr, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROBLEM\tTIME\tTF\tNODES\tTOUCHDOWN SPEED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3fs\t%d\t%.4f\n",
			run.ID,
			run.Problem,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.TF,
			run.Nodes,
			run.Metrics["touchdown_speed"],
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("problem: %s\n", meta.Problem)
	fmt.Printf("samples: %d\n\n", tr.Len())
	printSummary(tr, meta.Metrics)
	printPlots(tr)

	h := tr.Hamiltonian()
	graph := asciigraph.Plot(h,
		asciigraph.Height(6),
		asciigraph.Width(80),
		asciigraph.Caption("hamiltonian per mesh point"),
	)
	fmt.Println()
	fmt.Println(graph)
	return nil
}

func figureRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	paths, err := export.SaveFigure(tr, outDir, meta.ID)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Printf("wrote %s\n", p)
	}
	return nil
}

func svgRun(cmd *cobra.Command, args []string) error {
	_, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	svg := export.TrajectoryToSVG(tr, 800, 600, "#00ff88")
	if svgPath == "" {
		_, err := fmt.Println(svg)
		return err
	}
	return os.WriteFile(svgPath, []byte(svg), 0644)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, tr)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta.Problem, tr, meta.Metrics)
}

func replayRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return viz.Run(tr, viz.Options{Speed: speed, Theme: theme, Title: meta.Problem})
}

// dispersionRun replays the stored thrust from the nominal start and from
// starts shifted by ±delta in each state component. With --kp > 0 the replay
// tracks the solved path instead of flying open loop.
func dispersionRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	cfg := meta.Config
	name := cfg.Replay.Integrator
	if replayIntegName != "" {
		name = replayIntegName
	}
	if name == "" {
		name = config.DefaultIntegrator
	}
	integ, err := integrators.ByName(name)
	if err != nil {
		return err
	}
	dt := cfg.Replay.Dt
	if dt <= 0 {
		dt = config.DefaultReplayDt
	}

	var ctrl dynamo.Controller = lander.NewOpenLoop(tr)
	if trackKp > 0 {
		ctrl = control.NewTracking(tr, trackKp, trackKd)
	}
	s := sim.New(lander.NewPlant(cfg.Weights.Gravity), integ, ctrl)
	deltas := []float64{deltaPos, deltaPos, deltaVel, deltaVel}
	var starts []sim.State
	var labels []string
	if samples > 0 {
		if starts, err = sim.Sample(cfg.Initial.State(), deltas, samples, seed); err != nil {
			return err
		}
	} else {
		starts = sim.Perturb(cfg.Initial.State(), deltas)
		labels = []string{"nominal"}
		for i, comp := range []string{"x", "y", "vx", "vy"} {
			if deltas[i] != 0 {
				labels = append(labels, "+"+comp, "-"+comp)
			}
		}
	}
	results, err := sim.NewEnsemble(s, workers).Run(cmd.Context(), starts, sim.Config{Dt: dt, Duration: tr.TF})
	if err != nil {
		return err
	}

	nominal := results[0].Final()
	deviation := make([]float64, len(results))
	speed := make([]float64, len(results))
	for i, res := range results {
		x := res.Final()
		deviation[i] = x.Sub(nominal).MaxAbs()
		speed[i] = math.Hypot(x[2], x[3])
	}

	if labels != nil {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "START\tX(TF)\tY(TF)\tVX(TF)\tVY(TF)\tSPEED")
		for i, res := range results {
			x := res.Final()
			fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n", labels[i], x[0], x[1], x[2], x[3], speed[i])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	} else {
		fmt.Printf("%d sampled starts\n", samples)
		fmt.Printf("touchdown speed: mean %.4f, std %.4f, max %.4f\n",
			stat.Mean(speed[1:], nil), stat.StdDev(speed[1:], nil), floats.Max(speed[1:]))
		fmt.Printf("touchdown deviation: mean %.4f, max %.4f\n", stat.Mean(deviation[1:], nil), floats.Max(deviation[1:]))
	}
	fmt.Printf("\nlargest touchdown deviation from nominal: %.4f\n", floats.Max(deviation))
	warnTouchdown(nominal, tr.Touchdown())
	return nil
}

func warnTouchdown(replayed, solved dynamo.State) {
	if d := replayed.Sub(solved).Norm(); d > 1e-2*(1+solved.Norm()) {
		level.Warn(logger).Log("msg", "nominal replay misses the solved touchdown", "distance", d)
	}
}
