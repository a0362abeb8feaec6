package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/san-kum/moonlander/internal/metrics"
	"github.com/san-kum/moonlander/internal/sweep"
)

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(axes) == 0 {
		return fmt.Errorf("at least one --axis is required (parameters: %v)", sweep.Params())
	}

	names := make([]string, 0, len(axes))
	ranges := make([][]float64, 0, len(axes))
	for _, a := range axes {
		name, values, err := sweep.ParseAxis(a)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	grid, err := sweep.NewGrid(names, ranges)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	runner := &sweep.Runner{
		Base:     cfg,
		Workers:  workers,
		Metrics:  metrics.NewSolverMetrics(reg),
		Logger:   logger,
		Progress: rate.Every(2 * time.Second),
	}

	fmt.Printf("sweeping %d points of %s on %d workers...\n", grid.Size(), cfg.Problem, workers)
	start := time.Now()
	points, err := runner.Run(cmd.Context(), grid)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, n := range names {
		fmt.Fprintf(w, "%s\t", n)
	}
	fmt.Fprintf(w, "TF\tNODES\t%s\n", bestMetric)
	failed := 0
	for _, p := range points {
		for _, n := range names {
			fmt.Fprintf(w, "%g\t", p.Params[n])
		}
		if p.Err != nil {
			failed++
			fmt.Fprintf(w, "-\t-\t%v\n", p.Err)
			continue
		}
		v, _ := p.Value(bestMetric)
		fmt.Fprintf(w, "%.4f\t%d\t%.6f\n", p.TF, p.Nodes, v)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if best, ok := sweep.Best(points, bestMetric); ok {
		keys := make([]string, 0, len(best.Params))
		for k := range best.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("\nbest %s:", bestMetric)
		for _, k := range keys {
			fmt.Printf(" %s=%g", k, best.Params[k])
		}
		v, _ := best.Value(bestMetric)
		fmt.Printf(" (%.6f)\n", v)
	}
	if failed > 0 {
		fmt.Printf("%d of %d points failed\n", failed, len(points))
	}

	if promOut != "" {
		if err := prometheus.WriteToTextfile(promOut, reg); err != nil {
			return err
		}
	}
	if sweepOut != "" {
		data, err := json.MarshalIndent(points, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(sweepOut, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
