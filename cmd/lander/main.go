package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/san-kum/moonlander/internal/config"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string

	x0, y0, vx0, vy0               float64
	alpha, beta, gamma, gravity, nu float64
	meshSize                        int
	tfGuess, costate                float64
	flatGuess                       bool
	tol                             float64
	maxNodes                        int

	finalAngle      bool
	angleMode       string
	rho, zeta, eps  float64
	obstacleSpecs   []string
	compareAngle    bool
	noSave          bool
	figureDir       string
	svgPath         string
	showPlots       bool
	replayCheck     bool
	replayIntegName string

	axes       []string
	workers    int
	bestMetric string
	promOut    string
	sweepOut   string

	outDir   string
	speed    float64
	theme    string
	deltaPos float64
	deltaVel float64
	trackKp  float64
	trackKd  float64
	samples  int
	seed     uint64

	logger log.Logger = log.NewNopLogger()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lander",
		Short: "optimal lunar lander descents by indirect collocation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".moonlander", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	solveCmd := &cobra.Command{
		Use:   "solve [problem]",
		Short: "solve a landing problem (baseline, final_angle, obstacles)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSolve,
	}
	addProblemFlags(solveCmd)
	solveCmd.Flags().BoolVar(&compareAngle, "compare", false, "also solve without the final angle term and compare")
	solveCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	solveCmd.Flags().StringVar(&figureDir, "figure", "", "write PNG figures to this directory")
	solveCmd.Flags().StringVar(&svgPath, "svg", "", "write the trajectory as SVG")
	solveCmd.Flags().BoolVar(&showPlots, "plot", false, "print terminal plots")
	solveCmd.Flags().BoolVar(&replayCheck, "replay", false, "replay the thrust open loop and report the touchdown error")
	solveCmd.Flags().StringVar(&replayIntegName, "integrator", "", "integrator for --replay (default from config)")

	sweepCmd := &cobra.Command{
		Use:   "sweep [problem]",
		Short: "solve a grid of parameters concurrently",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addProblemFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&axes, "axis", nil, "grid axis name=a,b,c or name=lo:hi:n (repeatable)")
	sweepCmd.Flags().IntVar(&workers, "workers", 4, "concurrent solves")
	sweepCmd.Flags().StringVar(&bestMetric, "best", "control_effort", "metric to minimize when reporting the best point")
	sweepCmd.Flags().StringVar(&promOut, "metrics-out", "", "write solver metrics in Prometheus text format")
	sweepCmd.Flags().StringVar(&sweepOut, "out", "", "write all points as JSON")

	presetsCmd := &cobra.Command{
		Use:   "presets [problem]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a config file with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, nil)
			if err != nil {
				return err
			}
			return config.Save(args[0], cfg)
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	initCmd.Flags().StringVar(&configFile, "config", "", "start from a config file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	figureCmd := &cobra.Command{
		Use:   "figure [run_id]",
		Short: "render PNG figures of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  figureRun,
	}
	figureCmd.Flags().StringVar(&outDir, "out", "figures", "output directory")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render a stored trajectory as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  svgRun,
	}
	svgCmd.Flags().StringVar(&svgPath, "out", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "animate a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  replayRun,
	}
	replayCmd.Flags().Float64Var(&speed, "speed", 1, "playback speed")
	replayCmd.Flags().StringVar(&theme, "theme", "lunar", "color theme")

	dispersionCmd := &cobra.Command{
		Use:   "dispersion [run_id]",
		Short: "replay a run's thrust from perturbed initial states",
		Args:  cobra.ExactArgs(1),
		RunE:  dispersionRun,
	}
	dispersionCmd.Flags().Float64Var(&deltaPos, "delta-pos", 0.1, "position perturbation")
	dispersionCmd.Flags().Float64Var(&deltaVel, "delta-vel", 0.05, "velocity perturbation")
	dispersionCmd.Flags().IntVar(&workers, "workers", 4, "concurrent replays")
	dispersionCmd.Flags().Float64Var(&trackKp, "kp", 0, "position gain for path tracking (0 = open loop)")
	dispersionCmd.Flags().Float64Var(&trackKd, "kd", 0, "velocity gain for path tracking")
	dispersionCmd.Flags().IntVar(&samples, "samples", 0, "draw this many normal starts (deltas as std devs) instead of ±delta")
	dispersionCmd.Flags().Uint64Var(&seed, "seed", 1, "random seed for --samples")
	dispersionCmd.Flags().StringVar(&replayIntegName, "integrator", "", "integrator (default from config)")

	rootCmd.AddCommand(solveCmd, sweepCmd, presetsCmd, initCmd, listCmd, showCmd, figureCmd, svgCmd,
		exportCSVCmd, exportJSONCmd, replayCmd, dispersionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(lvl string) (log.Logger, error) {
	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn", "":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(l, opt), nil
}

func addProblemFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")

	f.Float64Var(&x0, "x0", 5, "initial horizontal position")
	f.Float64Var(&y0, "y0", 10, "initial height")
	f.Float64Var(&vx0, "vx0", 1, "initial horizontal velocity")
	f.Float64Var(&vy0, "vy0", 0, "initial vertical velocity")

	f.Float64Var(&alpha, "alpha", 10, "control effort weight")
	f.Float64Var(&beta, "beta", 25, "terminal speed weight")
	f.Float64Var(&gamma, "gamma", 3, "time weight")
	f.Float64Var(&gravity, "gravity", 2, "gravitational acceleration")
	f.Float64Var(&nu, "nu", 0, "below-ground penalty")

	f.IntVar(&meshSize, "mesh", 200, "initial mesh size")
	f.Float64Var(&tfGuess, "tf-guess", 20, "final time guess (flat guess, or fallback)")
	f.Float64Var(&costate, "costate-guess", 1, "uniform costate guess, implies --flat-guess")
	f.BoolVar(&flatGuess, "flat-guess", false, "start from straight-line states instead of the closed-form descent")
	f.Float64Var(&tol, "tol", config.DefaultTol, "collocation residual tolerance")
	f.IntVar(&maxNodes, "max-nodes", config.DefaultMaxNodes, "mesh node limit")

	f.BoolVar(&finalAngle, "final-angle", false, "enable the final angle term")
	f.StringVar(&angleMode, "mode", "barrier", "final angle mode (barrier, step)")
	f.Float64Var(&rho, "rho", 0.01, "barrier offset")
	f.Float64Var(&zeta, "zeta", 10, "step weight")
	f.Float64Var(&eps, "eps", 1, "step height")
	f.StringArrayVar(&obstacleSpecs, "obstacle", nil, "obstacle rx,ry,x,y[,vx,vy[,weight[,sharpness]]] (repeatable)")
}

// buildConfig layers defaults, preset, config file and changed flags in
// that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	problem := ""
	if len(args) > 0 {
		problem = args[0]
	}

	cfg := config.DefaultConfig()
	if problem != "" {
		cfg.Problem = problem
	}
	if preset != "" {
		p := config.GetPreset(cfg.Problem, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available for %s: %v)", preset, cfg.Problem, config.ListPresets(cfg.Problem))
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if problem != "" {
			cfg.Problem = problem
		}
	}

	flags := cmd.Flags()
	setFloat := func(name string, dst *float64, v float64) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	setFloat("x0", &cfg.Initial.X, x0)
	setFloat("y0", &cfg.Initial.Y, y0)
	setFloat("vx0", &cfg.Initial.VX, vx0)
	setFloat("vy0", &cfg.Initial.VY, vy0)
	setFloat("alpha", &cfg.Weights.Alpha, alpha)
	setFloat("beta", &cfg.Weights.Beta, beta)
	setFloat("gamma", &cfg.Weights.Gamma, gamma)
	setFloat("gravity", &cfg.Weights.Gravity, gravity)
	setFloat("nu", &cfg.Weights.Nu, nu)
	setFloat("tf-guess", &cfg.Guess.TF, tfGuess)
	setFloat("costate-guess", &cfg.Guess.Costate, costate)
	if flags.Changed("costate-guess") || flags.Changed("flat-guess") {
		cfg.Guess.Flat = flatGuess || flags.Changed("costate-guess")
	}
	setFloat("tol", &cfg.Solver.Tol, tol)
	setFloat("rho", &cfg.FinalAngle.Rho, rho)
	setFloat("zeta", &cfg.FinalAngle.Zeta, zeta)
	setFloat("eps", &cfg.FinalAngle.Eps, eps)
	if flags.Changed("mesh") {
		cfg.Guess.MeshSize = meshSize
	}
	if flags.Changed("max-nodes") {
		cfg.Solver.MaxNodes = maxNodes
	}
	if flags.Changed("mode") {
		cfg.FinalAngle.Mode = angleMode
	}
	if flags.Changed("final-angle") {
		cfg.FinalAngle.On = finalAngle
	}
	if len(obstacleSpecs) > 0 {
		cfg.Obstacles = nil
		for _, spec := range obstacleSpecs {
			o, err := parseObstacle(spec)
			if err != nil {
				return nil, err
			}
			cfg.Obstacles = append(cfg.Obstacles, o)
		}
	}
	return cfg, nil
}

func parseObstacle(spec string) (config.ObstacleConfig, error) {
	parts := strings.Split(spec, ",")
	if len(parts) < 4 || len(parts) > 8 {
		return config.ObstacleConfig{}, fmt.Errorf("obstacle %q: want rx,ry,x,y[,vx,vy[,weight[,sharpness]]]", spec)
	}
	vals := []float64{0, 0, 0, 0, 0, 0, 1, 20}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return config.ObstacleConfig{}, fmt.Errorf("obstacle %q: %w", spec, err)
		}
		vals[i] = v
	}
	return config.ObstacleConfig{
		RX: vals[0], RY: vals[1], X: vals[2], Y: vals[3],
		VX: vals[4], VY: vals[5], Weight: vals[6], Sharpness: vals[7],
	}, nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	problems := config.Problems()
	if len(args) > 0 {
		problems = args[:1]
	}
	for _, problem := range problems {
		presets := config.ListPresets(problem)
		if len(presets) == 0 {
			fmt.Printf("no presets for problem: %s\n", problem)
			continue
		}
		fmt.Printf("presets for %s:\n", problem)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}
