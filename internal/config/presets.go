package config

import (
	"sort"

	"github.com/san-kum/moonlander/internal/lander"
)

var (
	demoStart = lander.InitialConditions{X: 5, Y: 10, VX: 1}
	demoGuess = lander.DefaultGuess()
)

var Presets = map[string]map[string]*Config{
	ProblemBaseline: {
		"demo": {
			Problem: ProblemBaseline, Initial: demoStart, Weights: lander.DefaultWeights(), Guess: demoGuess,
		},
		"high": {
			Problem: ProblemBaseline, Initial: lander.InitialConditions{X: 0, Y: 40, VX: 3},
			Weights: lander.DefaultWeights(), Guess: demoGuess,
		},
		"soft_ground": {
			Problem: ProblemBaseline, Initial: demoStart, Guess: demoGuess,
			Weights: lander.Weights{Alpha: 10, Beta: 25, Gamma: 3, Gravity: 2, Nu: 5},
		},
	},
	ProblemFinalAngle: {
		"barrier": {
			Problem: ProblemFinalAngle, Initial: demoStart, Weights: lander.DefaultWeights(), Guess: demoGuess,
			FinalAngle: FinalAngleConfig{On: true, Mode: "barrier", Rho: 1},
		},
		"tight_barrier": {
			Problem: ProblemFinalAngle, Initial: demoStart, Weights: lander.DefaultWeights(), Guess: demoGuess,
			FinalAngle: FinalAngleConfig{On: true, Mode: "barrier", Rho: 0.01},
		},
		"step": {
			Problem: ProblemFinalAngle, Initial: demoStart, Weights: lander.DefaultWeights(), Guess: demoGuess,
			FinalAngle: FinalAngleConfig{On: true, Mode: "step", Zeta: 10, Eps: 1},
		},
	},
	ProblemObstacles: {
		"rock": {
			Problem: ProblemObstacles, Initial: demoStart, Weights: lander.DefaultWeights(), Guess: demoGuess,
			Obstacles: []ObstacleConfig{{RX: 1, RY: 1, X: 6.5, Y: 5, Weight: 1, Sharpness: 1}},
		},
		"convoy": {
			Problem: ProblemObstacles, Initial: lander.InitialConditions{X: 0, Y: 10, VX: 2},
			Weights: lander.DefaultWeights(), Guess: demoGuess,
			Obstacles: []ObstacleConfig{
				{RX: 1, RY: 0.5, X: -2, Y: 6, VX: 1, Weight: 10, Sharpness: 2},
				{RX: 1, RY: 0.5, X: 12, Y: 3, VX: -1, Weight: 10, Sharpness: 2},
			},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(problem, preset string) *Config {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	cfg, ok := problemPresets[preset]
	if !ok {
		return nil
	}
	out := cfg.Clone()
	out.Solver = SolverConfig{Tol: DefaultTol, MaxNodes: DefaultMaxNodes}
	out.Replay = ReplayConfig{Integrator: DefaultIntegrator, Dt: DefaultReplayDt}
	return out
}

func ListPresets(problem string) []string {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(problemPresets))
	for name := range problemPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Problems() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
