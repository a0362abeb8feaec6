package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/lander"
)

const (
	ProblemBaseline   = "baseline"
	ProblemFinalAngle = "final_angle"
	ProblemObstacles  = "obstacles"

	DefaultTol        = 1e-3
	DefaultMaxNodes   = 30000
	DefaultIntegrator = "rk4"
	DefaultReplayDt   = 0.005
)

type Config struct {
	Problem    string                   `yaml:"problem" json:"problem"`
	Initial    lander.InitialConditions `yaml:"initial" json:"initial"`
	Weights    lander.Weights           `yaml:"weights" json:"weights"`
	Guess      lander.Guess             `yaml:"guess" json:"guess"`
	Solver     SolverConfig             `yaml:"solver" json:"solver"`
	FinalAngle FinalAngleConfig         `yaml:"final_angle" json:"final_angle"`
	Obstacles  []ObstacleConfig         `yaml:"obstacles" json:"obstacles"`
	Replay     ReplayConfig             `yaml:"replay" json:"replay"`
}

type SolverConfig struct {
	Tol      float64 `yaml:"tol" json:"tol"`
	MaxNodes int     `yaml:"max_nodes" json:"max_nodes"`
}

type FinalAngleConfig struct {
	On   bool    `yaml:"on" json:"on"`
	Mode string  `yaml:"mode" json:"mode"`
	Rho  float64 `yaml:"rho" json:"rho"`
	Zeta float64 `yaml:"zeta" json:"zeta"`
	Eps  float64 `yaml:"eps" json:"eps"`
}

// ObstacleConfig is an obstacle moving at constant velocity from (X, Y).
type ObstacleConfig struct {
	RX        float64 `yaml:"rx" json:"rx"`
	RY        float64 `yaml:"ry" json:"ry"`
	X         float64 `yaml:"x" json:"x"`
	Y         float64 `yaml:"y" json:"y"`
	VX        float64 `yaml:"vx" json:"vx"`
	VY        float64 `yaml:"vy" json:"vy"`
	Weight    float64 `yaml:"weight" json:"weight"`
	Sharpness float64 `yaml:"sharpness" json:"sharpness"`
}

type ReplayConfig struct {
	Integrator string  `yaml:"integrator" json:"integrator"`
	Dt         float64 `yaml:"dt" json:"dt"`
}

func DefaultConfig() *Config {
	fa := lander.DefaultFinalAngle()
	return &Config{
		Problem: ProblemBaseline,
		Initial: lander.InitialConditions{X: 5, Y: 10, VX: 1},
		Weights: lander.DefaultWeights(),
		Guess:   lander.DefaultGuess(),
		Solver: SolverConfig{
			Tol:      DefaultTol,
			MaxNodes: DefaultMaxNodes,
		},
		FinalAngle: FinalAngleConfig{
			Mode: fa.Mode.String(),
			Rho:  fa.Rho,
			Zeta: fa.Zeta,
			Eps:  fa.Eps,
		},
		Replay: ReplayConfig{
			Integrator: DefaultIntegrator,
			Dt:         DefaultReplayDt,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy so presets are never mutated by callers.
func (c *Config) Clone() *Config {
	out := *c
	out.Obstacles = append([]ObstacleConfig(nil), c.Obstacles...)
	return &out
}

func (o ObstacleConfig) Obstacle() lander.Obstacle {
	sharp := o.Sharpness
	if sharp == 0 {
		sharp = 20
	}
	return lander.Obstacle{
		RX:        o.RX,
		RY:        o.RY,
		Center:    lander.LinearPath{X0: o.X, Y0: o.Y, VX: o.VX, VY: o.VY},
		Weight:    o.Weight,
		Sharpness: sharp,
	}
}

func (f FinalAngleConfig) FinalAngle() (lander.FinalAngle, error) {
	mode, err := lander.ParseFinalAngleMode(f.Mode)
	if err != nil {
		return lander.FinalAngle{}, err
	}
	return lander.FinalAngle{Mode: mode, Rho: f.Rho, Zeta: f.Zeta, Eps: f.Eps}, nil
}

// Formulation builds the problem the config describes. Obstacles are only
// used by the obstacles problem and the final angle term only when on.
func (c *Config) Formulation() (lander.Formulation, error) {
	f := lander.Formulation{Weights: c.Weights, Initial: c.Initial}
	switch c.Problem {
	case ProblemBaseline, "":
	case ProblemFinalAngle:
		if c.FinalAngle.On {
			angle, err := c.FinalAngle.FinalAngle()
			if err != nil {
				return f, err
			}
			f.Terms = append(f.Terms, angle)
		}
	case ProblemObstacles:
		if len(c.Obstacles) == 0 {
			return f, dynamo.InvalidInputf("obstacles problem needs at least one obstacle")
		}
		for _, o := range c.Obstacles {
			f.Terms = append(f.Terms, o.Obstacle())
		}
	default:
		return f, dynamo.InvalidInputf("unknown problem %q", c.Problem)
	}
	return f, f.Validate()
}

func (c *Config) Options() lander.Options {
	return lander.Options{
		Guess:    c.Guess,
		Tol:      c.Solver.Tol,
		MaxNodes: c.Solver.MaxNodes,
	}
}
