package sweep

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/moonlander/internal/config"
	"github.com/san-kum/moonlander/internal/dynamo"
)

// setters maps sweepable parameter names to the config field they set.
var setters = map[string]func(c *config.Config, v float64){
	"alpha":   func(c *config.Config, v float64) { c.Weights.Alpha = v },
	"beta":    func(c *config.Config, v float64) { c.Weights.Beta = v },
	"gamma":   func(c *config.Config, v float64) { c.Weights.Gamma = v },
	"gravity": func(c *config.Config, v float64) { c.Weights.Gravity = v },
	"nu":      func(c *config.Config, v float64) { c.Weights.Nu = v },
	"x0":      func(c *config.Config, v float64) { c.Initial.X = v },
	"y0":      func(c *config.Config, v float64) { c.Initial.Y = v },
	"vx0":     func(c *config.Config, v float64) { c.Initial.VX = v },
	"vy0":     func(c *config.Config, v float64) { c.Initial.VY = v },
	"rho":     func(c *config.Config, v float64) { c.FinalAngle.Rho = v },
	"zeta":    func(c *config.Config, v float64) { c.FinalAngle.Zeta = v },
	"eps":     func(c *config.Config, v float64) { c.FinalAngle.Eps = v },
}

// Params lists the parameter names a grid may vary.
func Params() []string {
	names := make([]string, 0, len(setters))
	for k := range setters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Apply writes params into a copy of base.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := base.Clone()
	for name, v := range params {
		set, ok := setters[name]
		if !ok {
			return nil, dynamo.InvalidInputf("unknown sweep parameter %q", name)
		}
		set(cfg, v)
	}
	return cfg, nil
}

// Grid is the cartesian product of per-parameter value lists.
type Grid struct {
	paramNames []string
	ranges     [][]float64
}

func NewGrid(params []string, ranges [][]float64) (*Grid, error) {
	if len(params) != len(ranges) {
		return nil, dynamo.InvalidInputf("%d parameters but %d ranges", len(params), len(ranges))
	}
	seen := make(map[string]bool, len(params))
	for i, name := range params {
		if _, ok := setters[name]; !ok {
			return nil, dynamo.InvalidInputf("unknown sweep parameter %q", name)
		}
		if seen[name] {
			return nil, dynamo.InvalidInputf("parameter %q given twice", name)
		}
		seen[name] = true
		if len(ranges[i]) == 0 {
			return nil, dynamo.InvalidInputf("parameter %q has no values", name)
		}
	}
	return &Grid{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *Grid) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Points enumerates the grid with the last parameter varying fastest.
func (g *Grid) Points() []map[string]float64 {
	out := make([]map[string]float64, 0, g.Size())
	g.collect(0, make(map[string]float64, len(g.paramNames)), &out)
	return out
}

func (g *Grid) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		point := make(map[string]float64, len(current))
		for k, v := range current {
			point[k] = v
		}
		*out = append(*out, point)
		return
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.collect(depth+1, current, out)
	}
}

// ParseAxis parses "name=a,b,c" or "name=lo:hi:n" (n evenly spaced values).
func ParseAxis(s string) (string, []float64, error) {
	name, spec, ok := strings.Cut(s, "=")
	if !ok || name == "" || spec == "" {
		return "", nil, dynamo.InvalidInputf("sweep axis %q is not name=values", s)
	}
	name = strings.TrimSpace(name)

	if parts := strings.Split(spec, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || n < 2 {
			return "", nil, dynamo.InvalidInputf("sweep axis %q: want lo:hi:n with n >= 2", s)
		}
		return name, floats.Span(make([]float64, n), lo, hi), nil
	}

	var values []float64
	for _, p := range strings.Split(spec, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("sweep axis %q: %w", s, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}
