package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/moonlander/internal/lander"
)

// outlinePoints is the number of segments used for obstacle ellipses.
const outlinePoints = 48

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b *bounds) add(xs, ys []float64) {
	for i := range xs {
		b.minX = math.Min(b.minX, xs[i])
		b.maxX = math.Max(b.maxX, xs[i])
		b.minY = math.Min(b.minY, ys[i])
		b.maxY = math.Max(b.maxY, ys[i])
	}
}

// pad widens the box by 10% on every side and keeps it non-degenerate.
func (b *bounds) pad() {
	rangeX := b.maxX - b.minX
	rangeY := b.maxY - b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.1
	b.maxX += rangeX * 0.1
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
}

// TrajectoryToSVG draws the descent path in the x-y plane together with the
// ground line and every obstacle outline at t = 0 (dashed) and at touchdown.
func TrajectoryToSVG(tr *lander.Trajectory, width, height int, strokeColor string) string {
	if tr == nil || tr.Len() < 2 {
		return ""
	}

	obstacles := tr.Formulation().Obstacles()
	type outline struct {
		xs, ys []float64
		dashed bool
	}
	var outlines []outline
	for _, o := range obstacles {
		xs, ys := o.Outline(0, outlinePoints)
		outlines = append(outlines, outline{xs, ys, true})
		xs, ys = o.Outline(tr.TF, outlinePoints)
		outlines = append(outlines, outline{xs, ys, false})
	}

	b := bounds{minX: math.Inf(1), maxX: math.Inf(-1), minY: 0, maxY: 0}
	b.add(tr.X, tr.Y)
	for _, o := range outlines {
		b.add(o.xs, o.ys)
	}
	b.pad()

	sx := func(x float64) float64 { return (x - b.minX) / (b.maxX - b.minX) * float64(width) }
	sy := func(y float64) float64 { return float64(height) - (y-b.minY)/(b.maxY-b.minY)*float64(height) }
	path := func(xs, ys []float64) string {
		var sb strings.Builder
		for i := range xs {
			if i == 0 {
				fmt.Fprintf(&sb, "M%.1f,%.1f", sx(xs[i]), sy(ys[i]))
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", sx(xs[i]), sy(ys[i]))
			}
		}
		return sb.String()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#666666" stroke-width="1"/>
`, width, height, width, height, sy(0), width, sy(0))

	for _, o := range outlines {
		dash := ""
		if o.dashed {
			dash = ` stroke-dasharray="4 3"`
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="#ff5555" stroke-width="1"%s d="%s"/>
`, dash, path(o.xs, o.ys))
	}

	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="%s"/>
`, strokeColor, path(tr.X, tr.Y))

	n := tr.Len() - 1
	fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>
`, sx(tr.X[n]), sy(tr.Y[n]), strokeColor)

	sb.WriteString("</svg>")
	return sb.String()
}
