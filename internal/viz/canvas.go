package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
const brailleBase = 0x2800

var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set sets a pixel at (x, y) in sub-pixel coordinates. The canvas size in
// sub-pixels is (Width*2) x (Height*4); points outside are dropped.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// IsSet reports whether the sub-pixel (x, y) is lit.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBase
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Viewport maps world coordinates onto a canvas with equal scale on both
// axes, y pointing up.
type Viewport struct {
	canvas     *Canvas
	minX, minY float64
	scale      float64
}

// Fit returns a viewport showing [minX, maxX] x [minY, maxY] with a margin
// of 5% on every side.
func Fit(c *Canvas, minX, maxX, minY, maxY float64) *Viewport {
	w, h := maxX-minX, maxY-minY
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	minX -= 0.05 * w
	minY -= 0.05 * h
	w *= 1.1
	h *= 1.1

	pw, ph := float64(c.Width*2-1), float64(c.Height*4-1)
	return &Viewport{canvas: c, minX: minX, minY: minY, scale: math.Min(pw/w, ph/h)}
}

// Project converts a world point to sub-pixel coordinates.
func (v *Viewport) Project(x, y float64) (int, int) {
	px := (x - v.minX) * v.scale
	py := float64(v.canvas.Height*4-1) - (y-v.minY)*v.scale
	return int(math.Round(px)), int(math.Round(py))
}

func (v *Viewport) Point(x, y float64) {
	px, py := v.Project(x, y)
	v.canvas.Set(px, py)
}

func (v *Viewport) Line(x0, y0, x1, y1 float64) {
	ax, ay := v.Project(x0, y0)
	bx, by := v.Project(x1, y1)
	v.canvas.DrawLine(ax, ay, bx, by)
}

// Polyline joins consecutive points of xs, ys.
func (v *Viewport) Polyline(xs, ys []float64) {
	for i := 1; i < len(xs); i++ {
		v.Line(xs[i-1], ys[i-1], xs[i], ys[i])
	}
}
