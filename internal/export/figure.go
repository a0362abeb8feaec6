package export

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/moonlander/internal/lander"
)

// DPI of the rendered PNG figures.
const DPI = 150

var (
	lineColor     = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	obstacleColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	groundColor   = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
)

// panel is one time series of the summary figure.
type panel struct {
	title, ylabel string
	values        func(tr *lander.Trajectory) []float64
}

var panels = []panel{
	{"x position", "position (m)", func(tr *lander.Trajectory) []float64 { return tr.X }},
	{"y position", "position (m)", func(tr *lander.Trajectory) []float64 { return tr.Y }},
	{"velocity vx", "velocity (m/s)", func(tr *lander.Trajectory) []float64 { return tr.VX }},
	{"velocity vy", "velocity (m/s)", func(tr *lander.Trajectory) []float64 { return tr.VY }},
	{"control ux", "acceleration (m/s²)", func(tr *lander.Trajectory) []float64 { return tr.UX }},
	{"control uy", "acceleration (m/s²)", func(tr *lander.Trajectory) []float64 { return tr.UY }},
	{"lander angle", "angle (rad)", func(tr *lander.Trajectory) []float64 { return tr.Angle }},
	{"thrust magnitude", "acceleration (m/s²)", func(tr *lander.Trajectory) []float64 { return tr.Thrust }},
}

// limitedTicker produces at most maxLabels evenly spaced ticks.
func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(12)
	p.Title.Padding = vg.Points(6)
	p.X.Label.TextStyle.Font.Size = vg.Points(10)
	p.Y.Label.TextStyle.Font.Size = vg.Points(10)
	p.X.LineStyle.Width = vg.Points(1.2)
	p.Y.LineStyle.Width = vg.Points(1.2)
	p.X.Tick.Label.Font.Size = vg.Points(8)
	p.Y.Tick.Label.Font.Size = vg.Points(8)
	p.X.Tick.Marker = limitedTicker(6, "%.1f")
	p.Y.Tick.Marker = limitedTicker(6, "%.2f")
}

func xys(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts
}

func addLine(p *plot.Plot, pts plotter.XYs, c color.Color, width vg.Length, dashed bool) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Color = c
	line.LineStyle.Width = width
	if dashed {
		line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}
	p.Add(line)
	return nil
}

// Panels builds the eight time series plots against physical time.
func Panels(tr *lander.Trajectory) ([]*plot.Plot, error) {
	plots := make([]*plot.Plot, 0, len(panels))
	for _, pn := range panels {
		p := plot.New()
		p.Title.Text = pn.title
		p.X.Label.Text = "time (s)"
		p.Y.Label.Text = pn.ylabel
		stylePlot(p)
		if err := addLine(p, xys(tr.T, pn.values(tr)), lineColor, vg.Points(1.5), false); err != nil {
			return nil, fmt.Errorf("export: %s: %w", pn.title, err)
		}
		plots = append(plots, p)
	}
	return plots, nil
}

// TrajectoryPlot draws the path in the x-y plane with the ground and the
// obstacle outlines at t = 0 (dashed) and at touchdown.
func TrajectoryPlot(tr *lander.Trajectory) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("lander trajectory, tf = %.3f s", tr.TF)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	stylePlot(p)

	lo, hi := tr.X[0], tr.X[0]
	for _, x := range tr.X {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	if err := addLine(p, xys([]float64{lo - 1, hi + 1}, []float64{0, 0}), groundColor, vg.Points(1), false); err != nil {
		return nil, err
	}
	for _, o := range tr.Formulation().Obstacles() {
		xs, ys := o.Outline(0, outlinePoints)
		if err := addLine(p, xys(xs, ys), obstacleColor, vg.Points(1), true); err != nil {
			return nil, err
		}
		xs, ys = o.Outline(tr.TF, outlinePoints)
		if err := addLine(p, xys(xs, ys), obstacleColor, vg.Points(1), false); err != nil {
			return nil, err
		}
	}
	if err := addLine(p, xys(tr.X, tr.Y), lineColor, vg.Points(2), false); err != nil {
		return nil, err
	}

	touch, err := plotter.NewScatter(xys(tr.X[tr.Len()-1:], tr.Y[tr.Len()-1:]))
	if err != nil {
		return nil, err
	}
	touch.GlyphStyle.Color = lineColor
	touch.GlyphStyle.Shape = draw.CircleGlyph{}
	touch.GlyphStyle.Radius = vg.Points(3)
	p.Add(touch)
	return p, nil
}

func writePNG(w io.Writer, c *vgimg.Canvas) error {
	bw := bufio.NewWriter(w)
	png := vgimg.PngCanvas{Canvas: c}
	if _, err := png.WriteTo(bw); err != nil {
		return fmt.Errorf("export: write png: %w", err)
	}
	return bw.Flush()
}

// WriteFigure renders the summary figure, the eight panels on a 4x2 grid,
// as PNG. widthIn and heightIn are in inches.
func WriteFigure(w io.Writer, tr *lander.Trajectory, widthIn, heightIn float64) error {
	if tr == nil || tr.Len() < 2 {
		return fmt.Errorf("export: trajectory too short to plot")
	}
	plots, err := Panels(tr)
	if err != nil {
		return err
	}

	const rows, cols = 4, 2
	grid := make([][]*plot.Plot, rows)
	for r := range grid {
		grid[r] = plots[r*cols : (r+1)*cols]
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(DPI),
	)
	dc := draw.New(c)
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(grid, tiles, dc)
	for r := range grid {
		for col := range grid[r] {
			grid[r][col].Draw(canvases[r][col])
		}
	}
	return writePNG(w, c)
}

// WriteTrajectory renders TrajectoryPlot as PNG.
func WriteTrajectory(w io.Writer, tr *lander.Trajectory, widthIn, heightIn float64) error {
	if tr == nil || tr.Len() < 2 {
		return fmt.Errorf("export: trajectory too short to plot")
	}
	p, err := TrajectoryPlot(tr)
	if err != nil {
		return err
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(DPI),
	)
	p.Draw(draw.New(c))
	return writePNG(w, c)
}

// SaveFigure writes the summary figure to <dir>/<name>.png and the x-y
// trajectory to <dir>/<name>_trajectory.png.
func SaveFigure(tr *lander.Trajectory, dir, name string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{filepath.Join(dir, name+".png"), func(w io.Writer) error { return WriteFigure(w, tr, 10, 14) }},
		{filepath.Join(dir, name+"_trajectory.png"), func(w io.Writer) error { return WriteTrajectory(w, tr, 8, 6) }},
	}

	paths := make([]string, 0, len(outputs))
	for _, out := range outputs {
		f, err := os.Create(out.path)
		if err != nil {
			return paths, fmt.Errorf("export: %w", err)
		}
		err = out.write(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, out.path)
	}
	return paths, nil
}
