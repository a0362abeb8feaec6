package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/moonlander/internal/lander"
)

const (
	canvasWidth  = 60
	canvasHeight = 20
	fps          = 30
	// scrubFrames is the number of [ ] presses from t = 0 to touchdown.
	scrubFrames = 100
	graphPoints = 60
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg { return TickMsg(t) })
}

type Options struct {
	// Speed is simulated seconds per wall-clock second.
	Speed float64
	Theme string
	Title string
}

// Replay plays a solved trajectory back in physical time.
type Replay struct {
	tr        *lander.Trajectory
	obstacles []lander.Obstacle
	canvas    *Canvas
	view      *Viewport
	peak      float64
	t, speed  float64
	running   bool
	showHelp  bool
	theme     Theme
	st        styles
	title     string
}

func NewReplay(tr *lander.Trajectory, opts Options) *Replay {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	r := &Replay{
		tr:        tr,
		obstacles: tr.Formulation().Obstacles(),
		canvas:    NewCanvas(canvasWidth, canvasHeight),
		speed:     opts.Speed,
		running:   true,
		theme:     GetTheme(opts.Theme),
		title:     opts.Title,
	}
	r.st = newStyles(r.theme)
	for _, v := range tr.Thrust {
		r.peak = math.Max(r.peak, v)
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := 0.0, 0.0
	grow := func(xs, ys []float64) {
		for i := range xs {
			minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
			minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
		}
	}
	grow(tr.X, tr.Y)
	for _, o := range r.obstacles {
		grow(o.Outline(0, 24))
		grow(o.Outline(tr.TF, 24))
	}
	r.view = Fit(r.canvas, minX, maxX, minY, maxY)
	r.draw()
	return r
}

// Run blocks until the user quits the replay.
func Run(tr *lander.Trajectory, opts Options) error {
	_, err := tea.NewProgram(NewReplay(tr, opts), tea.WithAltScreen()).Run()
	return err
}

func (r *Replay) Init() tea.Cmd {
	return tick()
}

func (r *Replay) Time() float64 { return r.t }

func (r *Replay) Done() bool { return r.t >= r.tr.TF }

func (r *Replay) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return r, tea.Quit
		case " ":
			if r.Done() {
				r.t = 0
			}
			r.running = !r.running
		case "r":
			r.t, r.running = 0, true
		case "+", "=":
			r.speed *= 2
		case "-", "_":
			r.speed = math.Max(r.speed/2, 1.0/64)
		case "[":
			r.scrub(-1)
		case "]":
			r.scrub(1)
		case "t":
			r.theme = r.theme.next()
			r.st = newStyles(r.theme)
		case "?":
			r.showHelp = !r.showHelp
		}
		r.draw()
	case TickMsg:
		if r.running {
			r.advance(r.speed / fps)
		}
		r.draw()
		return r, tick()
	}
	return r, nil
}

func (r *Replay) advance(dt float64) {
	r.t = math.Min(r.t+dt, r.tr.TF)
	if r.Done() {
		r.running = false
	}
}

// scrub pauses playback and moves one frame in dir.
func (r *Replay) scrub(dir int) {
	r.running = false
	r.t = math.Max(0, math.Min(r.t+float64(dir)*r.tr.TF/scrubFrames, r.tr.TF))
}

func (r *Replay) draw() {
	r.canvas.Clear()
	tr, v := r.tr, r.view

	v.Line(v.minX, 0, v.minX+float64(r.canvas.Width*2)/v.scale, 0)
	for _, o := range r.obstacles {
		v.Polyline(o.Outline(r.t, 32))
	}

	// planned path dotted, flown part solid
	for i := 0; i < tr.Len(); i += 4 {
		v.Point(tr.X[i], tr.Y[i])
	}
	x, u := tr.At(r.t)
	px, py := tr.X[0], tr.Y[0]
	for i := 1; i < tr.Len() && tr.T[i] <= r.t; i++ {
		v.Line(px, py, tr.X[i], tr.Y[i])
		px, py = tr.X[i], tr.Y[i]
	}
	v.Line(px, py, x[0], x[1])
	r.drawLander(x[0], x[1], u[0], u[1])
}

// drawLander draws the body tilted along the thrust axis and a flame whose
// length follows the thrust magnitude.
func (r *Replay) drawLander(x, y, ux, uy float64) {
	v := r.view
	size := 6 / v.scale
	theta := lander.ThrustAngle(ux, uy)
	ax, ay := -math.Sin(theta), math.Cos(theta)
	nx, ny := ay, -ax

	v.Line(x-nx*size, y-ny*size, x+nx*size, y+ny*size)
	v.Line(x-nx*size, y-ny*size, x+ax*size, y+ay*size)
	v.Line(x+nx*size, y+ny*size, x+ax*size, y+ay*size)

	if r.peak > 0 {
		flame := 2 * size * math.Hypot(ux, uy) / r.peak
		v.Line(x, y, x-ax*flame, y-ay*flame)
	}
}

func (r *Replay) status() string {
	switch {
	case r.Done():
		return r.st.touchdown.Render("TOUCHDOWN")
	case r.running:
		return r.st.status.Render(fmt.Sprintf("PLAYING x%g", r.speed))
	default:
		return r.st.status.Render("PAUSED")
	}
}

// history returns altitude samples from t = 0 to the playback time.
func (r *Replay) history() []float64 {
	n := graphPoints
	out := make([]float64, n)
	for i := range out {
		x, _ := r.tr.At(r.t * float64(i) / float64(n-1))
		out[i] = x[1]
	}
	return out
}

func (r *Replay) View() string {
	x, u := r.tr.At(r.t)
	st := r.st

	var s strings.Builder
	title := "MOONLANDER"
	if r.title != "" {
		title += " · " + strings.ToUpper(r.title)
	}
	s.WriteString(st.header.Render(title) + "\n")
	s.WriteString(r.status() + "\n\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("time", fmt.Sprintf("%.2f / %.2f s", r.t, r.tr.TF))
	row("position", fmt.Sprintf("(%.2f, %.2f)", x[0], x[1]))
	row("velocity", fmt.Sprintf("(%.2f, %.2f)", x[2], x[3]))
	row("thrust", fmt.Sprintf("%.3f", math.Hypot(u[0], u[1])))
	row("angle", fmt.Sprintf("%.1f°", lander.ThrustAngle(u[0], u[1])*180/math.Pi))
	s.WriteString(ProgressBar(r.t/r.tr.TF, 30) + "\n")
	s.WriteString(st.label.Render("thrust") + Sparkline(r.tr.Thrust, 28) + "\n")

	if r.t > 0 {
		chart := asciigraph.Plot(r.history(), asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("altitude"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}
	if len(r.obstacles) > 0 {
		s.WriteString(st.obstacle.Render(fmt.Sprintf("%d obstacle(s)", len(r.obstacles))) + "\n")
	}
	s.WriteString(st.help.Render("SP:Pause R:Restart Q:Quit\n+/-:Speed [ ]:Step T:Theme ?:Help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, st.canvas.Render(r.canvas.String()), st.stats.Render(s.String()))
	if r.showHelp {
		return `
╔════════════════════════════════════╗
║         KEYBOARD SHORTCUTS         ║
╠════════════════════════════════════╣
║  Space  - Pause/Resume playback    ║
║  R      - Restart from t = 0       ║
║  + / -  - Double/halve speed       ║
║  [ / ]  - Step one frame           ║
║  T      - Cycle themes             ║
║  Q      - Quit                     ║
║  ?      - Toggle this help         ║
╚════════════════════════════════════╝
` + "\n" + main
	}
	return main
}
