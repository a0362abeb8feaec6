package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	canvas, stats, header, label, value, graph, help, status lipgloss.Style
	obstacle, touchdown                                      lipgloss.Style
}

func newStyles(th Theme) styles {
	return styles{
		canvas:    lipgloss.NewStyle().Padding(1, 2).Foreground(th.Primary),
		stats:     lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(th.Muted).Padding(1, 2).Width(42),
		header:    lipgloss.NewStyle().Foreground(th.Accent).Bold(true).MarginBottom(1),
		label:     lipgloss.NewStyle().Foreground(th.Muted).Width(10),
		value:     lipgloss.NewStyle().Foreground(th.Primary),
		graph:     lipgloss.NewStyle().Foreground(th.Accent).Padding(1, 0),
		help:      lipgloss.NewStyle().Foreground(th.Muted).MarginTop(1),
		status:    lipgloss.NewStyle().Bold(true).Foreground(th.Warning),
		obstacle:  lipgloss.NewStyle().Foreground(th.Obstacle),
		touchdown: lipgloss.NewStyle().Bold(true).Foreground(th.Success),
	}
}

// ProgressBar renders fraction in [0, 1] as a bar of the given width.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Sparkline renders values sampled down to width characters.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		j := i * (len(values) - 1) / max(width-1, 1)
		idx := int((values[j] - lo) / rng * float64(len(chars)-1))
		b.WriteRune(chars[max(0, min(idx, len(chars)-1))])
	}
	return b.String()
}
