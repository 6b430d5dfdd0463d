package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// styles colors text output. The renderer is bound to the destination
// writer, so output that is not a terminal stays plain.
type styles struct {
	header  lipgloss.Style
	current lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		current: r.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("46")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("226")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("196")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("242")),
	}
}

// pad truncates s to width display cells and pads it to exactly width.
// Branch names may contain wide characters, which fmt's %-Ns miscounts.
func pad(s string, width int) string {
	return runewidth.FillRight(truncate(s, width), width)
}

// truncate shortens s to max display cells, marking the cut with "~".
func truncate(s string, max int) string {
	return runewidth.Truncate(s, max, "~")
}
