package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorError   = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#F25D94"}
)

// styles are bound to the REPL's writer so piped output stays plain.
type styles struct {
	banner lipgloss.Style
	prompt lipgloss.Style
	dim    lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		banner: r.NewStyle().Bold(true).Foreground(colorPrimary),
		prompt: r.NewStyle().Bold(true).Foreground(colorPrimary),
		dim:    r.NewStyle().Foreground(colorDim),
		ok:     r.NewStyle().Foreground(colorGreen),
		err:    r.NewStyle().Foreground(colorError),
	}
}
