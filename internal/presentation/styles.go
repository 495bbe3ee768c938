package presentation

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette colors, adaptive to the terminal background.
var (
	ColorValid   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#73F59F"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF8787"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FECA57"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#8C8C8C"}
)

// styles are bound to one renderer so color detection follows the output writer.
type styles struct {
	valid   lipgloss.Style
	invalid lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
	header  lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
}

func newStyles(w io.Writer, noColor bool) styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		valid:   r.NewStyle().Foreground(ColorValid).Bold(true),
		invalid: r.NewStyle().Foreground(ColorError).Bold(true),
		warning: r.NewStyle().Foreground(ColorWarning),
		muted:   r.NewStyle().Foreground(ColorMuted),
		header:  r.NewStyle().Bold(true),
		added:   r.NewStyle().Foreground(ColorError),
		removed: r.NewStyle().Foreground(ColorValid),
	}
}
