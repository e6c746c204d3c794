package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/ui/theme"
)

// ProgressBar is a one-line gauge: label, bar, then an optional suffix.
type ProgressBar struct {
	Label    string
	Fraction float64
	Suffix   string
	Width    int
	// warnBelow switches the filled part to the error colour once
	// Fraction drops under it.
	warnBelow float64
}

// NewProgressBar builds a bar whose label, bar and suffix fit in width.
func NewProgressBar(label string, fraction float64, width int) ProgressBar {
	return ProgressBar{Label: label, Fraction: min(1, max(0, fraction)), Width: width}
}

// WithPercent shows the fraction as a percentage after the bar.
func (p ProgressBar) WithPercent() ProgressBar {
	p.Suffix = fmt.Sprintf("%d%%", int(p.Fraction*100))
	return p
}

// WarnBelow highlights the bar once the fraction falls under f. Used for
// countdowns.
func (p ProgressBar) WarnBelow(f float64) ProgressBar {
	p.warnBelow = f
	return p
}

func (p ProgressBar) View() string {
	var label, suffix string
	if p.Label != "" {
		label = theme.Body.Render(p.Label) + "  "
	}
	if p.Suffix != "" {
		suffix = "  " + lipgloss.NewStyle().Foreground(theme.TextDim).Render(p.Suffix)
	}

	cells := max(4, p.Width-lipgloss.Width(label)-lipgloss.Width(suffix))
	filled := int(float64(cells)*p.Fraction + 0.5)

	fill := theme.ProgressFilled
	if p.warnBelow > 0 && p.Fraction < p.warnBelow {
		fill = fill.Background(theme.Error)
	}
	return label +
		fill.Render(strings.Repeat(" ", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat(" ", cells-filled)) +
		suffix
}
