// Package layout draws the chrome around the active screen: a title bar,
// the screen body and a row of key hints.
package layout

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/ui/theme"
)

const (
	MinWidth  = 80
	MinHeight = 24

	// Screens drop secondary columns below this width.
	CompactWidthThreshold = 100
)

// KeyHint is one "key description" pair in the hint row.
type KeyHint struct {
	Key         string
	Description string
}

func IsCompactWidth(width int) bool { return width < CompactWidthThreshold }

func IsTooSmall(width, height int) bool { return width < MinWidth || height < MinHeight }

// Frame is everything drawn around a screen body.
type Frame struct {
	Title  string
	Status string
	Hints  []KeyHint
}

var (
	barStyle = lipgloss.NewStyle().
			Background(theme.BgCard).
			Padding(0, 1)
	brandStyle  = lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(theme.Accent)
	hintKey     = lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
	hintDesc    = lipgloss.NewStyle().Foreground(theme.TextDim)
)

// BodyHeight is the number of rows left for the screen body.
func (f Frame) BodyHeight(height int) int {
	return max(0, height-lipgloss.Height(f.top(80))-lipgloss.Height(f.bottom(80)))
}

// Render draws the frame around body, padding the body to fill the
// terminal.
func (f Frame) Render(body string, width, height int) string {
	top, bottom := f.top(width), f.bottom(width)
	rows := max(0, height-lipgloss.Height(top)-lipgloss.Height(bottom))
	middle := lipgloss.NewStyle().Width(width).Height(rows).MaxHeight(rows).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, top, middle, bottom)
}

// top is brand on the left, title centred and status on the right.
func (f Frame) top(width int) string {
	inner := max(0, width-2)
	brand := brandStyle.Render("prawko")
	status := statusStyle.Render(f.Status)
	title := lipgloss.PlaceHorizontal(
		max(0, inner-lipgloss.Width(brand)-lipgloss.Width(status)),
		lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.Text).Render(f.Title),
	)
	line := brand + title + status
	return barStyle.Width(width).Render(line) + "\n" +
		lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", width))
}

func (f Frame) bottom(width int) string {
	parts := make([]string, len(f.Hints))
	for i, h := range f.Hints {
		parts[i] = hintKey.Render(h.Key) + " " + hintDesc.Render(h.Description)
	}
	return lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", width)) + "\n" +
		barStyle.Width(width).Render(strings.Join(parts, "  ·  "))
}

// TooSmall is shown instead of the frame when the terminal is below
// MinWidth x MinHeight.
func TooSmall(width, height int) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.Accent).Align(lipgloss.Center).Render(fmt.Sprintf(
			"Window too small (%dx%d)\nprawko needs at least %dx%d",
			width, height, MinWidth, MinHeight,
		)))
}
