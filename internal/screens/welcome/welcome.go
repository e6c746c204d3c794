// Package welcome is the splash screen: a traffic light runs red, amber,
// green and then the logo appears. Any key moves on to the category list.
package welcome

import (
	"image/color"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/router"
	"github.com/prawko/prawko/internal/screen"
	"github.com/prawko/prawko/internal/ui/theme"
)

const frameEvery = 100 * time.Millisecond

type light int

const (
	red light = iota
	amber
	green
)

// stageAt maps time since start to the lit lamp. The logo shows from
// green onwards.
var stageAt = []struct {
	from  time.Duration
	light light
}{
	{0, red},
	{300 * time.Millisecond, amber},
	{900 * time.Millisecond, green},
}

// Animation stops advancing after this long.
const settleAfter = 2 * time.Second

type frameMsg struct{}

type WelcomeScreen struct {
	next    func() screen.Screen
	elapsed time.Duration
	left    bool
}

var _ screen.Screen = (*WelcomeScreen)(nil)

// New returns a splash that replaces itself with next() on the first key.
func New(next func() screen.Screen) *WelcomeScreen {
	return &WelcomeScreen{next: next}
}

func (w *WelcomeScreen) Title() string { return "" }

func (w *WelcomeScreen) Init() tea.Cmd { return frame() }

func frame() tea.Cmd {
	return tea.Tick(frameEvery, func(time.Time) tea.Msg { return frameMsg{} })
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case frameMsg:
		if w.left || w.elapsed >= settleAfter {
			return w, nil
		}
		w.elapsed += frameEvery
		return w, frame()
	case tea.KeyPressMsg:
		if w.left {
			return w, nil
		}
		w.left = true
		return w, router.Replace(w.next())
	}
	return w, nil
}

func (w *WelcomeScreen) light() light {
	l := red
	for _, s := range stageAt {
		if w.elapsed >= s.from {
			l = s.light
		}
	}
	return l
}

var lamps = []struct {
	l     light
	color color.Color
}{
	{red, theme.Error},
	{amber, theme.Accent},
	{green, theme.Success},
}

func (w *WelcomeScreen) trafficLight() string {
	lit := w.light()
	rows := []string{"╭───╮"}
	for _, lamp := range lamps {
		glyph := lipgloss.NewStyle().Foreground(theme.Border).Render("○")
		if lamp.l == lit {
			glyph = lipgloss.NewStyle().Foreground(lamp.color).Bold(true).Render("●")
		}
		rows = append(rows, "│ "+glyph+" │")
	}
	rows = append(rows, "╰─┬─╯", "  │  ")
	return lipgloss.NewStyle().Foreground(theme.TextDim).Render(strings.Join(rows, "\n"))
}

func (w *WelcomeScreen) View(width, height int) string {
	parts := []string{w.trafficLight()}
	if w.light() == green {
		parts = append(parts,
			"",
			RenderBanner(width),
			"",
			theme.Body.Bold(true).Render("Driving theory, offline."),
			"",
			theme.Hint.Render("press any key to continue"),
		)
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, parts...))
}
