// Package results shows the score of a finished exam.
package results

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/router"
	"github.com/prawko/prawko/internal/screen"
	"github.com/prawko/prawko/internal/ui/components"
	"github.com/prawko/prawko/internal/ui/layout"
	"github.com/prawko/prawko/internal/ui/theme"
)

type statsLoadedMsg struct {
	stats history.Stats
	ok    bool
}

// Screen displays one exam result with the running stats of its category.
type Screen struct {
	result  history.Result
	history *history.Store

	stats    history.Stats
	hasStats bool
}

var (
	_ screen.Screen          = (*Screen)(nil)
	_ screen.KeyHintProvider = (*Screen)(nil)
)

// New creates a results screen. hs may be nil.
func New(r history.Result, hs *history.Store) *Screen {
	return &Screen{result: r, history: hs}
}

func (s *Screen) Init() tea.Cmd {
	if s.history == nil {
		return nil
	}
	cat := s.result.Category
	return func() tea.Msg {
		st, ok := s.history.CategoryStats(context.Background(), cat)
		return statsLoadedMsg{stats: st, ok: ok}
	}
}

func (s *Screen) Title() string { return "Result" }

func (s *Screen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{{Key: "Enter", Description: "Done"}}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case statsLoadedMsg:
		s.stats, s.hasStats = msg.stats, msg.ok
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "esc", "q":
			return s, router.Pop()
		}
	}
	return s, nil
}

func (s *Screen) View(width, height int) string {
	r := s.result
	center := func(str string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, str)
	}

	var b strings.Builder
	b.WriteString("\n\n")

	verdict := lipgloss.NewStyle().Bold(true).Foreground(theme.Error).Render("FAILED")
	if r.Passed {
		verdict = lipgloss.NewStyle().Bold(true).Foreground(theme.Success).Render("PASSED")
	}
	b.WriteString(center(verdict))
	b.WriteString("\n\n")

	b.WriteString(center(theme.Title.Render(fmt.Sprintf("%d / %d", r.Score, r.MaxPoints))))
	b.WriteString("\n\n")

	frac := 0.0
	if r.MaxPoints > 0 {
		frac = float64(r.Score) / float64(r.MaxPoints)
	}
	b.WriteString(center(components.NewProgressBar("Score", frac, min(50, width-4)).WithPercent().View()))
	b.WriteString("\n\n")

	b.WriteString(center(theme.Body.Render(fmt.Sprintf("Basic %d  ·  Specialist %d", r.BasicScore, r.SpecialistScore))))
	b.WriteString("\n")
	b.WriteString(center(theme.Hint.Render(fmt.Sprintf("Category %s  ·  %s", r.Category, r.Timestamp.Local().Format("2006-01-02 15:04")))))
	b.WriteString("\n\n")

	if s.hasStats {
		b.WriteString(center(theme.Hint.Render(fmt.Sprintf("%d attempts  ·  %d passed  ·  best %d",
			s.stats.Attempts, s.stats.Passed, s.stats.BestScore))))
		b.WriteString("\n")
	}
	return b.String()
}
