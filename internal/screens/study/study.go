// Package study is the untimed learning screen.
package study

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/learn"
	"github.com/prawko/prawko/internal/router"
	"github.com/prawko/prawko/internal/screen"
	"github.com/prawko/prawko/internal/ui/components"
	"github.com/prawko/prawko/internal/ui/layout"
	"github.com/prawko/prawko/internal/ui/theme"
)

// Screen walks through a category's learn queue.
type Screen struct {
	learn *learn.Controller
	data  content.CategoryData

	session *learn.Session
	view    *learn.QuestionView
	answers components.AnswerList
	empty   bool
	mode    learn.Mode
	streak  int
}

var (
	_ screen.Screen          = (*Screen)(nil)
	_ screen.KeyHintProvider = (*Screen)(nil)
	_ screen.Closer          = (*Screen)(nil)
)

// New creates a study screen over data.
func New(lc *learn.Controller, data content.CategoryData) *Screen {
	return &Screen{learn: lc, data: data}
}

func (s *Screen) Init() tea.Cmd {
	s.session = s.learn.StartLearn(context.Background(), s.data)
	s.mode = s.session.Mode()
	return nil
}

func (s *Screen) Title() string {
	return "Learn · " + s.data.Category
}

func (s *Screen) Close() {
	s.learn.CleanupLearn()
}

func (s *Screen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{}
	if s.view != nil && !s.answers.Revealed() {
		hints = append(hints, layout.KeyHint{Key: "Enter", Description: "Answer"})
	}
	hints = append(hints,
		layout.KeyHint{Key: "←→", Description: "Prev/Next"},
		layout.KeyHint{Key: "M", Description: "Mode"},
		layout.KeyHint{Key: "Esc", Description: "Back"},
	)
	return hints
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case questionMsg:
		v := msg.view
		s.view = &v
		s.empty = false
		s.mode = v.Mode
		s.answers = components.NewAnswerList(v.Question)
		return s, nil

	case emptyMsg:
		s.view = nil
		s.empty = true
		s.mode = msg.mode
		return s, nil

	case highlightMsg:
		s.answers.Reveal(msg.selected, msg.correct)
		return s, nil

	case tea.WindowSizeMsg:
		s.learn.RefreshLearnQuestion()
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

func (s *Screen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if s.session == nil {
		return s, router.Pop()
	}
	switch msg.String() {
	case "right", "l", "space":
		s.session.Next()
		return s, nil
	case "left", "h":
		s.session.Prev()
		return s, nil
	case "m":
		s.mode = s.session.ToggleMode()
		return s, nil
	case "enter":
		if s.answers.Revealed() {
			s.session.Next()
			return s, nil
		}
	}

	if s.view == nil {
		return s, nil
	}
	var picked content.Answer
	s.answers, picked = s.answers.Update(msg)
	if picked != "" {
		if correct, ok := s.session.Answer(picked); ok {
			if correct {
				s.streak++
			} else {
				s.streak = 0
			}
		}
	}
	return s, nil
}

func (s *Screen) View(width, height int) string {
	if s.empty {
		text := "\n\n  Nothing to review here."
		if s.mode == learn.ModeWrong {
			text = "\n\n  No wrong answers left. Press M for the full queue."
		}
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render(text)
	}
	if s.view == nil {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading questions...")
	}

	v := s.view
	var b strings.Builder

	mode := "Adaptive"
	if v.Mode == learn.ModeWrong {
		mode = "Wrong only"
	}
	info := fmt.Sprintf("  %d/%d  ·  %s  ·  %s", v.Index+1, v.Total, mode, v.Band)
	if v.Entry.CorrectStreak > 0 {
		info += fmt.Sprintf("  ·  streak %d", v.Entry.CorrectStreak)
	}
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render(info))
	if s.streak > 1 {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Accent).Render(fmt.Sprintf("   %d in a row", s.streak)))
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(0, width-4))))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().Width(width - 4).PaddingLeft(2).Foreground(theme.Text).Bold(true).
		Render(v.Question.Text))
	b.WriteString("\n\n")
	if m := v.Question.Media; m != nil {
		b.WriteString(theme.Hint.Render(fmt.Sprintf("  [%s] %s", m.Kind, m.ID)))
		b.WriteString("\n\n")
	}
	b.WriteString(s.answers.View())
	return b.String()
}
