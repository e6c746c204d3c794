// Package quiz is the timed exam screen.
package quiz

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/exam"
	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/router"
	"github.com/prawko/prawko/internal/screen"
	"github.com/prawko/prawko/internal/screens/results"
	"github.com/prawko/prawko/internal/timer"
	"github.com/prawko/prawko/internal/ui/components"
	"github.com/prawko/prawko/internal/ui/layout"
	"github.com/prawko/prawko/internal/ui/theme"
)

// Deps are shared by every exam screen.
type Deps struct {
	Exams   *exam.Controller
	Meta    *content.Meta
	History *history.Store
	Log     zerolog.Logger
}

// Screen runs one exam.
type Screen struct {
	deps Deps
	data content.CategoryData

	session *exam.Session
	errMsg  string
	done    bool

	view     *exam.QuestionView
	answers  components.AnswerList
	timers   exam.TimerView
	confirm  *components.Confirm
	onOK     func()
	onCancel func()
}

var (
	_ screen.Screen          = (*Screen)(nil)
	_ screen.KeyHintProvider = (*Screen)(nil)
	_ screen.BackHandler     = (*Screen)(nil)
	_ screen.Closer          = (*Screen)(nil)
)

// New creates an exam screen over data. The exam starts on Init.
func New(deps Deps, data content.CategoryData) *Screen {
	return &Screen{deps: deps, data: data}
}

func (s *Screen) Init() tea.Cmd {
	sess, err := s.deps.Exams.StartExam(context.Background(), s.data, s.deps.Meta)
	if err != nil {
		s.errMsg = err.Error()
		return nil
	}
	s.session = sess
	return nil
}

func (s *Screen) Title() string {
	return "Exam · " + s.data.Category
}

func (s *Screen) HandlesBack() bool { return true }

// Close discards an unfinished exam.
func (s *Screen) Close() {
	if s.session != nil && s.session.Active() {
		s.deps.Exams.CleanupExam()
	}
}

func (s *Screen) KeyHints() []layout.KeyHint {
	if s.confirm != nil {
		return []layout.KeyHint{
			{Key: "←→", Description: "Choose"},
			{Key: "Enter", Description: "Select"},
			{Key: "Y/N", Description: s.confirm.ConfirmLabel + "/" + s.confirm.CancelLabel},
		}
	}
	if s.view != nil && s.view.Question.Type == content.TypeSpecialist {
		return []layout.KeyHint{
			{Key: "A/B/C", Description: "Answer"},
			{Key: "Esc", Description: "End exam"},
		}
	}
	return []layout.KeyHint{
		{Key: "T/N", Description: "Tak/Nie"},
		{Key: "Esc", Description: "End exam"},
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case questionMsg:
		v := msg.view
		s.view = &v
		s.answers = components.NewAnswerList(v.Question)
		return s, nil

	case highlightMsg:
		s.answers.Reveal(msg.selected, msg.correct)
		return s, nil

	case timersMsg:
		s.timers = msg.timers
		return s, nil

	case confirmMsg:
		c := components.NewConfirm(msg.title, msg.body, msg.opts.ConfirmLabel, msg.opts.CancelLabel,
			msg.opts.Variant == exam.VariantDanger)
		s.confirm = &c
		s.onOK, s.onCancel = msg.onConfirm, msg.onCancel
		return s, nil

	case resultsMsg:
		if s.done {
			return s, nil
		}
		s.done = true
		return s, router.Replace(results.New(msg.result, s.deps.History))

	case tea.WindowSizeMsg:
		s.deps.Exams.RefreshExamQuestion()
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

func (s *Screen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if s.errMsg != "" || s.session == nil {
		return s, router.Pop()
	}

	if s.confirm != nil {
		c, done, ok := s.confirm.Update(msg)
		if !done {
			s.confirm = &c
			return s, nil
		}
		cb := s.onCancel
		if ok {
			cb = s.onOK
		}
		s.confirm, s.onOK, s.onCancel = nil, nil, nil
		if cb != nil {
			cb()
		}
		// Leaving from the intro discards the session.
		if !s.session.Active() && s.session.Phase() == exam.PhasePendingIntro {
			return s, router.Pop()
		}
		return s, nil
	}

	if msg.String() == "esc" {
		s.session.End()
		if !s.session.Active() && s.session.Phase() == exam.PhasePendingIntro {
			return s, router.Pop()
		}
		return s, nil
	}

	var picked content.Answer
	s.answers, picked = s.answers.Update(msg)
	if picked != "" {
		s.session.Answer(picked)
	}
	return s, nil
}

func (s *Screen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nCannot start the exam: %s\n\nPress any key to go back.", s.errMsg))
	}
	if s.confirm != nil {
		return "\n\n" + s.confirm.View(width)
	}
	if s.view == nil {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Preparing exam...")
	}

	v := s.view
	var b strings.Builder

	kind := "Basic"
	if v.Question.Type == content.TypeSpecialist {
		kind = "Specialist"
	}
	infoLeft := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).
		Render(fmt.Sprintf("  Question %d/%d  ·  %s  ·  %d pt", v.Index+1, v.Total, kind, v.Points))
	infoRight := lipgloss.NewStyle().Foreground(theme.TextDim).
		Render("Exam " + timer.FormatTime(s.timers.ExamRemaining))
	b.WriteString(spread(infoLeft, infoRight, width))
	b.WriteString("\n")

	frac := 0.0
	if s.timers.QuestionTotal > 0 {
		frac = float64(s.timers.QuestionRemaining) / float64(s.timers.QuestionTotal)
	}
	bar := components.NewProgressBar(timer.FormatTime(s.timers.QuestionRemaining), frac, min(60, width-4)).WarnBelow(0.25).View()
	b.WriteString("  " + bar)
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

func spread(left, right string, width int) string {
	pad := width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if pad < 1 {
		return left
	}
	return left + strings.Repeat(" ", pad) + right
}
