package components

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/ui/theme"
)

// AnswerList shows the options of a question and, once revealed, which
// one was chosen and which one is correct.
type AnswerList struct {
	Question content.Question
	Options  []content.Answer
	Cursor   int

	revealed bool
	selected content.Answer
	correct  content.Answer
}

// NewAnswerList creates an answer list for q.
func NewAnswerList(q content.Question) AnswerList {
	return AnswerList{Question: q, Options: q.Options()}
}

// Reveal marks selected as the user's choice and correct as the right
// answer. selected may be empty when time ran out.
func (a *AnswerList) Reveal(selected, correct content.Answer) {
	a.revealed = true
	a.selected = selected
	a.correct = correct
}

// Revealed reports whether the answer has been shown.
func (a AnswerList) Revealed() bool { return a.revealed }

// Update moves the cursor. It returns the answer picked with a shortcut
// key or Enter, if any.
func (a AnswerList) Update(msg tea.Msg) (AnswerList, content.Answer) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || a.revealed || len(a.Options) == 0 {
		return a, ""
	}

	key := kmsg.String()
	switch key {
	case "up", "k":
		if a.Cursor > 0 {
			a.Cursor--
		}
		return a, ""
	case "down", "j":
		if a.Cursor < len(a.Options)-1 {
			a.Cursor++
		}
		return a, ""
	case "enter":
		return a, a.Options[a.Cursor]
	}

	for i, opt := range a.Options {
		if strings.EqualFold(key, string(opt)) || key == fmt.Sprint(i+1) {
			a.Cursor = i
			return a, opt
		}
	}
	return a, ""
}

// View renders the options.
func (a AnswerList) View() string {
	var b strings.Builder
	for i, opt := range a.Options {
		prefix := "  "
		if i == a.Cursor && !a.revealed {
			prefix = "▸ "
		}
		line := fmt.Sprintf("%s%s)  %s", prefix, opt, optionLabel(a.Question, opt))

		style := lipgloss.NewStyle().Foreground(theme.Text)
		switch {
		case a.revealed && opt == a.correct:
			style = theme.Correct
		case a.revealed && opt == a.selected:
			style = theme.Incorrect
		case a.revealed:
			style = lipgloss.NewStyle().Foreground(theme.TextDim)
		case i == a.Cursor:
			style = theme.Selected
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	if a.revealed && a.selected == "" {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Accent).Render("  Time is up"))
		b.WriteString("\n")
	}
	return b.String()
}

func optionLabel(q content.Question, a content.Answer) string {
	switch a {
	case content.AnswerYes:
		return "Tak"
	case content.AnswerNo:
		return "Nie"
	}
	return q.OptionText(a)
}
