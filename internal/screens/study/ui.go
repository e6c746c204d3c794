package study

import (
	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/learn"
	"github.com/prawko/prawko/internal/ui/events"
)

type questionMsg struct{ view learn.QuestionView }

type emptyMsg struct {
	category string
	mode     learn.Mode
}

type highlightMsg struct{ selected, correct content.Answer }

// UI forwards learn session callbacks to the study screen through the
// app's event queue.
type UI struct {
	q *events.Queue
}

var _ learn.UI = (*UI)(nil)

func NewUI(q *events.Queue) *UI {
	return &UI{q: q}
}

func (u *UI) RenderQuestion(v learn.QuestionView) {
	u.q.Push(questionMsg{view: v})
}

func (u *UI) RenderEmpty(category string, mode learn.Mode) {
	u.q.Push(emptyMsg{category: category, mode: mode})
}

func (u *UI) HighlightAnswer(selected, correct content.Answer) {
	u.q.Push(highlightMsg{selected: selected, correct: correct})
}
