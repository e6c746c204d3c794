package quiz

import (
	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/exam"
	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/ui/events"
)

// questionMsg carries a newly shown question.
type questionMsg struct{ view exam.QuestionView }

// highlightMsg reveals the answer of the current question.
type highlightMsg struct{ selected, correct content.Answer }

// timersMsg carries both countdowns.
type timersMsg struct{ timers exam.TimerView }

// resultsMsg is sent once the exam has been scored.
type resultsMsg struct{ result history.Result }

// confirmMsg asks the screen to show a modal.
type confirmMsg struct {
	title, body         string
	onConfirm, onCancel func()
	opts                exam.ConfirmOptions
}

// UI delivers exam session callbacks to the exam screen through the
// app's event queue. It implements exam.UI and exam.Confirmer.
type UI struct {
	q *events.Queue
}

var (
	_ exam.UI        = (*UI)(nil)
	_ exam.Confirmer = (*UI)(nil)
)

func NewUI(q *events.Queue) *UI {
	return &UI{q: q}
}

func (u *UI) RenderQuestion(v exam.QuestionView) {
	u.q.Push(questionMsg{view: v})
}

func (u *UI) HighlightAnswer(selected, correct content.Answer) {
	u.q.Push(highlightMsg{selected: selected, correct: correct})
}

func (u *UI) UpdateTimers(t exam.TimerView) {
	u.q.Push(timersMsg{timers: t})
}

func (u *UI) RenderResults(r history.Result) {
	u.q.Push(resultsMsg{result: r})
}

func (u *UI) ConfirmModal(title, body string, onConfirm, onCancel func(), opts exam.ConfirmOptions) {
	u.q.Push(confirmMsg{title: title, body: body, onConfirm: onConfirm, onCancel: onCancel, opts: opts})
}
