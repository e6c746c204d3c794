package exam

import (
	"context"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/history"
)

// QuestionView is what a UI needs to draw the current question.
type QuestionView struct {
	Category string
	Index    int
	Total    int
	Question content.Question
	Points   int
}

// TimerView carries both countdowns in whole seconds.
type TimerView struct {
	QuestionRemaining int
	QuestionTotal     int
	ExamRemaining     int
	ExamTotal         int
}

// UI renders session state. Methods are called without any session lock
// held and may call back into the session.
type UI interface {
	RenderQuestion(QuestionView)
	// HighlightAnswer reveals the correct answer. selected is empty when
	// the question timed out.
	HighlightAnswer(selected, correct content.Answer)
	UpdateTimers(TimerView)
	RenderResults(history.Result)
}

// Variant hints how a confirmation should be styled.
type Variant string

const (
	VariantDefault Variant = "default"
	VariantDanger  Variant = "danger"
)

// ConfirmOptions labels the two choices of a confirmation.
type ConfirmOptions struct {
	ConfirmLabel string
	CancelLabel  string
	Variant      Variant
}

// Confirmer asks the user to confirm an action. Exactly one of onConfirm
// and onCancel is expected to be called, possibly later.
type Confirmer interface {
	ConfirmModal(title, body string, onConfirm, onCancel func(), opts ConfirmOptions)
}

// Preloader warms media before it is shown.
type Preloader interface {
	Preload(content.Media)
}

// ResultSaver persists finished exams. *history.Store satisfies it.
type ResultSaver interface {
	Save(ctx context.Context, r history.Result) error
}

type nopUI struct{}

func (nopUI) RenderQuestion(QuestionView)                      {}
func (nopUI) HighlightAnswer(selected, correct content.Answer) {}
func (nopUI) UpdateTimers(TimerView)                           {}
func (nopUI) RenderResults(history.Result)                     {}

// autoConfirm confirms everything immediately.
type autoConfirm struct{}

func (autoConfirm) ConfirmModal(_, _ string, onConfirm, _ func(), _ ConfirmOptions) {
	if onConfirm != nil {
		onConfirm()
	}
}

type nopPreloader struct{}

func (nopPreloader) Preload(content.Media) {}

type nopSaver struct{}

func (nopSaver) Save(context.Context, history.Result) error { return nil }
