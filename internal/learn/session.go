// Package learn drives untimed practice over a category with an adaptive
// review queue and persisted per-question progress.
package learn

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/spacedrep"
	"github.com/prawko/prawko/internal/timer"
)

// QuestionView is what a UI needs to draw the current learn question.
type QuestionView struct {
	Category string
	Mode     Mode
	Index    int
	Total    int
	Question content.Question
	Entry    spacedrep.Entry
	Band     Band
}

// UI renders learn state. Calls are made without any lock held.
type UI interface {
	RenderQuestion(QuestionView)
	// RenderEmpty is shown when the queue has nothing to offer, e.g. the
	// wrong-only queue after everything was corrected.
	RenderEmpty(category string, mode Mode)
	HighlightAnswer(selected, correct content.Answer)
}

type nopUI struct{}

func (nopUI) RenderQuestion(QuestionView)                      {}
func (nopUI) RenderEmpty(string, Mode)                         {}
func (nopUI) HighlightAnswer(selected, correct content.Answer) {}

// Deps are the collaborators of learn sessions.
type Deps struct {
	Progress *Progress
	Modes    *Modes
	UI       UI
	Clock    timer.Clock
	Log      zerolog.Logger
}

// Session walks one category's queue.
type Session struct {
	ctx      context.Context
	deps     Deps
	category string
	all      []content.Question

	mu       sync.Mutex
	closed   bool
	mode     Mode
	queue    []content.Question
	pos      int
	answers  map[int]content.Answer
	revealed content.Answer
}

// Category returns the session's category.
func (s *Session) Category() string { return s.category }

// Mode returns the active queue mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Current returns the question at the current position.
func (s *Session) Current() (content.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.queue) {
		return content.Question{}, false
	}
	return s.queue[s.pos], true
}

// Position returns the current index and the queue length.
func (s *Session) Position() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, len(s.queue)
}

// Queue returns a copy of the current ordering.
func (s *Session) Queue() []content.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]content.Question(nil), s.queue...)
}

// Revealed returns the answer given to the question on screen, if any.
func (s *Session) Revealed() (content.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealed, s.revealed != ""
}

// Answer records a for the current question and reveals the correct
// answer. Only the first answer per visit counts. It reports whether a
// was correct and whether it was accepted.
func (s *Session) Answer(a content.Answer) (correct, accepted bool) {
	s.mu.Lock()
	if s.closed || s.revealed != "" || s.pos >= len(s.queue) || a == "" {
		s.mu.Unlock()
		return false, false
	}
	q := s.queue[s.pos]
	correct = q.IsCorrect(a)
	s.revealed = a
	s.answers[q.ID] = a
	s.mu.Unlock()

	if _, err := s.deps.Progress.SaveAnswer(s.ctx, s.category, q.ID, a, correct); err != nil {
		s.deps.Log.Debug().Err(err).Msg("answer kept for this session only")
	}
	s.deps.UI.HighlightAnswer(a, q.Correct)
	return correct, true
}

// Next moves forward. It reports false at the end of the queue.
func (s *Session) Next() bool {
	return s.move(1)
}

// Prev moves back. It reports false at the start of the queue.
func (s *Session) Prev() bool {
	return s.move(-1)
}

func (s *Session) move(delta int) bool {
	s.mu.Lock()
	next := s.pos + delta
	if s.closed || next < 0 || next >= len(s.queue) {
		s.mu.Unlock()
		return false
	}
	s.pos = next
	s.revealed = ""
	s.mu.Unlock()
	s.Refresh()
	return true
}

// SetMode rebuilds the queue for mode, keeping the current question in
// view when the new queue contains it, else starting over.
func (s *Session) SetMode(mode Mode) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	currentID, hasCurrent := 0, false
	if s.pos < len(s.queue) {
		currentID, hasCurrent = s.queue[s.pos].ID, true
	}
	s.mode = mode
	s.queue = s.buildLocked()
	s.pos = 0
	if hasCurrent {
		for i, q := range s.queue {
			if q.ID == currentID {
				s.pos = i
				break
			}
		}
	}
	s.revealed = ""
	s.mu.Unlock()

	if err := s.deps.Modes.Set(s.ctx, s.category, mode); err != nil {
		s.deps.Log.Debug().Err(err).Msg("queue mode kept for this session only")
	}
	s.Refresh()
}

// ToggleMode switches between adaptive and wrong-only queues.
func (s *Session) ToggleMode() Mode {
	next := ModeWrong
	if s.Mode() == ModeWrong {
		next = ModeAdaptive
	}
	s.SetMode(next)
	return next
}

// Refresh redraws the current question.
func (s *Session) Refresh() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.pos >= len(s.queue) {
		cat, mode := s.category, s.mode
		s.mu.Unlock()
		s.deps.UI.RenderEmpty(cat, mode)
		return
	}
	q := s.queue[s.pos]
	v := QuestionView{
		Category: s.category,
		Mode:     s.mode,
		Index:    s.pos,
		Total:    len(s.queue),
		Question: q,
	}
	revealed := s.revealed
	s.mu.Unlock()

	v.Entry, _ = s.deps.Progress.Meta(s.ctx, s.category, q.ID)
	v.Band = Classify(q, v.Entry, s.deps.Clock.Now())
	s.deps.UI.RenderQuestion(v)
	if revealed != "" {
		s.deps.UI.HighlightAnswer(revealed, q.Correct)
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) buildLocked() []content.Question {
	entries := s.deps.Progress.Entries(s.ctx, s.category)
	if s.mode == ModeWrong {
		return WrongOnly(s.all, entries, s.answers)
	}
	return BuildQueue(s.all, entries, s.deps.Clock.Now())
}
