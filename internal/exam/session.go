package exam

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/timer"
)

// AdvanceDelay is how long a locked question stays on screen before the
// session moves on.
const AdvanceDelay = 600 * time.Millisecond

// Phase is the lifecycle stage of a session.
type Phase int

const (
	PhasePendingIntro Phase = iota
	PhaseRunning
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhasePendingIntro:
		return "pending_intro"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// Deps are the collaborators of a session. Nil fields get no-op defaults;
// a nil Confirmer confirms immediately.
type Deps struct {
	UI        UI
	Confirmer Confirmer
	Preloader Preloader
	Saver     ResultSaver
	Clock     timer.Clock
	Log       zerolog.Logger

	// OnFinish runs once after the result has been saved and rendered.
	OnFinish func(history.Result)
	// OnDiscard runs when the user leaves from the intro.
	OnDiscard func()
}

func (d Deps) withDefaults() Deps {
	if d.UI == nil {
		d.UI = nopUI{}
	}
	if d.Confirmer == nil {
		d.Confirmer = autoConfirm{}
	}
	if d.Preloader == nil {
		d.Preloader = nopPreloader{}
	}
	if d.Saver == nil {
		d.Saver = nopSaver{}
	}
	if d.Clock == nil {
		d.Clock = timer.RealClock
	}
	return d
}

// View is a point-in-time copy of session state.
type View struct {
	Category string
	Phase    Phase
	Index    int
	Total    int
	Item     Item
	Rules    content.Rules
	Scaled   bool
	Timers   TimerView
}

// effects are UI calls collected under the lock and run after it is
// released.
type effects []func()

func (fx effects) run() {
	for _, f := range fx {
		f()
	}
}

// Session is one exam attempt. All methods are safe for concurrent use;
// timer callbacks arrive on their own goroutines.
type Session struct {
	deps     Deps
	ctx      context.Context
	log      zerolog.Logger
	category string
	rules    content.Rules
	scaled   bool
	items    []*Item

	mu            sync.Mutex
	phase         Phase
	discarded     bool
	current       int
	questionTimer *timer.Countdown
	examTimer     *timer.Countdown
	advance       timer.Timer
	result        *history.Result
}

func newSession(ctx context.Context, deps Deps, category string, items []*Item, rules content.Rules, scaled bool) *Session {
	deps = deps.withDefaults()
	return &Session{
		deps:     deps,
		ctx:      context.WithoutCancel(ctx),
		log:      deps.Log.With().Str("category", category).Logger(),
		category: category,
		rules:    rules,
		scaled:   scaled,
		items:    items,
	}
}

// Category returns the category the session was built for.
func (s *Session) Category() string { return s.category }

// Rules returns the effective, possibly scaled, rules.
func (s *Session) Rules() content.Rules { return s.rules.Clone() }

// Items returns copies of all items in exam order.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	for i, it := range s.items {
		out[i] = *it
	}
	return out
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Active reports whether the session can still change.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.discarded && s.phase != PhaseFinished
}

// Result returns the computed result once the session has finished.
func (s *Session) Result() (history.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return history.Result{}, false
	}
	return *s.result, true
}

// Snapshot returns a copy of the state needed to draw the session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Category: s.category,
		Phase:    s.phase,
		Index:    s.current,
		Total:    len(s.items),
		Rules:    s.rules.Clone(),
		Scaled:   s.scaled,
		Timers:   s.timerViewLocked(),
	}
	if s.current < len(s.items) {
		v.Item = *s.items[s.current]
	}
	return v
}

// Intro shows the rules notice. Confirming begins the exam, cancelling
// discards it.
func (s *Session) Intro() {
	s.mu.Lock()
	if s.phase != PhasePendingIntro || s.discarded {
		s.mu.Unlock()
		return
	}
	r := s.rules
	s.mu.Unlock()

	body := introBody(r)
	s.deps.Confirmer.ConfirmModal("Exam", body, func() { s.Begin() }, func() { s.End() }, ConfirmOptions{
		ConfirmLabel: "Start",
		CancelLabel:  "Back",
		Variant:      VariantDefault,
	})
}

// Begin moves from the intro to the first question and starts the exam
// timer. It reports false if the session was not pending.
func (s *Session) Begin() bool {
	s.mu.Lock()
	if s.phase != PhasePendingIntro || s.discarded {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseRunning
	s.examTimer = timer.NewCountdown(s.deps.Clock, s.rules.TotalTimeSeconds, timer.Callbacks{
		OnTick:   func(int, int) { s.pushTimers(-1) },
		OnExpire: func() { s.Finish() },
	})
	s.examTimer.Start()
	var fx effects
	if len(s.items) == 0 {
		fx = s.finishLocked()
	} else {
		fx = s.showLocked()
	}
	s.mu.Unlock()

	s.log.Debug().Int("questions", len(s.items)).Msg("exam started")
	fx.run()
	return true
}

// Answer records a for the current question. It reports whether the
// answer was accepted; answers to a locked question, or outside the
// running phase, are ignored.
func (s *Session) Answer(a content.Answer) bool {
	s.mu.Lock()
	if s.phase != PhaseRunning || s.discarded || s.current >= len(s.items) {
		s.mu.Unlock()
		return false
	}
	idx := s.current
	item := s.items[idx]
	if item.Locked {
		s.mu.Unlock()
		return false
	}
	item.Locked = true
	item.Given = a
	item.IsCorrect = item.Question.IsCorrect(a)
	if s.questionTimer != nil {
		s.questionTimer.Stop()
	}
	s.scheduleAdvanceLocked(idx)
	correct := item.Question.Correct
	s.mu.Unlock()

	s.deps.UI.HighlightAnswer(a, correct)
	return true
}

// End requests early termination. From the intro the session is simply
// discarded; while running the user is asked to confirm first.
func (s *Session) End() {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return
	}
	switch s.phase {
	case PhasePendingIntro:
		s.discardLocked()
		s.mu.Unlock()
		s.log.Debug().Msg("exam abandoned at intro")
		if s.deps.OnDiscard != nil {
			s.deps.OnDiscard()
		}
	case PhaseRunning:
		s.mu.Unlock()
		s.deps.Confirmer.ConfirmModal("End exam?",
			"Unanswered questions score no points.",
			func() { s.Finish() }, nil,
			ConfirmOptions{ConfirmLabel: "End exam", CancelLabel: "Continue", Variant: VariantDanger})
	default:
		s.mu.Unlock()
	}
}

// Finish stops the exam, computes and persists the result. Only the first
// call while running has any effect.
func (s *Session) Finish() {
	s.mu.Lock()
	if s.phase != PhaseRunning || s.discarded {
		s.mu.Unlock()
		return
	}
	fx := s.finishLocked()
	s.mu.Unlock()
	fx.run()
}

// Discard tears the session down without recording a result.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded || s.phase == PhaseFinished {
		return
	}
	s.discardLocked()
	s.log.Debug().Msg("exam discarded")
}

// Refresh redraws the current state, e.g. after a terminal resize or a
// language change.
func (s *Session) Refresh() {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return
	}
	var fx effects
	switch s.phase {
	case PhaseRunning:
		fx = append(fx, s.renderLocked()...)
		item := s.items[s.current]
		if item.Locked {
			given, correct := item.Given, item.Question.Correct
			fx = append(fx, func() { s.deps.UI.HighlightAnswer(given, correct) })
		}
	case PhaseFinished:
		if s.result != nil {
			r := *s.result
			fx = append(fx, func() { s.deps.UI.RenderResults(r) })
		}
	}
	s.mu.Unlock()
	fx.run()
}

func (s *Session) discardLocked() {
	s.discarded = true
	s.stopTimersLocked()
}

func (s *Session) stopTimersLocked() {
	if s.questionTimer != nil {
		s.questionTimer.Stop()
	}
	if s.examTimer != nil {
		s.examTimer.Stop()
	}
	if s.advance != nil {
		s.advance.Stop()
		s.advance = nil
	}
}

func (s *Session) showLocked() effects {
	idx := s.current
	item := s.items[idx]

	seconds := s.rules.BasicTimeSeconds
	if item.Question.Type == content.TypeSpecialist {
		seconds = s.rules.SpecialistTimeSeconds
	}
	if s.questionTimer != nil {
		s.questionTimer.Stop()
	}
	s.questionTimer = timer.NewCountdown(s.deps.Clock, seconds, timer.Callbacks{
		OnTick:   func(int, int) { s.pushTimers(idx) },
		OnExpire: func() { s.timeout(idx) },
	})
	s.questionTimer.Start()

	fx := s.renderLocked()
	if next := idx + 1; next < len(s.items) && s.items[next].Question.Media != nil {
		m := *s.items[next].Question.Media
		fx = append(fx, func() { s.deps.Preloader.Preload(m) })
	}
	return fx
}

func (s *Session) renderLocked() effects {
	item := s.items[s.current]
	qv := QuestionView{
		Category: s.category,
		Index:    s.current,
		Total:    len(s.items),
		Question: item.Question,
		Points:   item.Points,
	}
	tv := s.timerViewLocked()
	return effects{
		func() { s.deps.UI.RenderQuestion(qv) },
		func() { s.deps.UI.UpdateTimers(tv) },
	}
}

func (s *Session) timerViewLocked() TimerView {
	var tv TimerView
	if s.questionTimer != nil {
		tv.QuestionRemaining = s.questionTimer.Remaining()
		tv.QuestionTotal = s.questionTimer.Total()
	}
	if s.examTimer != nil {
		tv.ExamRemaining = s.examTimer.Remaining()
		tv.ExamTotal = s.examTimer.Total()
	} else {
		tv.ExamRemaining = s.rules.TotalTimeSeconds
		tv.ExamTotal = s.rules.TotalTimeSeconds
	}
	return tv
}

// pushTimers forwards a tick to the UI. idx is the question the tick
// belongs to, or -1 for the exam timer.
func (s *Session) pushTimers(idx int) {
	s.mu.Lock()
	if s.phase != PhaseRunning || s.discarded || (idx >= 0 && idx != s.current) {
		s.mu.Unlock()
		return
	}
	tv := s.timerViewLocked()
	s.mu.Unlock()
	s.deps.UI.UpdateTimers(tv)
}

func (s *Session) timeout(idx int) {
	s.mu.Lock()
	if s.phase != PhaseRunning || s.discarded || idx != s.current {
		s.mu.Unlock()
		return
	}
	item := s.items[idx]
	if item.Locked {
		s.mu.Unlock()
		return
	}
	item.Locked = true
	item.TimedOut = true
	s.scheduleAdvanceLocked(idx)
	correct := item.Question.Correct
	s.mu.Unlock()

	s.deps.UI.HighlightAnswer("", correct)
}

func (s *Session) scheduleAdvanceLocked(idx int) {
	if s.advance != nil {
		s.advance.Stop()
	}
	s.advance = s.deps.Clock.AfterFunc(AdvanceDelay, func() { s.advanceFrom(idx) })
}

func (s *Session) advanceFrom(idx int) {
	s.mu.Lock()
	if s.phase != PhaseRunning || s.discarded || idx != s.current {
		s.mu.Unlock()
		return
	}
	s.advance = nil
	s.current++
	var fx effects
	if s.current >= len(s.items) {
		fx = s.finishLocked()
	} else {
		fx = s.showLocked()
	}
	s.mu.Unlock()
	fx.run()
}

func (s *Session) finishLocked() effects {
	s.phase = PhaseFinished
	s.stopTimersLocked()

	r := s.scoreLocked()
	s.result = &r

	return effects{func() {
		if err := s.deps.Saver.Save(s.ctx, r); err != nil {
			s.log.Warn().Err(err).Msg("exam result kept in memory only")
		}
		s.log.Info().Int("score", r.Score).Int("max", r.MaxPoints).Bool("passed", r.Passed).Msg("exam finished")
		s.deps.UI.RenderResults(r)
		if s.deps.OnFinish != nil {
			s.deps.OnFinish(r)
		}
	}}
}

func (s *Session) scoreLocked() history.Result {
	r := history.Result{
		ID:        uuid.NewString(),
		Timestamp: s.deps.Clock.Now(),
		Category:  s.category,
		MaxPoints: s.rules.MaxPoints,
	}
	for _, it := range s.items {
		if !it.IsCorrect {
			continue
		}
		if it.Question.Type == content.TypeSpecialist {
			r.SpecialistScore += it.Points
		} else {
			r.BasicScore += it.Points
		}
	}
	r.Score = r.BasicScore + r.SpecialistScore
	r.Passed = r.Score >= s.rules.PassThreshold
	return r
}
