// Package exam runs timed, scored exam sessions over a category's questions.
package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/history"
)

// ErrNoQuestions is returned when a category has nothing to ask.
var ErrNoQuestions = errors.New("exam: category has no questions")

// Controller owns the single live exam session.
type Controller struct {
	deps Deps
	rng  *rand.Rand

	mu           sync.Mutex
	current      *Session
	lastCategory string
}

// NewController returns a controller whose sessions use deps.
func NewController(deps Deps) *Controller {
	return &Controller{deps: deps}
}

// WithRand makes exam draws deterministic. Intended for tests.
func (c *Controller) WithRand(rng *rand.Rand) *Controller {
	c.rng = rng
	return c
}

// StartExam tears down any previous session, builds a new one from data
// and shows its intro. The returned session starts in PhasePendingIntro
// unless the Confirmer accepts the intro synchronously.
func (c *Controller) StartExam(ctx context.Context, data content.CategoryData, meta *content.Meta) (*Session, error) {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()
	if prev != nil {
		prev.Discard()
	}

	if len(data.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoQuestions, data.Category)
	}

	rules := content.DefaultRules()
	if meta != nil {
		rules = meta.RulesFor(data.Category)
	}
	items, effective, scaled := Build(data.Questions, rules, c.rng)
	if scaled {
		c.deps.Log.Warn().
			Str("category", data.Category).
			Int("basic", effective.BasicQuestions).
			Int("specialist", effective.SpecialistQuestions).
			Int("max_points", effective.MaxPoints).
			Int("pass_threshold", effective.PassThreshold).
			Msg("not enough questions, exam rules scaled down")
	}

	deps := c.deps
	s := newSession(ctx, deps, data.Category, items, effective, scaled)
	s.deps.OnFinish = func(r history.Result) {
		c.mu.Lock()
		if c.current == s {
			c.current = nil
		}
		c.lastCategory = r.Category
		c.mu.Unlock()
		if deps.OnFinish != nil {
			deps.OnFinish(r)
		}
	}
	s.deps.OnDiscard = func() {
		c.mu.Lock()
		if c.current == s {
			c.current = nil
		}
		c.mu.Unlock()
		if deps.OnDiscard != nil {
			deps.OnDiscard()
		}
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	s.Intro()
	return s, nil
}

// CleanupExam discards the live session, if any, without recording a result.
func (c *Controller) CleanupExam() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()
	if s != nil {
		s.Discard()
	}
}

// Current returns the live session or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// LastExamCategory returns the category of the most recently finished exam.
func (c *Controller) LastExamCategory() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCategory
}

// RefreshExamQuestion redraws the live session.
func (c *Controller) RefreshExamQuestion() {
	if s := c.Current(); s != nil {
		s.Refresh()
	}
}

func introBody(r content.Rules) string {
	return fmt.Sprintf("%d basic and %d specialist questions, %d points in total.\n"+
		"You need %d points to pass. You have %d minutes; each basic question allows %ds, each specialist question %ds.\n"+
		"An answer cannot be changed once given.",
		r.BasicQuestions, r.SpecialistQuestions, r.MaxPoints,
		r.PassThreshold, r.TotalTimeSeconds/60, r.BasicTimeSeconds, r.SpecialistTimeSeconds)
}
