package learn

import (
	"context"
	"sync"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/timer"
)

// Controller owns the single live learn session.
type Controller struct {
	deps Deps

	mu      sync.Mutex
	current *Session
}

// NewController returns a controller. Progress and Modes are required.
func NewController(deps Deps) *Controller {
	if deps.UI == nil {
		deps.UI = nopUI{}
	}
	if deps.Clock == nil {
		deps.Clock = timer.RealClock
	}
	return &Controller{deps: deps}
}

// StartLearn replaces any live session with one over data, in the
// category's stored mode, positioned per StartPosition.
func (c *Controller) StartLearn(ctx context.Context, data content.CategoryData) *Session {
	c.CleanupLearn()

	s := &Session{
		ctx:      context.WithoutCancel(ctx),
		deps:     c.deps,
		category: data.Category,
		all:      data.Questions,
		mode:     c.deps.Modes.Get(ctx, data.Category),
		answers:  map[int]content.Answer{},
	}
	s.queue = s.buildLocked()
	if s.mode == ModeAdaptive {
		s.pos = StartPosition(s.queue, c.deps.Progress.Entries(ctx, data.Category), c.deps.Clock.Now())
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	c.deps.Log.Debug().Str("category", data.Category).Str("mode", string(s.mode)).
		Int("queue", len(s.queue)).Int("start", s.pos).Msg("learn started")
	s.Refresh()
	return s
}

// CleanupLearn ends the live session.
func (c *Controller) CleanupLearn() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()
	if s != nil {
		s.close()
	}
}

// Current returns the live session or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// RefreshLearnQuestion redraws the live session.
func (c *Controller) RefreshLearnQuestion() {
	if s := c.Current(); s != nil {
		s.Refresh()
	}
}

// ToggleQueueMode switches the live session's queue mode.
func (c *Controller) ToggleQueueMode() (Mode, bool) {
	s := c.Current()
	if s == nil {
		return "", false
	}
	return s.ToggleMode(), true
}
