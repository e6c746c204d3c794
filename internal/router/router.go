// Package router keeps the stack of TUI screens. Screens navigate by
// returning the commands below; the app model feeds the resulting
// messages back into Router.Update.
package router

import (
	tea "charm.land/bubbletea/v2"

	"github.com/prawko/prawko/internal/screen"
)

type (
	PushScreenMsg    struct{ Screen screen.Screen }
	PopScreenMsg     struct{}
	ReplaceScreenMsg struct{ Screen screen.Screen }
)

func Push(s screen.Screen) tea.Cmd {
	return func() tea.Msg { return PushScreenMsg{Screen: s} }
}

func Pop() tea.Cmd {
	return func() tea.Msg { return PopScreenMsg{} }
}

// Replace swaps the top screen, e.g. a finished exam for its results.
func Replace(s screen.Screen) tea.Cmd {
	return func() tea.Msg { return ReplaceScreenMsg{Screen: s} }
}

// Router never lets the stack become empty. Screens leaving the stack are
// closed if they implement screen.Closer; a screen uncovered by Pop is
// resumed if it implements screen.Resumer.
type Router struct {
	stack []screen.Screen
}

func New(root screen.Screen) *Router {
	return &Router{stack: []screen.Screen{root}}
}

func (r *Router) top() int { return len(r.stack) - 1 }

func (r *Router) Push(s screen.Screen) tea.Cmd {
	r.stack = append(r.stack, s)
	return s.Init()
}

// Pop is a no-op on the root screen.
func (r *Router) Pop() tea.Cmd {
	if len(r.stack) < 2 {
		return nil
	}
	leaving := r.stack[r.top()]
	r.stack[r.top()] = nil
	r.stack = r.stack[:r.top()]
	release(leaving)

	if rs, ok := r.Active().(screen.Resumer); ok {
		return rs.Resume()
	}
	return nil
}

func (r *Router) Replace(s screen.Screen) tea.Cmd {
	release(r.stack[r.top()])
	r.stack[r.top()] = s
	return s.Init()
}

// CloseAll releases every screen, topmost first. Used on shutdown.
func (r *Router) CloseAll() {
	for i := r.top(); i >= 0; i-- {
		release(r.stack[i])
	}
}

func (r *Router) Active() screen.Screen { return r.stack[r.top()] }

func (r *Router) Depth() int { return len(r.stack) }

func (r *Router) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case PushScreenMsg:
		return r.Push(msg.Screen)
	case PopScreenMsg:
		return r.Pop()
	case ReplaceScreenMsg:
		return r.Replace(msg.Screen)
	}
	var cmd tea.Cmd
	r.stack[r.top()], cmd = r.Active().Update(msg)
	return cmd
}

func (r *Router) View(width, height int) string {
	return r.Active().View(width, height)
}

func release(s screen.Screen) {
	if c, ok := s.(screen.Closer); ok {
		c.Close()
	}
}
