package router

import (
	"slices"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/prawko/prawko/internal/screen"
)

// probe records lifecycle calls into a shared log.
type probe struct {
	name string
	log  *[]string
}

func (p *probe) Init() tea.Cmd {
	*p.log = append(*p.log, "init "+p.name)
	return nil
}
func (p *probe) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if s, ok := msg.(string); ok {
		*p.log = append(*p.log, p.name+" got "+s)
	}
	return p, nil
}
func (p *probe) View(int, int) string { return p.name }
func (p *probe) Title() string        { return p.name }
func (p *probe) Close()               { *p.log = append(*p.log, "close "+p.name) }

// resumable additionally refreshes when uncovered.
type resumable struct{ probe }

func (r *resumable) Resume() tea.Cmd {
	*r.log = append(*r.log, "resume "+r.name)
	return func() tea.Msg { return "resumed" }
}

func titles(r *Router) []string {
	var out []string
	for _, s := range r.stack {
		out = append(out, s.Title())
	}
	return out
}

func TestNavigation(t *testing.T) {
	tests := []struct {
		name      string
		msgs      []func(log *[]string) tea.Msg
		wantStack []string
		wantLog   []string
	}{
		{
			name: "push inits",
			msgs: []func(*[]string) tea.Msg{
				func(l *[]string) tea.Msg { return PushScreenMsg{&probe{"exam", l}} },
			},
			wantStack: []string{"categories", "exam"},
			wantLog:   []string{"init exam"},
		},
		{
			name: "pop closes the top and resumes the one below",
			msgs: []func(*[]string) tea.Msg{
				func(l *[]string) tea.Msg { return PushScreenMsg{&probe{"learn", l}} },
				func(*[]string) tea.Msg { return PopScreenMsg{} },
			},
			wantStack: []string{"categories"},
			wantLog:   []string{"init learn", "close learn", "resume categories"},
		},
		{
			name: "pop on the root is ignored",
			msgs: []func(*[]string) tea.Msg{
				func(*[]string) tea.Msg { return PopScreenMsg{} },
			},
			wantStack: []string{"categories"},
		},
		{
			name: "replace keeps depth",
			msgs: []func(*[]string) tea.Msg{
				func(l *[]string) tea.Msg { return PushScreenMsg{&probe{"exam", l}} },
				func(l *[]string) tea.Msg { return ReplaceScreenMsg{&probe{"results", l}} },
			},
			wantStack: []string{"categories", "results"},
			wantLog:   []string{"init exam", "close exam", "init results"},
		},
		{
			name: "other messages reach the active screen only",
			msgs: []func(*[]string) tea.Msg{
				func(l *[]string) tea.Msg { return PushScreenMsg{&probe{"history", l}} },
				func(*[]string) tea.Msg { return "key" },
			},
			wantStack: []string{"categories", "history"},
			wantLog:   []string{"init history", "history got key"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log []string
			r := New(&resumable{probe{"categories", &log}})
			for _, m := range tt.msgs {
				r.Update(m(&log))
			}
			if got := titles(r); !slices.Equal(got, tt.wantStack) {
				t.Errorf("stack = %v, want %v", got, tt.wantStack)
			}
			if !slices.Equal(log, tt.wantLog) {
				t.Errorf("log = %v, want %v", log, tt.wantLog)
			}
			if r.Depth() != len(tt.wantStack) {
				t.Errorf("Depth() = %d", r.Depth())
			}
		})
	}
}

func TestPopReturnsResumeCommand(t *testing.T) {
	var log []string
	r := New(&resumable{probe{"categories", &log}})
	r.Push(&probe{"results", &log})

	cmd := r.Pop()
	if cmd == nil || cmd() != "resumed" {
		t.Error("expected the resume command to be returned")
	}
}

func TestCloseAllTopFirst(t *testing.T) {
	var log []string
	r := New(&probe{"categories", &log})
	r.Push(&probe{"learn", &log})

	r.CloseAll()

	want := []string{"init learn", "close learn", "close categories"}
	if !slices.Equal(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

func TestCommandHelpers(t *testing.T) {
	var log []string
	s := &probe{"x", &log}
	if msg, ok := Push(s)().(PushScreenMsg); !ok || msg.Screen != s {
		t.Errorf("Push() produced %#v", msg)
	}
	if _, ok := Pop()().(PopScreenMsg); !ok {
		t.Error("Pop() should produce PopScreenMsg")
	}
	if msg, ok := Replace(s)().(ReplaceScreenMsg); !ok || msg.Screen != s {
		t.Errorf("Replace() produced %#v", msg)
	}
}

func TestViewRendersActive(t *testing.T) {
	var log []string
	r := New(&probe{"categories", &log})
	r.Push(&probe{"exam", &log})
	if got := r.View(80, 24); got != "exam" {
		t.Errorf("View() = %q", got)
	}
}
