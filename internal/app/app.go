package app

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/netcache"
	"github.com/prawko/prawko/internal/router"
	"github.com/prawko/prawko/internal/screen"
	"github.com/prawko/prawko/internal/screens/categories"
	"github.com/prawko/prawko/internal/screens/welcome"
	"github.com/prawko/prawko/internal/ui/events"
	"github.com/prawko/prawko/internal/ui/layout"
)

// Deps wire the TUI to the rest of the application.
type Deps struct {
	Categories categories.Deps
	// Queue delivers messages produced outside the event loop. It must be
	// the queue the session UIs push into.
	Queue *events.Queue
	// Notifier, when set, turns cache revalidation events into a header
	// notice.
	Notifier *netcache.Notifier
	// OnContentUpdated runs when new content was fetched in the
	// background, e.g. to drop memoized payloads.
	OnContentUpdated func()
	Version          string
	// Splash shows the welcome screen first.
	Splash bool
	Log    zerolog.Logger
}

type contentUpdatedMsg struct {
	event netcache.Event
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	deps    Deps
	router  *router.Router
	updates <-chan netcache.Event
	width   int
	height  int
	status  string
}

// newAppModel creates a new AppModel with the category list, behind the
// splash screen when enabled.
func newAppModel(deps Deps) AppModel {
	if deps.Queue == nil {
		deps.Queue = events.NewQueue()
	}
	var initial screen.Screen = categories.New(deps.Categories)
	if deps.Splash {
		home := initial
		initial = welcome.New(func() screen.Screen { return home })
	}
	return AppModel{
		deps:   deps,
		router: router.New(initial),
		status: deps.Version,
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.router.Active().Init(),
		m.deps.Queue.Listen(),
		m.waitForUpdate(),
	)
}

func (m AppModel) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	ch := m.updates
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return contentUpdatedMsg{event: e}
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case events.Msg:
		cmd := m.router.Update(msg.Inner)
		return m, tea.Batch(cmd, m.deps.Queue.Listen())

	case contentUpdatedMsg:
		m.deps.Log.Info().Str("type", msg.event.Type).Str("url", msg.event.URL).Msg("content updated")
		if msg.event.Type == netcache.EventDataUpdated {
			m.status = "new questions available"
			if m.deps.OnContentUpdated != nil {
				m.deps.OnContentUpdated()
			}
		} else {
			m.status = "update available"
		}
		return m, m.waitForUpdate()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, m.router.Update(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if bh, ok := m.router.Active().(screen.BackHandler); ok && bh.HandlesBack() {
				break
			}
			if m.router.Depth() > 1 {
				return m, router.Pop()
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.TooSmall(m.width, m.height))
		return v
	}

	active := m.router.Active()
	frame := layout.Frame{Title: active.Title(), Status: m.status}
	if kp, ok := active.(screen.KeyHintProvider); ok {
		frame.Hints = append(frame.Hints, kp.KeyHints()...)
	} else if m.router.Depth() > 1 {
		frame.Hints = append(frame.Hints, layout.KeyHint{Key: "Esc", Description: "Back"})
	}
	frame.Hints = append(frame.Hints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})

	body := m.router.View(m.width, frame.BodyHeight(m.height))
	v.SetContent(frame.Render(body, m.width, m.height))
	return v
}

// Run starts the Bubble Tea program and blocks until it exits or ctx is
// cancelled. Live sessions are discarded on the way out.
func Run(ctx context.Context, deps Deps) error {
	m := newAppModel(deps)
	if deps.Notifier != nil {
		ch, unsubscribe := deps.Notifier.Subscribe(4)
		defer unsubscribe()
		m.updates = ch
	}
	defer m.deps.Queue.Close()
	defer m.router.CloseAll()

	p := tea.NewProgram(m, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
