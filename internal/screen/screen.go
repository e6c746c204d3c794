// Package screen defines what the router stacks. Only Screen is required;
// the other interfaces are optional capabilities the router and the app
// model probe for.
package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/prawko/prawko/internal/ui/layout"
)

type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Screen, tea.Cmd)
	// View draws the body only; the frame is drawn by the app model.
	View(width, height int) string
	Title() string
}

// KeyHintProvider replaces the default "Esc Back" footer hint.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// BackHandler screens receive Esc instead of being popped by the app.
type BackHandler interface {
	HandlesBack() bool
}

// Closer releases screen-owned state, such as a live exam session, when
// the screen leaves the stack.
type Closer interface {
	Close()
}

// Resumer refreshes a screen uncovered by a pop.
type Resumer interface {
	Resume() tea.Cmd
}
