// Package theme holds the colours and shared styles of the TUI. The
// palette follows Polish road signage: information blue, warning amber,
// prohibition red.
package theme

import "charm.land/lipgloss/v2"

var (
	Primary   = lipgloss.Color("#1D4ED8") // information sign
	Secondary = lipgloss.Color("#0D9488") // motorway green-teal
	Accent    = lipgloss.Color("#F59E0B") // warning triangle
	Success   = lipgloss.Color("#16A34A")
	Error     = lipgloss.Color("#DC2626") // prohibition ring
	Text      = lipgloss.Color("#F1F5F9")
	TextDim   = lipgloss.Color("#8B9BB4")
	BgDark    = lipgloss.Color("#0B1220") // asphalt
	BgCard    = lipgloss.Color("#172033")
	Border    = lipgloss.Color("#2E3B52")
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	Body  = lipgloss.NewStyle().Foreground(Text)
	Hint  = lipgloss.NewStyle().Foreground(TextDim).Italic(true)

	Selected  = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	Correct   = lipgloss.NewStyle().Bold(true).Foreground(Success)
	Incorrect = lipgloss.NewStyle().Bold(true).Foreground(Error)

	ProgressFilled = lipgloss.NewStyle().Background(Secondary)
	ProgressEmpty  = lipgloss.NewStyle().Background(Border)

	// Category and status tags, e.g. "[downloaded]".
	Badge = lipgloss.NewStyle().Foreground(BgDark).Background(Secondary).Padding(0, 1)
)

// Buttons share a shape and differ in fill.
var (
	button = lipgloss.NewStyle().Bold(true).Padding(0, 2)

	ButtonActive   = button.Foreground(Text).Background(Primary)
	ButtonDanger   = button.Foreground(Text).Background(Error)
	ButtonInactive = button.Bold(false).Foreground(TextDim).Background(BgCard)
)

var (
	Modal       = lipgloss.NewStyle().Background(BgCard).Border(lipgloss.RoundedBorder()).BorderForeground(Primary).Padding(1, 3)
	ModalDanger = Modal.BorderForeground(Error)
)
