package components

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/ui/theme"
)

// Confirm is a two-button modal dialog.
type Confirm struct {
	Title        string
	Body         string
	ConfirmLabel string
	CancelLabel  string
	Danger       bool

	// focusConfirm is true when the confirm button has focus.
	focusConfirm bool
}

// NewConfirm creates a dialog with the confirm button focused.
func NewConfirm(title, body, confirmLabel, cancelLabel string, danger bool) Confirm {
	if confirmLabel == "" {
		confirmLabel = "OK"
	}
	if cancelLabel == "" {
		cancelLabel = "Cancel"
	}
	return Confirm{
		Title:        title,
		Body:         body,
		ConfirmLabel: confirmLabel,
		CancelLabel:  cancelLabel,
		Danger:       danger,
		focusConfirm: !danger,
	}
}

// Update handles a key. done is true once the user decided; confirmed
// tells which way.
func (c Confirm) Update(msg tea.Msg) (m Confirm, done, confirmed bool) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, false, false
	}
	switch kmsg.String() {
	case "left", "right", "tab", "h", "l":
		c.focusConfirm = !c.focusConfirm
	case "enter", "space":
		return c, true, c.focusConfirm
	case "y", "Y":
		return c, true, true
	case "n", "N", "esc":
		return c, true, false
	}
	return c, false, false
}

// View renders the dialog centered in width.
func (c Confirm) View(width int) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.Text).Render(c.Title)
	body := lipgloss.NewStyle().Foreground(theme.Text).Width(min(60, max(20, width-10))).Render(c.Body)
	confirm := theme.ButtonActive
	if c.Danger {
		confirm = theme.ButtonDanger
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Center,
		button(c.CancelLabel, !c.focusConfirm, theme.ButtonActive),
		"  ",
		button(c.ConfirmLabel, c.focusConfirm, confirm),
	)

	style := theme.Modal
	if c.Danger {
		style = theme.ModalDanger
	}
	box := style.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", buttons))
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
}

func button(label string, focused bool, active lipgloss.Style) string {
	if focused {
		return active.Render("▸ " + label + " ")
	}
	return theme.ButtonInactive.Render("  " + label + " ")
}
