package components

import (
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/ui/theme"
)

// SearchInput wraps bubbles/textinput as a filter box.
type SearchInput struct {
	Model textinput.Model
}

// NewSearchInput creates an unfocused search box.
func NewSearchInput(placeholder string, maxWidth int) SearchInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "/ "
	if maxWidth > 0 {
		ti.CharLimit = maxWidth
	}
	return SearchInput{Model: ti}
}

// Focus starts accepting keys.
func (t *SearchInput) Focus() tea.Cmd {
	return t.Model.Focus()
}

// Blur stops accepting keys, keeping the query.
func (t *SearchInput) Blur() {
	t.Model.Blur()
}

// Focused reports whether the box accepts keys.
func (t SearchInput) Focused() bool {
	return t.Model.Focused()
}

// Reset clears the query.
func (t *SearchInput) Reset() {
	t.Model.Reset()
}

// Update handles messages.
func (t SearchInput) Update(msg tea.Msg) (SearchInput, tea.Cmd) {
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// View renders the search box; an empty, unfocused box renders dimmed.
func (t SearchInput) View() string {
	if !t.Focused() && t.Value() == "" {
		return lipgloss.NewStyle().Foreground(theme.TextDim).Render("/ search")
	}
	return t.Model.View()
}

// Value returns the current query.
func (t SearchInput) Value() string {
	return t.Model.Value()
}
