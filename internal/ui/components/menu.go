package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/ui/theme"
)

// MenuItem is one action. Key, when set, triggers it directly.
type MenuItem struct {
	Label    string
	Key      string
	Action   func() tea.Cmd
	Disabled bool
}

// Menu is a small popup list of actions. Choosing an item or pressing
// esc closes it.
type Menu struct {
	Items    []MenuItem
	Selected int
}

func NewMenu(items []MenuItem) Menu {
	m := Menu{Items: items, Selected: -1}
	m.Selected = m.next(-1, 1)
	return m
}

// next returns the first enabled index after from in direction dir,
// wrapping around. It returns from when nothing is enabled.
func (m Menu) next(from, dir int) int {
	n := len(m.Items)
	for step := 1; step <= n; step++ {
		i := ((from+dir*step)%n + n) % n
		if !m.Items[i].Disabled {
			return i
		}
	}
	return from
}

// Update handles a key. closed reports that the menu should go away,
// either because an action ran or the user backed out.
func (m Menu) Update(msg tea.KeyMsg) (menu Menu, cmd tea.Cmd, closed bool) {
	if len(m.Items) == 0 {
		return m, nil, true
	}
	switch k := msg.String(); k {
	case "esc":
		return m, nil, true
	case "up", "k":
		m.Selected = m.next(m.Selected, -1)
	case "down", "j", "tab":
		m.Selected = m.next(m.Selected, 1)
	case "enter", "space":
		return m, m.run(m.Selected), true
	default:
		for i, it := range m.Items {
			if it.Key != "" && strings.EqualFold(it.Key, k) && !it.Disabled {
				m.Selected = i
				return m, m.run(i), true
			}
		}
	}
	return m, nil, false
}

func (m Menu) run(i int) tea.Cmd {
	if i < 0 || i >= len(m.Items) {
		return nil
	}
	it := m.Items[i]
	if it.Disabled || it.Action == nil {
		return nil
	}
	return it.Action()
}

func (m Menu) View() string {
	cursor := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)
	text := lipgloss.NewStyle().Foreground(theme.Text)

	var b strings.Builder
	for i, it := range m.Items {
		key := "   "
		if it.Key != "" {
			key = "[" + strings.ToUpper(it.Key) + "]"
		}
		switch {
		case it.Disabled:
			b.WriteString("    " + dim.Render(key+" "+it.Label))
		case i == m.Selected:
			b.WriteString(cursor.Render("  ▸ " + key + " " + it.Label))
		default:
			b.WriteString("    " + dim.Render(key) + " " + text.Render(it.Label))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
