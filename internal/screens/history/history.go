package history

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/router"
	"github.com/prawko/prawko/internal/screen"
	"github.com/prawko/prawko/internal/ui/components"
	"github.com/prawko/prawko/internal/ui/layout"
	"github.com/prawko/prawko/internal/ui/theme"
)

type loadedMsg []history.Result

type clearedMsg struct{ err error }

// HistoryScreen lists past exams newest first. F cycles a category filter,
// C clears the log after confirmation.
type HistoryScreen struct {
	store *history.Store

	all      []history.Result
	results  []history.Result // all, filtered by category
	filter   string           // "" shows every category
	selected int
	loaded   bool
	err      error
	confirm  *components.Confirm
}

var (
	_ screen.Screen          = (*HistoryScreen)(nil)
	_ screen.KeyHintProvider = (*HistoryScreen)(nil)
	_ screen.BackHandler     = (*HistoryScreen)(nil)
)

func New(hs *history.Store) *HistoryScreen {
	return &HistoryScreen{store: hs}
}

func (s *HistoryScreen) Init() tea.Cmd {
	return func() tea.Msg {
		all := s.store.Load(context.Background())
		slices.Reverse(all)
		return loadedMsg(all)
	}
}

func (s *HistoryScreen) Title() string {
	if s.filter != "" {
		return "History · " + s.filter
	}
	return "History"
}

func (s *HistoryScreen) HandlesBack() bool { return true }

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	if s.confirm != nil {
		return []layout.KeyHint{{Key: "←→", Description: "Choose"}, {Key: "Enter", Description: "Select"}}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "F", Description: "Filter"},
		{Key: "C", Description: "Clear"},
		{Key: "Esc", Description: "Back"},
	}
}

// categories present in the log, in first-seen order.
func (s *HistoryScreen) categories() []string {
	var cats []string
	for _, r := range s.all {
		if !slices.Contains(cats, r.Category) {
			cats = append(cats, r.Category)
		}
	}
	return cats
}

func (s *HistoryScreen) applyFilter() {
	s.results = s.all
	if s.filter != "" {
		s.results = slices.DeleteFunc(slices.Clone(s.all), func(r history.Result) bool {
			return r.Category != s.filter
		})
	}
	s.selected = min(s.selected, max(0, len(s.results)-1))
}

// cycleFilter steps through "" and each category.
func (s *HistoryScreen) cycleFilter() {
	options := append([]string{""}, s.categories()...)
	i := slices.Index(options, s.filter)
	s.filter = options[(i+1)%len(options)]
	s.selected = 0
	s.applyFilter()
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.all, s.loaded = msg, true
		s.applyFilter()
	case clearedMsg:
		if msg.err != nil {
			s.err = msg.err
			return s, nil
		}
		s.all, s.filter, s.selected = nil, "", 0
		s.applyFilter()
	case tea.KeyMsg:
		if s.confirm != nil {
			return s, s.updateConfirm(msg)
		}
		switch msg.String() {
		case "esc":
			return s, router.Pop()
		case "up", "k":
			s.selected = max(0, s.selected-1)
		case "down", "j":
			s.selected = max(0, min(len(s.results)-1, s.selected+1))
		case "f":
			s.cycleFilter()
		case "c":
			if len(s.all) > 0 {
				c := components.NewConfirm("Clear history?", "All exam results will be deleted.", "Clear", "Keep", true)
				s.confirm = &c
			}
		}
	}
	return s, nil
}

func (s *HistoryScreen) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	c, done, ok := s.confirm.Update(msg)
	if !done {
		s.confirm = &c
		return nil
	}
	s.confirm = nil
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return clearedMsg{err: s.store.Clear(context.Background())}
	}
}

func centered(width int, style lipgloss.Style, text string) string {
	return style.Width(width).Align(lipgloss.Center).Render(text)
}

func (s *HistoryScreen) View(width, height int) string {
	switch {
	case s.confirm != nil:
		return "\n\n" + s.confirm.View(width)
	case s.err != nil:
		return centered(width, lipgloss.NewStyle().Foreground(theme.Error), "\n\nCould not clear history: "+s.err.Error())
	case !s.loaded:
		return centered(width, theme.Hint, "\n\nLoading history...")
	case len(s.all) == 0:
		return centered(width, theme.Hint, "\n\nNo exams yet. Take one from the category list!")
	}

	header := fmt.Sprintf("  %-18s %-4s %7s  %s", "Date", "Cat", "Score", "Result")
	lines := []string{"", lipgloss.NewStyle().Foreground(theme.TextDim).Bold(true).Render(header)}

	// Keep the selected row visible; leave room for header and detail.
	rows := max(1, height-6)
	first := max(0, s.selected-rows+1)
	for i := first; i < min(len(s.results), first+rows); i++ {
		lines = append(lines, s.row(i))
	}
	if len(s.results) > 0 {
		lines = append(lines, "", s.detail(s.results[s.selected]))
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, strings.Join(lines, "\n"))
}

func (s *HistoryScreen) row(i int) string {
	r := s.results[i]
	cursor, style := "  ", theme.Body
	if i == s.selected {
		cursor, style = "▸ ", theme.Selected
	}
	verdict := theme.Incorrect.Render("failed")
	if r.Passed {
		verdict = theme.Correct.Render("passed")
	}
	return style.Render(fmt.Sprintf("%s%-18s %-4s %3d/%-3d  ",
		cursor, r.Timestamp.Local().Format("2006-01-02 15:04"), r.Category, r.Score, r.MaxPoints)) + verdict
}

func (s *HistoryScreen) detail(r history.Result) string {
	pct := 0
	if r.MaxPoints > 0 {
		pct = r.Score * 100 / r.MaxPoints
	}
	return theme.Hint.Render(fmt.Sprintf("basic %d  ·  specialist %d  ·  %d%% of max", r.BasicScore, r.SpecialistScore, pct))
}
