// Package categories is the home screen: the searchable category list
// from which learning, exams and offline downloads are started.
package categories

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/learn"
	"github.com/prawko/prawko/internal/offline"
	"github.com/prawko/prawko/internal/router"
	"github.com/prawko/prawko/internal/screen"
	historyscreen "github.com/prawko/prawko/internal/screens/history"
	"github.com/prawko/prawko/internal/screens/quiz"
	"github.com/prawko/prawko/internal/screens/study"
	"github.com/prawko/prawko/internal/ui/components"
	"github.com/prawko/prawko/internal/ui/events"
	"github.com/prawko/prawko/internal/ui/layout"
	"github.com/prawko/prawko/internal/ui/theme"
)

// loadTimeout bounds a category fetch started from the list.
const loadTimeout = 20 * time.Second

// Deps are the collaborators of the category list.
type Deps struct {
	Meta    *content.Meta
	MetaErr error
	Content content.Provider
	Exam    quiz.Deps
	Learn   *learn.Controller
	History *history.Store
	// Offline may be nil, which hides download actions.
	Offline *offline.Downloader
	// Queue carries download progress from the download goroutine.
	Queue *events.Queue
	Log   zerolog.Logger
}

type launchMode int

const (
	launchLearn launchMode = iota
	launchExam
)

type statsLoadedMsg struct {
	downloaded map[string]bool
	stats      map[string]history.Stats
}

type categoryLoadedMsg struct {
	mode launchMode
	data *content.CategoryData
	err  error
}

type downloadProgressMsg struct {
	category string
	progress offline.Progress
}

type downloadDoneMsg struct {
	category string
	result   offline.Result
	err      error
}

// Screen lists categories.
type Screen struct {
	deps Deps

	search   components.SearchInput
	visible  []content.Category
	selected int

	downloaded map[string]bool
	stats      map[string]history.Stats

	actions *components.Menu
	loading string
	status  string

	downloading string
	progress    offline.Progress
}

var (
	_ screen.Screen          = (*Screen)(nil)
	_ screen.KeyHintProvider = (*Screen)(nil)
	_ screen.BackHandler     = (*Screen)(nil)
	_ screen.Resumer         = (*Screen)(nil)
)

// New creates the category list.
func New(deps Deps) *Screen {
	s := &Screen{
		deps:       deps,
		search:     components.NewSearchInput("category", 32),
		downloaded: map[string]bool{},
		stats:      map[string]history.Stats{},
	}
	s.filter()
	return s
}

func (s *Screen) Init() tea.Cmd {
	return s.loadStats()
}

// Resume reloads badges and stats after a session screen closes.
func (s *Screen) Resume() tea.Cmd {
	return s.loadStats()
}

func (s *Screen) Title() string { return "Categories" }

func (s *Screen) HandlesBack() bool {
	return s.actions != nil || s.search.Focused() || s.search.Value() != ""
}

func (s *Screen) KeyHints() []layout.KeyHint {
	switch {
	case s.search.Focused():
		return []layout.KeyHint{
			{Key: "Enter", Description: "Done"},
			{Key: "Esc", Description: "Clear"},
		}
	case s.actions != nil:
		return []layout.KeyHint{
			{Key: "↑↓", Description: "Navigate"},
			{Key: "Enter", Description: "Select"},
			{Key: "Esc", Description: "Close"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Search"},
		{Key: "H", Description: "History"},
		{Key: "Q", Description: "Quit"},
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case statsLoadedMsg:
		s.downloaded = msg.downloaded
		s.stats = msg.stats
		return s, nil

	case categoryLoadedMsg:
		s.loading = ""
		if msg.err != nil {
			s.deps.Log.Warn().Err(msg.err).Msg("category load failed")
			s.status = "Could not load questions: " + msg.err.Error()
			return s, nil
		}
		s.status = ""
		if msg.mode == launchExam {
			return s, router.Push(quiz.New(s.deps.Exam, *msg.data))
		}
		return s, router.Push(study.New(s.deps.Learn, *msg.data))

	case downloadProgressMsg:
		if msg.category == s.downloading {
			s.progress = msg.progress
		}
		return s, nil

	case downloadDoneMsg:
		if msg.category == s.downloading {
			s.downloading = ""
		}
		s.status = downloadStatus(msg)
		return s, s.loadStats()

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.search.Focused() {
		var cmd tea.Cmd
		s.search, cmd = s.search.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *Screen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if s.deps.Meta == nil {
		if msg.String() == "q" {
			return s, tea.Quit
		}
		return s, nil
	}

	if s.search.Focused() {
		switch msg.String() {
		case "esc":
			s.search.Reset()
			s.search.Blur()
			s.filter()
			return s, nil
		case "enter", "down":
			s.search.Blur()
			return s, nil
		}
		var cmd tea.Cmd
		s.search, cmd = s.search.Update(msg)
		s.filter()
		return s, cmd
	}

	if s.actions != nil {
		m, cmd, closed := s.actions.Update(msg)
		if closed {
			s.actions = nil
		} else {
			s.actions = &m
		}
		return s, cmd
	}

	switch msg.String() {
	case "esc":
		s.search.Reset()
		s.filter()
		return s, nil
	case "q":
		return s, tea.Quit
	case "/":
		return s, s.search.Focus()
	case "h":
		if s.deps.History != nil {
			return s, router.Push(historyscreen.New(s.deps.History))
		}
		return s, nil
	case "up", "k":
		if s.selected > 0 {
			s.selected--
		}
		return s, nil
	case "down", "j":
		if s.selected < len(s.visible)-1 {
			s.selected++
		}
		return s, nil
	case "enter":
		if s.loading == "" && s.selected < len(s.visible) {
			m := s.actionMenu(s.visible[s.selected])
			s.actions = &m
		}
		return s, nil
	}
	return s, nil
}

func (s *Screen) actionMenu(c content.Category) components.Menu {
	items := []components.MenuItem{
		{Label: "Learn", Key: "l", Action: func() tea.Cmd { return s.launch(c.ID, launchLearn) }},
		{Label: "Exam", Key: "e", Action: func() tea.Cmd { return s.launch(c.ID, launchExam) }},
	}
	if s.deps.Offline != nil {
		switch {
		case s.downloading == c.ID:
			items = append(items, components.MenuItem{Label: "Cancel download", Key: "x", Action: func() tea.Cmd {
				s.deps.Offline.Cancel()
				return nil
			}})
		case s.downloaded[c.ID]:
			items = append(items, components.MenuItem{Label: "Downloaded", Disabled: true})
		default:
			items = append(items, components.MenuItem{
				Label:    "Download for offline use",
				Key:      "d",
				Action:   func() tea.Cmd { return s.download(c.ID) },
				Disabled: s.downloading != "",
			})
		}
	}
	return components.NewMenu(items)
}

func (s *Screen) launch(id string, mode launchMode) tea.Cmd {
	s.loading = id
	s.status = ""
	provider := s.deps.Content
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		data, err := provider.FetchCategory(ctx, id)
		return categoryLoadedMsg{mode: mode, data: data, err: err}
	}
}

func (s *Screen) download(id string) tea.Cmd {
	s.downloading = id
	s.progress = offline.Progress{}
	s.status = ""
	d, q := s.deps.Offline, s.deps.Queue
	return func() tea.Msg {
		res, err := d.Download(context.Background(), id, func(p offline.Progress) {
			if q != nil {
				q.Push(downloadProgressMsg{category: id, progress: p})
			}
		})
		return downloadDoneMsg{category: id, result: res, err: err}
	}
}

func (s *Screen) loadStats() tea.Cmd {
	if s.deps.Meta == nil {
		return nil
	}
	cats := s.deps.Meta.Categories
	d, hs := s.deps.Offline, s.deps.History
	return func() tea.Msg {
		ctx := context.Background()
		msg := statsLoadedMsg{downloaded: map[string]bool{}, stats: map[string]history.Stats{}}
		if d != nil {
			msg.downloaded = d.Downloaded(ctx)
		}
		if hs != nil {
			for _, c := range cats {
				if st, ok := hs.CategoryStats(ctx, c.ID); ok {
					msg.stats[c.ID] = st
				}
			}
		}
		return msg
	}
}

func (s *Screen) filter() {
	if s.deps.Meta == nil {
		return
	}
	s.visible = content.Search(s.deps.Meta.Categories, s.search.Value())
	if s.selected >= len(s.visible) {
		s.selected = max(0, len(s.visible)-1)
	}
}

func downloadStatus(msg downloadDoneMsg) string {
	switch {
	case msg.err != nil:
		return fmt.Sprintf("Download of %s failed: %v", msg.category, msg.err)
	case msg.result.Cancelled:
		return fmt.Sprintf("Download of %s cancelled.", msg.category)
	case !msg.result.Success:
		return fmt.Sprintf("%d of %d files for %s failed. Try again later.", msg.result.Failed, msg.result.Total, msg.category)
	}
	return fmt.Sprintf("%s is available offline.", msg.category)
}

func (s *Screen) View(width, height int) string {
	if s.deps.Meta == nil {
		text := "\n\n  Could not load the question list."
		if s.deps.MetaErr != nil {
			text += "\n\n  " + s.deps.MetaErr.Error()
		}
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(text)
	}

	var b strings.Builder
	b.WriteString("\n  ")
	b.WriteString(s.search.View())
	b.WriteString("\n\n")

	if len(s.visible) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Italic(true).
			Render("  No category matches."))
		b.WriteString("\n")
	}

	for i, c := range s.visible {
		b.WriteString(s.renderRow(c, i == s.selected, width))
		b.WriteString("\n")
		if i == s.selected && s.actions != nil {
			b.WriteString(indent(s.actions.View(), "      "))
		}
	}

	if s.downloading != "" {
		b.WriteString("\n")
		frac := 0.0
		if s.progress.Total > 0 {
			frac = float64(s.progress.Completed) / float64(s.progress.Total)
		}
		label := fmt.Sprintf("%s %d/%d", s.downloading, s.progress.Completed, s.progress.Total)
		b.WriteString("  " + components.NewProgressBar(label, frac, min(60, width-4)).WithPercent().View())
		b.WriteString("\n")
	}

	if s.loading != "" {
		b.WriteString("\n")
		b.WriteString(theme.Hint.Render("  Loading " + s.loading + "..."))
		b.WriteString("\n")
	}
	if s.status != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Accent).Render("  " + s.status))
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Screen) renderRow(c content.Category, selected bool, width int) string {
	prefix := "  "
	style := lipgloss.NewStyle().Foreground(theme.Text)
	if selected {
		prefix = "▸ "
		style = style.Foreground(theme.Primary).Bold(true)
	}

	line := style.Render(fmt.Sprintf("%s%-4s %s", prefix, c.ID, c.Name))
	line += theme.Hint.Render(fmt.Sprintf("  %d questions", c.QuestionCount))

	if s.downloaded[c.ID] {
		line += " " + theme.Badge.Render("offline")
	}
	if st, ok := s.stats[c.ID]; ok && !layout.IsCompactWidth(width) {
		line += theme.Hint.Render(fmt.Sprintf("  %d exams · %d passed · best %d", st.Attempts, st.Passed, st.BestScore))
	}
	return line
}

func indent(s, pad string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n") + "\n"
}
