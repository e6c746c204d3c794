package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/content"
)

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

func TestAnswerList_ShortcutKeys(t *testing.T) {
	basic := NewAnswerList(content.Question{ID: 1, Type: content.TypeBasic, Text: "Q", Correct: content.AnswerYes})
	if _, got := basic.Update(keyPress('n')); got != content.AnswerNo {
		t.Errorf("expected N, got %q", got)
	}

	specialistQ := NewAnswerList(content.Question{ID: 2, Type: content.TypeSpecialist, Text: "Q", A: "a", B: "b", C: "c", Correct: content.AnswerB})
	if _, got := specialistQ.Update(keyPress('3')); got != content.AnswerC {
		t.Errorf("expected C for key 3, got %q", got)
	}
	if _, got := specialistQ.Update(keyPress('t')); got != "" {
		t.Errorf("T is not an option of a specialist question, got %q", got)
	}
}

func TestAnswerList_CursorAndEnter(t *testing.T) {
	l := NewAnswerList(content.Question{ID: 2, Type: content.TypeSpecialist, Text: "Q", A: "a", B: "b", C: "c"})
	l, _ = l.Update(specialKey(tea.KeyDown))
	l, _ = l.Update(specialKey(tea.KeyDown))
	l, _ = l.Update(specialKey(tea.KeyDown))
	if l.Cursor != 2 {
		t.Fatalf("cursor = %d, want 2", l.Cursor)
	}
	if _, got := l.Update(specialKey(tea.KeyEnter)); got != content.AnswerC {
		t.Errorf("expected C, got %q", got)
	}
}

func TestAnswerList_RevealedIgnoresKeys(t *testing.T) {
	l := NewAnswerList(content.Question{ID: 1, Type: content.TypeBasic, Text: "Q", Correct: content.AnswerYes})
	l.Reveal("", content.AnswerYes)
	if _, got := l.Update(keyPress('t')); got != "" {
		t.Errorf("expected no answer after reveal, got %q", got)
	}
	if !strings.Contains(l.View(), "Time is up") {
		t.Error("expected timeout notice")
	}
}

func TestConfirm(t *testing.T) {
	c := NewConfirm("End exam?", "Your answers will be scored.", "End", "Continue", true)

	_, done, _ := c.Update(keyPress('x'))
	if done {
		t.Fatal("unrelated key should not decide")
	}

	_, done, confirmed := c.Update(specialKey(tea.KeyEnter))
	if !done || confirmed {
		t.Fatal("danger dialogs focus cancel first")
	}

	c, _, _ = c.Update(specialKey(tea.KeyTab))
	_, done, confirmed = c.Update(specialKey(tea.KeyEnter))
	if !done || !confirmed {
		t.Fatal("expected confirm after moving focus")
	}

	_, done, confirmed = c.Update(specialKey(tea.KeyEscape))
	if !done || confirmed {
		t.Fatal("esc cancels")
	}

	if v := c.View(80); !strings.Contains(v, "End exam?") || !strings.Contains(v, "Continue") {
		t.Errorf("view missing labels: %q", v)
	}
}

func TestMenu_SkipsDisabledAndWraps(t *testing.T) {
	var picked string
	m := NewMenu([]MenuItem{
		{Label: "Learn", Action: func() tea.Cmd { picked = "learn"; return nil }},
		{Label: "Download", Disabled: true},
		{Label: "Exam", Action: func() tea.Cmd { picked = "exam"; return nil }},
	})
	m, _, _ = m.Update(specialKey(tea.KeyDown))
	if m.Selected != 2 {
		t.Fatalf("selected = %d, want 2", m.Selected)
	}
	m, _, closed := m.Update(specialKey(tea.KeyDown))
	if m.Selected != 0 || closed {
		t.Fatalf("selected = %d closed = %v, want wrap to 0", m.Selected, closed)
	}
	m, _, _ = m.Update(specialKey(tea.KeyUp))
	if _, _, closed = m.Update(specialKey(tea.KeyEnter)); !closed || picked != "exam" {
		t.Errorf("picked = %q closed = %v", picked, closed)
	}
}

func TestMenu_ShortcutKeys(t *testing.T) {
	var picked string
	m := NewMenu([]MenuItem{
		{Label: "Learn", Key: "l", Action: func() tea.Cmd { picked = "learn"; return nil }},
		{Label: "Download", Key: "d", Disabled: true, Action: func() tea.Cmd { picked = "download"; return nil }},
	})
	if _, _, closed := m.Update(keyPress('d')); closed || picked != "" {
		t.Fatalf("disabled shortcut ran: picked = %q closed = %v", picked, closed)
	}
	if _, _, closed := m.Update(keyPress('L')); !closed || picked != "learn" {
		t.Fatalf("picked = %q closed = %v", picked, closed)
	}
	if _, _, closed := m.Update(specialKey(tea.KeyEscape)); !closed {
		t.Fatal("esc should close the menu")
	}
	if v := m.View(); !strings.Contains(v, "[L]") {
		t.Errorf("view should show shortcuts, got %q", v)
	}
}

func TestProgressBar(t *testing.T) {
	v := NewProgressBar("B", 0.5, 30).WithPercent().View()
	if !strings.Contains(v, "50%") {
		t.Errorf("expected percentage, got %q", v)
	}
	if w := lipgloss.Width(v); w != 30 {
		t.Errorf("width = %d, want 30", w)
	}

	plain := NewProgressBar("", 1.7, 12).WarnBelow(0.25)
	if plain.Fraction != 1 {
		t.Errorf("fraction not clamped: %v", plain.Fraction)
	}
	if strings.Contains(plain.View(), "%") {
		t.Error("percent shown without WithPercent")
	}
}
