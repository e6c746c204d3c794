package categories

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/offline"
	"github.com/prawko/prawko/internal/router"
)

type stubProvider struct {
	err error
}

func (p stubProvider) FetchMeta(context.Context) (*content.Meta, error) { return testMeta(), nil }

func (p stubProvider) FetchCategory(_ context.Context, id string) (*content.CategoryData, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &content.CategoryData{Category: id, Questions: []content.Question{
		{ID: 1, Type: content.TypeBasic, Text: "q", Correct: content.AnswerYes},
	}}, nil
}

func testMeta() *content.Meta {
	return &content.Meta{
		Categories: []content.Category{
			{ID: "A", Name: "Motorcycle", QuestionCount: 900},
			{ID: "B", Name: "Car", QuestionCount: 1800},
			{ID: "C", Name: "Truck", QuestionCount: 1100},
		},
		Exam: content.DefaultRules(),
	}
}

func newTestScreen(p content.Provider) *Screen {
	return New(Deps{Meta: testMeta(), Content: p, Log: zerolog.Nop()})
}

func key(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func TestSearchFilters(t *testing.T) {
	s := newTestScreen(stubProvider{})
	if len(s.visible) != 3 {
		t.Fatalf("expected all categories, got %d", len(s.visible))
	}

	s.Update(key('/'))
	if !s.search.Focused() {
		t.Fatal("slash should focus search")
	}
	for _, r := range "tru" {
		s.Update(key(r))
	}
	if len(s.visible) != 1 || s.visible[0].ID != "C" {
		t.Fatalf("expected only C, got %+v", s.visible)
	}

	s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if len(s.visible) != 3 || s.search.Focused() {
		t.Error("esc should clear the search")
	}
}

func TestLaunchLearn(t *testing.T) {
	s := newTestScreen(stubProvider{})
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if s.actions == nil {
		t.Fatal("enter should open the action menu")
	}

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("choosing Learn should load the category")
	}
	if s.loading != "B" {
		t.Errorf("loading = %q, want B", s.loading)
	}

	_, cmd = s.Update(cmd())
	if cmd == nil {
		t.Fatal("a loaded category should open a screen")
	}
	push, ok := cmd().(router.PushScreenMsg)
	if !ok {
		t.Fatalf("expected PushScreenMsg, got %T", cmd())
	}
	if push.Screen.Title() != "Learn · B" {
		t.Errorf("pushed %q", push.Screen.Title())
	}
}

func TestLaunchExam(t *testing.T) {
	s := newTestScreen(stubProvider{})
	s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	_, cmd := s.Update(key('e'))
	if s.actions != nil {
		t.Fatal("a shortcut should close the action menu")
	}

	_, cmd = s.Update(cmd())
	push, ok := cmd().(router.PushScreenMsg)
	if !ok {
		t.Fatal("expected PushScreenMsg")
	}
	if push.Screen.Title() != "Exam · A" {
		t.Errorf("pushed %q", push.Screen.Title())
	}
}

func TestLoadFailureStaysOnList(t *testing.T) {
	s := newTestScreen(stubProvider{err: errors.New("offline")})
	s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})

	_, cmd = s.Update(cmd())
	if cmd != nil {
		t.Error("a failed load should not navigate")
	}
	if !strings.Contains(s.View(80, 24), "Could not load questions") {
		t.Error("expected a status message")
	}
}

func TestMetaFailureIsStatic(t *testing.T) {
	s := New(Deps{MetaErr: errors.New("no network"), Log: zerolog.Nop()})
	if s.Init() != nil {
		t.Error("nothing to load without meta")
	}
	view := s.View(80, 24)
	if !strings.Contains(view, "Could not load the question list") || !strings.Contains(view, "no network") {
		t.Errorf("unexpected view %q", view)
	}
	if _, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter}); cmd != nil {
		t.Error("no retry affordance")
	}
}

func TestBadgesAndStats(t *testing.T) {
	s := newTestScreen(stubProvider{})
	s.Update(statsLoadedMsg{
		downloaded: map[string]bool{"B": true},
		stats:      map[string]history.Stats{"B": {Attempts: 4, Passed: 1, BestScore: 70}},
	})
	view := s.View(120, 30)
	if !strings.Contains(view, "offline") {
		t.Error("expected the offline badge")
	}
	if !strings.Contains(view, "4 exams") {
		t.Error("expected category stats")
	}
}

func TestDownloadProgress(t *testing.T) {
	s := newTestScreen(stubProvider{})
	s.downloading = "B"

	s.Update(downloadProgressMsg{category: "B", progress: offline.Progress{Completed: 3, Total: 6}})
	if !strings.Contains(s.View(100, 30), "B 3/6") {
		t.Error("expected download progress")
	}

	s.Update(downloadDoneMsg{category: "B", result: offline.Result{Total: 6, Failed: 2}})
	if s.downloading != "" {
		t.Error("download should be over")
	}
	if !strings.Contains(s.status, "2 of 6") {
		t.Errorf("status = %q", s.status)
	}
}
