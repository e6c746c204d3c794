package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/router"
	"github.com/prawko/prawko/internal/store"
)

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return history.New(st.KV(), zerolog.Nop())
}

func seed(t *testing.T, hs *history.Store) {
	t.Helper()
	ctx := context.Background()
	for i, cat := range []string{"A", "B", "C"} {
		r := history.Result{
			Timestamp: time.Date(2025, 3, 1+i, 12, 0, 0, 0, time.UTC),
			Category:  cat,
			Score:     60 + i,
			MaxPoints: 74,
		}
		if err := hs.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
}

func load(s *HistoryScreen) {
	s.Update(s.Init()())
}

func TestHistoryNewestFirst(t *testing.T) {
	hs := newTestStore(t)
	seed(t, hs)
	s := New(hs)
	load(s)

	if len(s.results) != 3 || s.results[0].Category != "C" {
		t.Fatalf("expected newest first, got %+v", s.results)
	}
	if !strings.Contains(s.View(100, 30), "62/74") {
		t.Error("expected the newest score in the view")
	}
}

func TestHistoryEmpty(t *testing.T) {
	s := New(newTestStore(t))
	load(s)
	if !strings.Contains(s.View(80, 24), "No exams yet") {
		t.Error("expected the empty message")
	}
}

func TestHistoryDetailFollowsSelection(t *testing.T) {
	hs := newTestStore(t)
	seed(t, hs)
	s := New(hs)
	load(s)

	if !strings.Contains(s.View(100, 30), "83% of max") {
		t.Error("detail should describe the newest result first")
	}
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if s.selected != 2 {
		t.Fatalf("selection should stop at the last row, got %d", s.selected)
	}
	if !strings.Contains(s.View(100, 30), "81% of max") {
		t.Error("detail should follow the selection")
	}
}

func TestHistoryFilterCycles(t *testing.T) {
	hs := newTestStore(t)
	seed(t, hs)
	s := New(hs)
	load(s)

	press := func() { s.Update(tea.KeyPressMsg{Code: 'f', Text: "f"}) }

	press()
	if s.filter != "C" || len(s.results) != 1 || s.Title() != "History · C" {
		t.Fatalf("first filter should be the newest category, got %q with %d rows", s.filter, len(s.results))
	}
	press()
	press()
	if s.filter != "A" {
		t.Fatalf("filter = %q, want A", s.filter)
	}
	press()
	if s.filter != "" || len(s.results) != 3 {
		t.Errorf("filter should wrap back to all categories, got %q", s.filter)
	}
}

func TestHistoryClear(t *testing.T) {
	hs := newTestStore(t)
	seed(t, hs)
	s := New(hs)
	load(s)

	s.Update(tea.KeyPressMsg{Code: 'c', Text: "c"})
	if s.confirm == nil {
		t.Fatal("clearing should ask first")
	}
	_, cmd := s.Update(tea.KeyPressMsg{Code: 'y', Text: "y"})
	if cmd == nil {
		t.Fatal("confirming should clear")
	}
	s.Update(cmd())

	if len(s.results) != 0 {
		t.Error("screen should be empty after clearing")
	}
	if len(hs.Load(context.Background())) != 0 {
		t.Error("store should be empty after clearing")
	}
}

func TestHistoryClearCancelled(t *testing.T) {
	hs := newTestStore(t)
	seed(t, hs)
	s := New(hs)
	load(s)

	s.Update(tea.KeyPressMsg{Code: 'c', Text: "c"})
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd != nil {
		t.Error("cancelling should not clear")
	}
	if len(hs.Load(context.Background())) != 3 {
		t.Error("store should be untouched")
	}
}

func TestHistoryEscPops(t *testing.T) {
	s := New(newTestStore(t))
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("expected PopScreenMsg")
	}
}
