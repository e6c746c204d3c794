// Package history keeps the capped log of finished exam results.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/store"
)

// MaxEntries caps the log; the oldest entries are evicted first.
const MaxEntries = 50

const storageKey = "history"

// Result is one finished exam.
type Result struct {
	ID              string    `json:"id,omitempty"`
	Timestamp       time.Time `json:"date"`
	Category        string    `json:"category"`
	Score           int       `json:"score"`
	MaxPoints       int       `json:"maxPoints"`
	Passed          bool      `json:"passed"`
	BasicScore      int       `json:"basicScore"`
	SpecialistScore int       `json:"specialistScore"`
}

// Stats summarizes the results of one category.
type Stats struct {
	Attempts  int
	Passed    int
	LastScore int
	BestScore int
}

// Store reads and writes the result log.
type Store struct {
	kv  store.Backend
	log zerolog.Logger
}

// New returns a Store over kv.
func New(kv store.Backend, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log.With().Str("component", "history").Logger()}
}

// Save appends r, evicting the oldest entries beyond MaxEntries. A write
// failure is logged and returned; callers treat it as non-fatal.
func (s *Store) Save(ctx context.Context, r Result) error {
	all := append(s.Load(ctx), r)
	if len(all) > MaxEntries {
		all = all[len(all)-MaxEntries:]
	}
	if err := store.SaveJSON(ctx, s.kv, storageKey, all); err != nil {
		s.log.Warn().Err(err).Str("category", r.Category).Msg("exam result not saved")
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// Load returns the log, oldest first. Malformed entries are skipped and an
// unreadable log reads as empty.
func (s *Store) Load(ctx context.Context) []Result {
	var raw []json.RawMessage
	if !store.LoadJSON(ctx, s.kv, storageKey, &raw) {
		return nil
	}
	out := make([]Result, 0, len(raw))
	for _, item := range raw {
		if r, ok := decodeEntry(item); ok {
			out = append(out, r)
		}
	}
	return out
}

// Clear removes all results.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storageKey); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// CategoryStats summarizes the results for category. ok is false when the
// category has no results.
func (s *Store) CategoryStats(ctx context.Context, category string) (st Stats, ok bool) {
	for _, r := range s.Load(ctx) {
		if r.Category != category {
			continue
		}
		st.Attempts++
		if r.Passed {
			st.Passed++
		}
		st.LastScore = r.Score
		st.BestScore = max(st.BestScore, r.Score)
	}
	return st, st.Attempts > 0
}

// entryShape mirrors Result with pointers so missing fields are detectable.
type entryShape struct {
	Category *string  `json:"category"`
	Score    *float64 `json:"score"`
}

func decodeEntry(raw json.RawMessage) (Result, bool) {
	var shape entryShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return Result{}, false
	}
	if shape.Category == nil || shape.Score == nil {
		return Result{}, false
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return Result{}, false
	}
	return r, true
}
