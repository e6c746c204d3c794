package learn

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/store"
)

// Mode selects how the learn queue is built.
type Mode string

const (
	ModeAdaptive Mode = "adaptive"
	ModeWrong    Mode = "wrong"
)

const modesKey = "queue_mode"

// Modes persists the preferred queue mode per category.
type Modes struct {
	kv  store.Backend
	log zerolog.Logger
	mu  sync.Mutex
}

// NewModes returns a Modes over kv.
func NewModes(kv store.Backend, log zerolog.Logger) *Modes {
	return &Modes{kv: kv, log: log}
}

// Get returns the stored mode for category, ModeAdaptive by default.
func (m *Modes) Get(ctx context.Context, category string) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all map[string]Mode
	store.LoadJSON(ctx, m.kv, modesKey, &all)
	if mode := all[category]; mode == ModeWrong {
		return mode
	}
	return ModeAdaptive
}

// Set stores mode for category.
func (m *Modes) Set(ctx context.Context, category string, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := map[string]Mode{}
	store.LoadJSON(ctx, m.kv, modesKey, &all)
	if all == nil {
		all = map[string]Mode{}
	}
	all[category] = mode
	if err := store.SaveJSON(ctx, m.kv, modesKey, all); err != nil {
		m.log.Warn().Err(err).Str("category", category).Msg("queue mode not saved")
		return err
	}
	return nil
}

// Reset forgets every stored mode.
func (m *Modes) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kv.Delete(ctx, modesKey)
}
