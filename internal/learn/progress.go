package learn

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/spacedrep"
	"github.com/prawko/prawko/internal/store"
	"github.com/prawko/prawko/internal/timer"
)

// CurrentVersion is the version of the persisted progress document.
const CurrentVersion = 2

const progressKey = "learn_progress"

// Document is the persisted learn progress: category → question id → entry.
type Document struct {
	Version    int                                `json:"version"`
	Categories map[string]map[int]spacedrep.Entry `json:"categories"`
}

func newDocument() *Document {
	return &Document{Version: CurrentVersion, Categories: map[string]map[int]spacedrep.Entry{}}
}

// Upgrade decodes any known progress layout into the current document.
// Older layouts are:
//
//	v0: {"B": [12, 40]}               answered question ids, no answers
//	v1: {"B": {"12": "T", "40": "N"}} last answer per question
//
// v0 ids carry no answer and come back as unseen. Unreadable input yields
// an empty document. The second result reports whether raw was in an
// older layout and should be written back.
func Upgrade(raw []byte) (*Document, bool) {
	if len(raw) == 0 {
		return newDocument(), false
	}

	var head struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return newDocument(), false
	}
	if head.Version != nil {
		if *head.Version != CurrentVersion {
			return newDocument(), false
		}
		doc := newDocument()
		if err := json.Unmarshal(raw, doc); err != nil {
			return newDocument(), false
		}
		if doc.Categories == nil {
			doc.Categories = map[string]map[int]spacedrep.Entry{}
		}
		for cat, entries := range doc.Categories {
			if entries == nil {
				delete(doc.Categories, cat)
			}
		}
		return doc, false
	}

	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return newDocument(), false
	}
	doc := newDocument()
	for cat, v := range legacy {
		var answers map[string]content.Answer
		if err := json.Unmarshal(v, &answers); err != nil || answers == nil {
			// v0 lists, or garbage; nothing usable either way.
			continue
		}
		entries := map[int]spacedrep.Entry{}
		for id, a := range answers {
			qid, err := strconv.Atoi(id)
			if err != nil || a == "" {
				continue
			}
			entries[qid] = spacedrep.Entry{LastAnswer: a}
		}
		if len(entries) > 0 {
			doc.Categories[cat] = entries
		}
	}
	return doc, true
}

// storedVersion returns the version field of a persisted document, if any.
func storedVersion(raw []byte) (int, bool) {
	var head struct {
		Version *int `json:"version"`
	}
	if json.Unmarshal(raw, &head) != nil || head.Version == nil {
		return 0, false
	}
	return *head.Version, true
}

// Progress stores learn entries per category and question. The document
// is read and upgraded once, then served from memory; every change is
// written through.
type Progress struct {
	kv    store.Backend
	clock timer.Clock
	log   zerolog.Logger

	mu  sync.Mutex
	doc *Document
}

// NewProgress returns a Progress over kv.
func NewProgress(kv store.Backend, clock timer.Clock, log zerolog.Logger) *Progress {
	if clock == nil {
		clock = timer.RealClock
	}
	return &Progress{kv: kv, clock: clock, log: log.With().Str("component", "learn").Logger()}
}

func (p *Progress) loadLocked(ctx context.Context) *Document {
	if p.doc != nil {
		return p.doc
	}
	raw, ok, err := p.kv.Get(ctx, progressKey)
	if err != nil {
		p.log.Warn().Err(err).Msg("learn progress unreadable, starting empty")
	}
	if !ok {
		raw = nil
	}
	if v, ok := storedVersion(raw); ok && v != CurrentVersion {
		p.log.Warn().Int("version", v).Int("supported", CurrentVersion).
			Msg("learn progress has an unsupported version, starting empty; it will be overwritten on the next answer")
	}
	doc, upgraded := Upgrade(raw)
	p.doc = doc
	if upgraded {
		if err := store.SaveJSON(ctx, p.kv, progressKey, doc); err != nil {
			p.log.Warn().Err(err).Msg("upgraded learn progress not saved")
		} else {
			p.log.Info().Int("version", CurrentVersion).Msg("learn progress upgraded")
		}
	}
	return doc
}

// SaveAnswer records answer for a question and returns the new entry. A
// write failure is returned but the in-memory state keeps the answer.
func (p *Progress) SaveAnswer(ctx context.Context, category string, questionID int, answer content.Answer, correct bool) (spacedrep.Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc := p.loadLocked(ctx)
	entries := doc.Categories[category]
	if entries == nil {
		entries = map[int]spacedrep.Entry{}
		doc.Categories[category] = entries
	}
	e := spacedrep.Next(entries[questionID], answer, correct, p.clock.Now())
	entries[questionID] = e

	if err := store.SaveJSON(ctx, p.kv, progressKey, doc); err != nil {
		p.log.Warn().Err(err).Str("category", category).Int("question", questionID).Msg("learn answer not saved")
		return e, fmt.Errorf("save learn answer: %w", err)
	}
	return e, nil
}

// Answer returns the last recorded answer for a question.
func (p *Progress) Answer(ctx context.Context, category string, questionID int) (content.Answer, bool) {
	e, ok := p.Meta(ctx, category, questionID)
	if !ok || !e.Seen() {
		return "", false
	}
	return e.LastAnswer, true
}

// Meta returns the full entry for a question.
func (p *Progress) Meta(ctx context.Context, category string, questionID int) (spacedrep.Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.loadLocked(ctx).Categories[category][questionID]
	return e, ok
}

// Entries returns a copy of all entries of a category.
func (p *Progress) Entries(ctx context.Context, category string) map[int]spacedrep.Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	src := p.loadLocked(ctx).Categories[category]
	out := make(map[int]spacedrep.Entry, len(src))
	for id, e := range src {
		out[id] = e
	}
	return out
}

// Reset forgets all progress.
func (p *Progress) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = newDocument()
	if err := p.kv.Delete(ctx, progressKey); err != nil {
		return fmt.Errorf("reset learn progress: %w", err)
	}
	return nil
}
