// Package translate produces machine translations of the question bank.
// Output is a single JSON object keyed by question id:
//
//	{"123": {"q": "...", "a": "...", "b": "...", "c": "..."}}
//
// Runs resume from an existing output file and save after every batch, so
// an interrupted run loses at most one batch of work.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/llm"
)

// DefaultBatchSize is the number of strings sent in one request.
const DefaultBatchSize = 40

// ErrMismatch is returned when a batch response does not line up with
// the request.
var ErrMismatch = errors.New("translate: response does not match batch")

// Translations maps question id → field (q, a, b, c) → text.
type Translations map[string]map[string]string

// Item is one string to translate.
type Item struct {
	ID    string
	Field string
	Text  string
}

// Progress is reported after every batch.
type Progress struct {
	Done  int
	Total int
}

// Report summarizes a run.
type Report struct {
	Questions int
	Items     int
	Skipped   int
	Failed    int
	Usage     llm.Usage
	CostUSD   float64
}

type Options struct {
	Provider  llm.Provider
	From      string
	To        string
	BatchSize int
	Log       zerolog.Logger
}

// Translator sends work items to an LLM provider in batches.
type Translator struct {
	provider  llm.Provider
	from, to  string
	batchSize int
	log       zerolog.Logger
}

func New(opts Options) *Translator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.From == "" {
		opts.From = "Polish"
	}
	if opts.To == "" {
		opts.To = "English"
	}
	return &Translator{
		provider:  opts.Provider,
		from:      opts.From,
		to:        opts.To,
		batchSize: opts.BatchSize,
		log:       opts.Log.With().Str("component", "translate").Logger(),
	}
}

// Work lists the strings of questions that existing does not cover yet.
// Basic questions contribute only their text; specialist questions also
// contribute every non-empty option.
func Work(questions []content.Question, existing Translations) []Item {
	var items []Item
	add := func(id, field, text string) {
		if text == "" || existing[id][field] != "" {
			return
		}
		items = append(items, Item{ID: id, Field: field, Text: text})
	}
	for _, q := range questions {
		id := strconv.Itoa(q.ID)
		add(id, "q", q.Text)
		if q.Type == content.TypeSpecialist {
			add(id, "a", q.A)
			add(id, "b", q.B)
			add(id, "c", q.C)
		}
	}
	return items
}

// Run translates every question not yet present in the file at out and
// writes the merged result back after each batch. When ctx is cancelled the
// work done so far is kept and ctx.Err() is returned.
func (t *Translator) Run(ctx context.Context, questions []content.Question, out string, onProgress func(Progress)) (*Report, error) {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	ctx = llm.WithPurpose(ctx, "translate")

	result, err := Load(out)
	if err != nil {
		return nil, err
	}
	work := Work(questions, result)
	report := &Report{Questions: len(questions), Items: len(work)}
	report.Skipped = countStrings(questions) - len(work)

	if len(work) == 0 {
		t.log.Info().Int("questions", len(questions)).Msg("nothing to translate")
		return report, nil
	}
	t.log.Info().Int("items", len(work)).Int("skipped", report.Skipped).Msg("translation started")

	done := 0
	for start := 0; start < len(work); start += t.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		batch := work[start:min(start+t.batchSize, len(work))]

		texts, failed := t.translateBatch(ctx, batch, report)
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Failed += failed

		for i, it := range batch {
			if result[it.ID] == nil {
				result[it.ID] = make(map[string]string)
			}
			result[it.ID][it.Field] = texts[i]
		}
		if err := Save(out, result); err != nil {
			return report, err
		}

		done += len(batch)
		onProgress(Progress{Done: done, Total: len(work)})
	}

	if c := llm.LookupCost(t.provider.ModelID()); c != nil {
		report.CostUSD = c.Cost(report.Usage.InputTokens, report.Usage.OutputTokens)
	}
	t.log.Info().Int("items", report.Items).Int("failed", report.Failed).
		Int("input_tokens", report.Usage.InputTokens).Int("output_tokens", report.Usage.OutputTokens).
		Msg("translation finished")
	return report, nil
}

// translateBatch returns one text per item. When the batch request fails
// the items are retried one by one; an item that still fails keeps its
// original text.
func (t *Translator) translateBatch(ctx context.Context, batch []Item, report *Report) ([]string, int) {
	texts := make([]string, len(batch))
	for i, it := range batch {
		texts[i] = it.Text
	}

	out, err := t.many(ctx, texts, report)
	if err == nil {
		return out, 0
	}
	if ctx.Err() != nil {
		return texts, 0
	}
	t.log.Warn().Err(err).Int("size", len(batch)).Msg("batch translation failed, trying one by one")

	failed := 0
	for i, it := range batch {
		s, err := t.one(ctx, it.Text, report)
		if err != nil {
			if ctx.Err() != nil {
				return texts, failed
			}
			t.log.Warn().Err(err).Str("id", it.ID).Str("field", it.Field).
				Str("text", preview(it.Text)).Msg("translation failed, keeping original")
			failed++
			continue
		}
		texts[i] = s
	}
	return texts, failed
}

var (
	batchSchema = &llm.Schema{
		Name:        "translation-batch",
		Description: "Translations in the same order as the input strings.",
		Definition: map[string]any{
			"type":                 "object",
			"required":             []any{"translations"},
			"additionalProperties": false,
			"properties": map[string]any{
				"translations": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
		},
	}

	singleSchema = &llm.Schema{
		Name:        "translation",
		Description: "Translation of the input string.",
		Definition: map[string]any{
			"type":                 "object",
			"required":             []any{"translation"},
			"additionalProperties": false,
			"properties": map[string]any{
				"translation": map[string]any{"type": "string"},
			},
		},
	}
)

func (t *Translator) system() string {
	return fmt.Sprintf("You translate driving licence theory exam questions from %s to %s. "+
		"Keep the meaning exact and use standard road traffic terminology. "+
		"Do not add explanations. Preserve numbers, units and punctuation.", t.from, t.to)
}

func (t *Translator) many(ctx context.Context, texts []string, report *Report) ([]string, error) {
	input, err := json.Marshal(texts)
	if err != nil {
		return nil, err
	}
	resp, err := t.provider.Generate(ctx, llm.Request{
		System:    t.system(),
		Prompt:    fmt.Sprintf("Translate each string of this JSON array. Return exactly %d translations in the same order.\n\n%s", len(texts), input),
		Schema:    batchSchema,
		MaxTokens: 8192,
	})
	if err != nil {
		return nil, err
	}
	report.Usage = report.Usage.Add(resp.Usage)

	var out struct {
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if len(out.Translations) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrMismatch, len(texts), len(out.Translations))
	}
	return out.Translations, nil
}

func (t *Translator) one(ctx context.Context, text string, report *Report) (string, error) {
	resp, err := t.provider.Generate(ctx, llm.Request{
		System:    t.system(),
		Prompt:    text,
		Schema:    singleSchema,
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	report.Usage = report.Usage.Add(resp.Usage)

	var out struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("decode translation: %w", err)
	}
	if strings.TrimSpace(out.Translation) == "" {
		return "", errors.New("empty translation")
	}
	return out.Translation, nil
}

func countStrings(questions []content.Question) int {
	return len(Work(questions, nil))
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}

// Load reads a translations file. A missing file is an empty result.
func Load(path string) (Translations, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Translations{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}
	t := Translations{}
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode translations %s: %w", path, err)
	}
	return t, nil
}

// Save writes t to path atomically.
func Save(path string, t Translations) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".translations-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(t); err != nil {
		tmp.Close()
		return fmt.Errorf("encode translations: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save translations: %w", err)
	}
	return nil
}

// LoadQuestions reads category payloads from files or directories and
// returns their questions with duplicates (by id) removed. Directories
// contribute every *.json file except meta.json and translation outputs.
func LoadQuestions(paths ...string) ([]content.Question, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || filepath.Ext(name) != ".json" || name == "meta.json" || strings.HasPrefix(name, "translations") {
				continue
			}
			files = append(files, filepath.Join(p, name))
		}
	}

	seen := make(map[int]bool)
	var out []content.Question
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		data, err := content.DecodeCategory(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		for _, q := range data.Questions {
			if seen[q.ID] {
				continue
			}
			seen[q.ID] = true
			out = append(out, q)
		}
	}
	return out, nil
}
