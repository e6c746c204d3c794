// Package llm is a thin client layer over hosted language models, used to
// machine-translate question content. Every call is a single prompt that
// is answered with JSON matching a schema.
package llm

import (
	"context"
	"encoding/json"
)

// Provider answers prompts.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	ModelID() string
}

// Request is one prompt.
type Request struct {
	System string
	Prompt string
	// Schema, when set, asks for structured output and is checked against
	// the reply before it is returned.
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Schema is a named JSON Schema document.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Response is a model reply. Content is the JSON reply when a schema was
// requested and the raw text otherwise.
type Response struct {
	Content   json.RawMessage
	Usage     Usage
	Model     string
	Truncated bool
}

// Usage counts tokens.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// Total is input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// resolveModel maps a short alias to a full model ID. Unknown names pass
// through so full IDs can be configured directly.
func resolveModel(name string, aliases map[string]string) string {
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}

// finish checks content against the requested schema and assembles the
// response.
func finish(req Request, content json.RawMessage, usage Usage, model string, truncated bool) (*Response, error) {
	if truncated {
		return nil, &Error{Kind: KindTruncated, Content: content}
	}
	if req.Schema != nil {
		var err error
		if content, err = req.Schema.check(content); err != nil {
			return nil, err
		}
	}
	return &Response{Content: content, Usage: usage, Model: model}, nil
}
