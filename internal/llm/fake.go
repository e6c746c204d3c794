package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// Reply is one scripted answer of a Fake.
type Reply struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// Fake answers with scripted replies in order and records every request.
// Once the script runs out it fails with KindUnavailable.
type Fake struct {
	mu       sync.Mutex
	script   []Reply
	requests []Request
}

var _ Provider = (*Fake)(nil)

func NewFake(script ...Reply) *Fake {
	return &Fake{script: script}
}

func (f *Fake) Generate(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.script) == 0 {
		return nil, &Error{Kind: KindUnavailable}
	}
	r := f.script[0]
	f.script = f.script[1:]
	if r.Err != nil {
		return nil, r.Err
	}
	return finish(req, r.Content, r.Usage, "fake", false)
}

func (f *Fake) ModelID() string { return "fake" }

// Requests returns a copy of the requests received so far.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}
