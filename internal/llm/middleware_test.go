package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetry(p Provider, attempts int) (*retrying, *[]time.Duration) {
	var slept []time.Duration
	r := WithRetry(p, RetryConfig{
		MaxAttempts: attempts,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     time.Second,
		Multiplier:  2,
	}).(*retrying)
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func ok(s string) Reply { return Reply{Content: json.RawMessage(s)} }

func TestRetry(t *testing.T) {
	unavailable := Reply{Err: &Error{Kind: KindUnavailable, Err: errors.New("down")}}
	invalid := Reply{Err: &Error{Kind: KindInvalid}}

	tests := []struct {
		name    string
		script  []Reply
		calls   int
		wantErr bool
	}{
		{"first try", []Reply{ok(`{}`)}, 1, false},
		{"transient then success", []Reply{unavailable, ok(`{}`)}, 2, false},
		{"gives up", []Reply{unavailable, unavailable, unavailable, ok(`{}`)}, 3, true},
		{"invalid retried once", []Reply{invalid, ok(`{}`)}, 2, false},
		{"invalid twice fails", []Reply{invalid, invalid, ok(`{}`)}, 2, true},
		{"truncated not retried", []Reply{{Err: &Error{Kind: KindTruncated}}, ok(`{}`)}, 1, true},
		{"rejected not retried", []Reply{{Err: &Error{Kind: KindRejected, Status: 401}}, ok(`{}`)}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := NewFake(tt.script...)
			r, _ := fastRetry(fake, 3)
			_, err := r.Generate(context.Background(), Request{Prompt: "x"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if n := len(fake.Requests()); n != tt.calls {
				t.Fatalf("calls = %d, want %d", n, tt.calls)
			}
		})
	}
}

func TestRetry_Backoff(t *testing.T) {
	down := Reply{Err: &Error{Kind: KindUnavailable}}
	r, slept := fastRetry(NewFake(down, down, down, down, ok(`{}`)), 5)
	if _, err := r.Generate(context.Background(), Request{}); err != nil {
		t.Fatal(err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v", *slept)
	}
	for i, d := range *slept {
		lo, hi := time.Duration(float64(want[i])*0.8), time.Duration(float64(want[i])*1.2)
		if d < lo || d > hi {
			t.Fatalf("sleep %d = %s, want %s ±20%%", i, d, want[i])
		}
	}
}

func TestRetry_HonoursRetryAfter(t *testing.T) {
	r, slept := fastRetry(NewFake(Reply{Err: &Error{Kind: KindRateLimited, RetryAfter: 3 * time.Second}}, ok(`{}`)), 3)
	if _, err := r.Generate(context.Background(), Request{}); err != nil {
		t.Fatal(err)
	}
	if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
		t.Fatalf("slept %v", *slept)
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := NewFake(ok(`{}`))
	r, _ := fastRetry(fake, 3)
	if _, err := r.Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(fake.Requests()) != 1 {
		t.Fatalf("calls = %d", len(fake.Requests()))
	}
}

func TestWithRetry_SingleAttemptIsPassThrough(t *testing.T) {
	fake := NewFake()
	if WithRetry(fake, RetryConfig{MaxAttempts: 1}) != Provider(fake) {
		t.Fatal("expected the provider unchanged")
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	p := WithLogging(NewFake(Reply{Content: json.RawMessage(`{}`), Usage: Usage{InputTokens: 1000, OutputTokens: 200}}),
		"fake", zerolog.New(&buf).Level(zerolog.DebugLevel))

	if _, err := p.Generate(WithPurpose(context.Background(), "translate"), Request{}); err != nil {
		t.Fatal(err)
	}
	var ev map[string]any
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if ev["component"] != "llm" || ev["purpose"] != "translate" || ev["model"] != "fake" {
		t.Fatalf("event = %v", ev)
	}
	if ev["input_tokens"] != float64(1000) || ev["success"] != true {
		t.Fatalf("event = %v", ev)
	}

	buf.Reset()
	if _, err := p.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected an error once the script is exhausted")
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) || strings.Contains(buf.String(), "purpose") {
		t.Fatalf("log = %s", buf.String())
	}
}

type stalled struct{}

func (stalled) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalled) ModelID() string { return "stalled" }

func TestWithTimeout(t *testing.T) {
	p := WithTimeout(stalled{}, 10*time.Millisecond)
	if _, err := p.Generate(context.Background(), Request{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if p.ModelID() != "stalled" {
		t.Fatalf("model = %q", p.ModelID())
	}
	if WithTimeout(stalled{}, 0) != Provider(stalled{}) {
		t.Fatal("zero timeout should return the provider unchanged")
	}
}

func TestFake_ValidatesAgainstSchema(t *testing.T) {
	fake := NewFake(ok(`{"text":"x"}`))
	_, err := fake.Generate(context.Background(), Request{Schema: translationSchema})
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindInvalid {
		t.Fatalf("expected KindInvalid, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindRateLimited, Status: 429, Err: errors.New("slow down")}
	if got := err.Error(); got != "llm: rate limited (HTTP 429): slow down" {
		t.Fatalf("got %q", got)
	}
	if got := (&Error{Kind: KindTruncated}).Error(); got != "llm: response truncated" {
		t.Fatalf("got %q", got)
	}
}
