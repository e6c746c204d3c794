package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

type purposeKey struct{}

// WithPurpose labels every call made with ctx in the request log.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

func purposeOf(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok {
		return p
	}
	return ""
}

// retrying re-issues failed calls with jittered exponential backoff.
type retrying struct {
	Provider
	cfg   RetryConfig
	sleep func(context.Context, time.Duration) error
}

// WithRetry retries unavailable, rate-limited and invalid replies.
// Truncated and rejected requests fail immediately, since resending the
// same prompt cannot help. Invalid replies are retried once.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts <= 1 {
		return p
	}
	return &retrying{Provider: p, cfg: cfg, sleep: sleepCtx}
}

func (r *retrying) Generate(ctx context.Context, req Request) (*Response, error) {
	invalidSeen := false
	var err error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if serr := r.sleep(ctx, r.delay(attempt-1, err)); serr != nil {
				return nil, serr
			}
		}
		var resp *Response
		if resp, err = r.Provider.Generate(ctx, req); err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		var e *Error
		if errors.As(err, &e) {
			switch e.Kind {
			case KindTruncated, KindRejected:
				return nil, err
			case KindInvalid:
				if invalidSeen {
					return nil, err
				}
				invalidSeen = true
			}
		}
	}
	return nil, err
}

func (r *retrying) delay(attempt int, err error) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return e.RetryAfter
	}
	d := float64(r.cfg.InitialWait)
	for range attempt {
		d *= r.cfg.Multiplier
	}
	d = min(d, float64(r.cfg.MaxWait))
	d *= 0.8 + 0.4*rand.Float64()
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// logged writes one debug event per call, or a warning when it fails.
type logged struct {
	Provider
	name string
	log  zerolog.Logger
}

func WithLogging(p Provider, name string, log zerolog.Logger) Provider {
	return &logged{Provider: p, name: name, log: log.With().Str("component", "llm").Logger()}
}

func (l *logged) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.Provider.Generate(ctx, req)

	ev := l.log.Debug()
	if err != nil {
		ev = l.log.Warn().Err(err)
	}
	ev = ev.Str("provider", l.name).
		Str("model", l.ModelID()).
		Dur("latency", time.Since(start)).
		Bool("success", err == nil)
	if p := purposeOf(ctx); p != "" {
		ev = ev.Str("purpose", p)
	}
	if resp != nil {
		ev = ev.Int("input_tokens", resp.Usage.InputTokens).Int("output_tokens", resp.Usage.OutputTokens)
		if c := LookupCost(l.ModelID()); c != nil {
			ev = ev.Float64("cost_usd", c.Cost(resp.Usage.InputTokens, resp.Usage.OutputTokens))
		}
	}
	ev.Msg("llm request")

	if t := l.log.Trace(); t.Enabled() {
		reply := ""
		if resp != nil {
			reply = string(resp.Content)
		}
		t.Str("system", req.System).Str("prompt", req.Prompt).Str("reply", reply).Msg("llm exchange")
	}
	return resp, err
}

// bounded applies one deadline to a whole call, retries included.
type bounded struct {
	Provider
	timeout time.Duration
}

// WithTimeout returns p unchanged when d is not positive.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &bounded{Provider: p, timeout: d}
}

func (b *bounded) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Provider.Generate(ctx, req)
}
