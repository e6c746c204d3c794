package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a provider failure.
type Kind int

const (
	// KindUnavailable covers network failures and 5xx replies.
	KindUnavailable Kind = iota
	KindRateLimited
	// KindInvalid is a reply that is not JSON or does not match the schema.
	KindInvalid
	// KindTruncated is a reply cut off by the token limit.
	KindTruncated
	// KindRejected is a 4xx reply other than 429, e.g. a bad key.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindInvalid:
		return "invalid response"
	case KindTruncated:
		return "response truncated"
	case KindRejected:
		return "request rejected"
	default:
		return "provider unavailable"
	}
}

// Error is returned by every Provider in this package.
type Error struct {
	Kind   Kind
	Status int
	// RetryAfter is the server-requested delay for rate limits, if any.
	RetryAfter time.Duration
	// Content is the offending reply for KindInvalid and KindTruncated.
	Content json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("llm: %s (HTTP %d): %v", e.Kind, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("llm: %s: %v", e.Kind, e.Err)
	}
	return "llm: " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// classify wraps an SDK error given the HTTP status it carried, 0 when
// the request never got a reply.
func classify(status int, header http.Header, err error) error {
	e := &Error{Status: status, Err: err}
	switch {
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = retryAfter(header)
	case status >= 400 && status < 500:
		e.Kind = KindRejected
	default:
		e.Kind = KindUnavailable
	}
	return e
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
