// Package rescache stores HTTP responses in named caches that are shared
// between the network worker and the offline download bookkeeping.
//
// Every cache keeps its entries in insertion order. Putting a URL that is
// already present moves it to the end.
package rescache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrNoCache is returned when a named cache does not exist.
var ErrNoCache = errors.New("rescache: no such cache")

// Storage is a set of named caches.
type Storage interface {
	// Open returns the named cache, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	// Names lists existing caches.
	Names(ctx context.Context) ([]string, error)
	// Delete drops a cache and all of its entries. It reports whether the
	// cache existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Cache maps request URLs to stored responses.
type Cache interface {
	Name() string
	// Match returns the stored entry for url, or nil when absent.
	Match(ctx context.Context, url string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	// Delete removes url and reports whether it was present.
	Delete(ctx context.Context, url string) (bool, error)
	// Keys lists stored URLs, oldest insertion first.
	Keys(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
}

// Entry is a stored response.
type Entry struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// NewEntry buffers resp's body into an Entry and replaces resp.Body with a
// fresh reader over the same bytes so the caller can still consume it.
func NewEntry(url string, resp *http.Response, now time.Time) (*Entry, error) {
	var body []byte
	if resp.Body != nil {
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		body = b
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return &Entry{
		URL:      url,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: now,
	}, nil
}

// Response rebuilds an *http.Response for req from the entry.
func (e *Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        strconv.Itoa(e.Status) + " " + http.StatusText(e.Status),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
