package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when the origin has no payload for a category.
var ErrNotFound = errors.New("content: not found")

// Provider supplies question content.
type Provider interface {
	FetchMeta(ctx context.Context) (*Meta, error)
	FetchCategory(ctx context.Context, id string) (*CategoryData, error)
}

// Client fetches meta.json and per-category payloads from the content
// origin. Successful results are memoized; concurrent requests for the
// same payload share one HTTP round trip. Returned values are shared and
// must be treated as read-only.
type Client struct {
	base *url.URL
	http *http.Client
	log  zerolog.Logger

	mu    sync.Mutex
	meta  *Meta
	cats  map[string]*CategoryData
	group singleflight.Group
}

var _ Provider = (*Client)(nil)

// NewClient returns a Client rooted at baseURL. Payloads live under
// baseURL + "data/".
func NewClient(baseURL string, hc *http.Client, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse content URL: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		base: u,
		http: hc,
		log:  log.With().Str("component", "content").Logger(),
		cats: make(map[string]*CategoryData),
	}, nil
}

// MetaURL is the address of meta.json.
func (c *Client) MetaURL() string {
	return c.base.JoinPath("data", "meta.json").String()
}

// CategoryURL is the address of a category payload.
func (c *Client) CategoryURL(id string) string {
	return c.base.JoinPath("data", id+".json").String()
}

// ChecksumsURL is the address of the optional payload checksum list.
func (c *Client) ChecksumsURL() string {
	return c.base.JoinPath("data", "checksums.txt").String()
}

func (c *Client) FetchMeta(ctx context.Context) (*Meta, error) {
	c.mu.Lock()
	if c.meta != nil {
		m := c.meta
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	v, err := c.shared(ctx, "meta", func(ctx context.Context) (any, error) {
		raw, err := c.get(ctx, c.MetaURL())
		if err != nil {
			return nil, fmt.Errorf("load meta: %w", err)
		}
		m, err := DecodeMeta(raw)
		if err != nil {
			return nil, fmt.Errorf("load meta: %w", err)
		}
		c.mu.Lock()
		c.meta = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Meta), nil
}

func (c *Client) FetchCategory(ctx context.Context, id string) (*CategoryData, error) {
	c.mu.Lock()
	if d, ok := c.cats[id]; ok {
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	v, err := c.shared(ctx, "cat_"+id, func(ctx context.Context) (any, error) {
		raw, err := c.get(ctx, c.CategoryURL(id))
		if err != nil {
			return nil, fmt.Errorf("load category %s: %w", id, err)
		}
		d, err := DecodeCategory(raw)
		if err != nil {
			return nil, fmt.Errorf("load category %s: %w", id, err)
		}
		c.mu.Lock()
		c.cats[id] = d
		c.mu.Unlock()
		c.log.Debug().Str("category", id).Int("questions", len(d.Questions)).Msg("category loaded")
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CategoryData), nil
}

// Invalidate drops memoized payloads so the next fetch goes back to the
// origin (or the network cache in front of it).
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta = nil
	c.cats = make(map[string]*CategoryData)
}

// DecodeMeta validates and decodes meta.json.
func DecodeMeta(raw []byte) (*Meta, error) {
	if err := validatePayload("meta", metaSchema, raw); err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &m, nil
}

// DecodeCategory validates and decodes a category payload.
func DecodeCategory(raw []byte) (*CategoryData, error) {
	if err := validatePayload("category", categorySchema, raw); err != nil {
		return nil, err
	}
	var d CategoryData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode category: %w", err)
	}
	return &d, nil
}

// shared runs fn once per key for all concurrent callers. The shared call
// is detached from any single caller's cancellation; each caller still
// stops waiting when its own ctx ends.
func (c *Client) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, u)
	}
	return io.ReadAll(resp.Body)
}
