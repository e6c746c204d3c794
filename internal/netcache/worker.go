// Package netcache is the HTTP caching layer between the app and the
// network. It applies stale-while-revalidate to content payloads and the
// app shell, and cache-first with a bounded population to media.
package netcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/rescache"
	"github.com/prawko/prawko/internal/timer"
)

// CachePrefix starts every cache name this package owns.
const CachePrefix = "prawko-"

// DefaultShell is precached by Install, relative to the origin.
var DefaultShell = []string{
	"",
	"index.html",
	"data/meta.json",
	"manifest.json",
}

// ErrInstall is returned when the shell could not be precached.
var ErrInstall = errors.New("netcache: install failed")

// CacheName returns the versioned name of a cache kind.
func CacheName(version, kind string) string {
	return CachePrefix + version + "-" + kind
}

// Options configure a Worker.
type Options struct {
	// Origin is the base URL of the app and its /data/ tree.
	Origin     string
	MediaHosts []string
	Version    string
	// MediaLimit caps the media cache population.
	MediaLimit int
	// Shell lists origin-relative paths precached by Install.
	Shell []string
	// RootDocument is served for shell requests when cache and network fail.
	RootDocument string
	// Transport reaches the network. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Clock     timer.Clock
	Log       zerolog.Logger
}

// Worker is an http.RoundTripper applying per-class caching policies.
type Worker struct {
	opts     Options
	origin   *url.URL
	storage  rescache.Storage
	notifier *Notifier
	log      zerolog.Logger

	mediaMu sync.Mutex
	bg      sync.WaitGroup
}

// NewWorker returns a Worker over storage.
func NewWorker(storage rescache.Storage, notifier *Notifier, opts Options) (*Worker, error) {
	origin, err := url.Parse(opts.Origin)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("netcache: invalid origin %q", opts.Origin)
	}
	if !strings.HasSuffix(origin.Path, "/") {
		origin.Path += "/"
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Clock == nil {
		opts.Clock = timer.RealClock
	}
	if opts.MediaLimit <= 0 {
		opts.MediaLimit = 500
	}
	if opts.Version == "" {
		opts.Version = "v1"
	}
	if opts.Shell == nil {
		opts.Shell = DefaultShell
	}
	if opts.RootDocument == "" {
		opts.RootDocument = "index.html"
	}
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Worker{
		opts:     opts,
		origin:   origin,
		storage:  storage,
		notifier: notifier,
		log:      opts.Log.With().Str("component", "netcache").Logger(),
	}, nil
}

// Notifier returns the worker's update notifier.
func (w *Worker) Notifier() *Notifier { return w.notifier }

// ShellCache, DataCache and MediaCache return the current cache names.
func (w *Worker) ShellCache() string { return CacheName(w.opts.Version, "shell") }
func (w *Worker) DataCache() string  { return CacheName(w.opts.Version, "data") }
func (w *Worker) MediaCache() string { return CacheName(w.opts.Version, "media") }

// Resolve returns ref resolved against the origin.
func (w *Worker) Resolve(ref string) string {
	u, err := w.origin.Parse(ref)
	if err != nil {
		return w.origin.String() + ref
	}
	return u.String()
}

// RoundTrip implements http.RoundTripper.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	switch w.Classify(req) {
	case ClassData:
		return w.staleWhileRevalidate(req, w.DataCache(), EventDataUpdated, false)
	case ClassShell:
		return w.staleWhileRevalidate(req, w.ShellCache(), EventShellUpdated, true)
	case ClassMedia:
		return w.cacheFirst(req)
	}
	return w.opts.Transport.RoundTrip(req)
}

// Wait blocks until background revalidations have finished.
func (w *Worker) Wait() { w.bg.Wait() }

// Install precaches the shell. Either every resource is stored or none.
func (w *Worker) Install(ctx context.Context) error {
	entries := make([]*rescache.Entry, 0, len(w.opts.Shell))
	for _, p := range w.opts.Shell {
		target := w.Resolve(p)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInstall, target, err)
		}
		resp, err := w.opts.Transport.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInstall, target, err)
		}
		entry, err := rescache.NewEntry(cacheKey(req.URL), resp, w.opts.Clock.Now())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInstall, target, err)
		}
		if !ok(resp.StatusCode) {
			return fmt.Errorf("%w: %s: status %d", ErrInstall, target, resp.StatusCode)
		}
		entries = append(entries, entry)
	}

	cache, err := w.storage.Open(ctx, w.ShellCache())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	for _, e := range entries {
		if err := cache.Put(ctx, e); err != nil {
			return fmt.Errorf("%w: %w", ErrInstall, err)
		}
	}
	w.log.Info().Int("resources", len(entries)).Str("cache", w.ShellCache()).Msg("shell installed")
	return nil
}

// Activate deletes caches from other versions and returns their names.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	names, err := w.storage.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	current := map[string]bool{w.ShellCache(): true, w.DataCache(): true, w.MediaCache(): true}
	var deleted []string
	for _, name := range names {
		if !strings.HasPrefix(name, CachePrefix) || current[name] {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			return deleted, fmt.Errorf("delete cache %s: %w", name, err)
		}
		deleted = append(deleted, name)
	}
	if len(deleted) > 0 {
		w.log.Info().Strs("caches", deleted).Msg("old caches deleted")
	}
	return deleted, nil
}

func (w *Worker) staleWhileRevalidate(req *http.Request, cacheName, event string, rootFallback bool) (*http.Response, error) {
	ctx := req.Context()
	key := cacheKey(req.URL)

	cache, err := w.storage.Open(ctx, cacheName)
	if err != nil {
		w.log.Warn().Err(err).Str("cache", cacheName).Msg("cache unavailable, going to network")
		return w.opts.Transport.RoundTrip(req)
	}

	cached, err := cache.Match(ctx, key)
	if err != nil {
		w.log.Warn().Err(err).Str("url", key).Msg("cache read failed")
		cached = nil
	}
	if cached != nil {
		w.revalidate(req, cache, cached, event)
		return cached.Response(req), nil
	}

	resp, err := w.opts.Transport.RoundTrip(req)
	if err != nil {
		if rootFallback {
			if root := w.rootDocument(ctx, cache, req); root != nil {
				return root, nil
			}
		}
		return nil, err
	}
	if ok(resp.StatusCode) {
		if err := w.store(ctx, cache, key, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// revalidate refreshes cached in the background and publishes event when
// the body changed.
func (w *Worker) revalidate(req *http.Request, cache rescache.Cache, cached *rescache.Entry, event string) {
	bgReq := req.Clone(context.WithoutCancel(req.Context()))
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		ctx := bgReq.Context()
		resp, err := w.opts.Transport.RoundTrip(bgReq)
		if err != nil {
			w.log.Debug().Err(err).Str("url", cached.URL).Msg("revalidation failed, keeping cached copy")
			return
		}
		if !ok(resp.StatusCode) {
			drain(resp)
			return
		}
		fresh, err := rescache.NewEntry(cached.URL, resp, w.opts.Clock.Now())
		if err != nil {
			w.log.Debug().Err(err).Str("url", cached.URL).Msg("revalidation body unreadable")
			return
		}
		if err := cache.Put(ctx, fresh); err != nil {
			w.log.Warn().Err(err).Str("url", cached.URL).Msg("cache write failed")
		}
		if !bytes.Equal(fresh.Body, cached.Body) {
			w.log.Debug().Str("event", event).Str("url", cached.URL).Msg("content updated")
			w.notifier.Publish(Event{Type: event, URL: cached.URL})
		}
	}()
}

func (w *Worker) rootDocument(ctx context.Context, cache rescache.Cache, req *http.Request) *http.Response {
	root, err := cache.Match(ctx, w.Resolve(w.opts.RootDocument))
	if err != nil || root == nil {
		return nil
	}
	return root.Response(req)
}

func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := cacheKey(req.URL)

	cache, err := w.storage.Open(ctx, w.MediaCache())
	if err != nil {
		w.log.Warn().Err(err).Msg("media cache unavailable, going to network")
		cache = nil
	}
	if cache != nil {
		if cached, err := cache.Match(ctx, key); err == nil && cached != nil {
			return cached.Response(req), nil
		}
	}

	resp, err := w.opts.Transport.RoundTrip(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		w.log.Debug().Err(err).Str("url", key).Msg("media unavailable")
		return unavailable(req), nil
	}
	if cache != nil && ok(resp.StatusCode) {
		w.mediaMu.Lock()
		err := w.store(ctx, cache, key, resp)
		if err == nil {
			w.evict(ctx, cache)
		}
		w.mediaMu.Unlock()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return unavailable(req), nil
		}
	}
	return resp, nil
}

// evict drops the oldest media entries above the limit.
func (w *Worker) evict(ctx context.Context, cache rescache.Cache) {
	keys, err := cache.Keys(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("media cache keys unavailable")
		return
	}
	excess := len(keys) - w.opts.MediaLimit
	for i := 0; i < excess; i++ {
		if _, err := cache.Delete(ctx, keys[i]); err != nil {
			w.log.Warn().Err(err).Str("url", keys[i]).Msg("media eviction failed")
			return
		}
	}
	if excess > 0 {
		w.log.Debug().Int("evicted", excess).Msg("media cache trimmed")
	}
}

// store caches resp under key. A failed cache write is logged and
// ignored; an error is returned only when the body could not be read, in
// which case resp must not be handed on.
func (w *Worker) store(ctx context.Context, cache rescache.Cache, key string, resp *http.Response) error {
	entry, err := rescache.NewEntry(key, resp, w.opts.Clock.Now())
	if err != nil {
		w.log.Warn().Err(err).Str("url", key).Msg("response body unreadable")
		return err
	}
	if err := cache.Put(ctx, entry); err != nil {
		w.log.Warn().Err(err).Str("url", key).Msg("cache write failed")
	}
	return nil
}

func unavailable(req *http.Request) *http.Response {
	body := []byte("offline: resource unavailable")
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func cacheKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

func ok(status int) bool { return status >= 200 && status < 300 }

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
