// Package offline downloads every media resource of a category into the
// shared resource cache and keeps the "downloaded" flag honest.
package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/rescache"
	"github.com/prawko/prawko/internal/store"
)

// DefaultBatchSize is how many media fetches run at once.
const DefaultBatchSize = 6

const (
	downloadedKey = "offline_downloaded"
	manifestsKey  = "offline_manifests"
)

// Progress is reported after every batch. Completed counts successes and
// failures; aborted fetches are not counted.
type Progress struct {
	Completed int
	Total     int
	Failed    int
	Cancelled bool
}

// Result summarizes a download run.
type Result struct {
	Success   bool
	Total     int
	Failed    int
	Cancelled bool
}

type outcome int

const (
	fulfilled outcome = iota
	failed
	aborted
)

// Options configure a Downloader.
type Options struct {
	KV      store.Backend
	Content content.Provider
	// Client fetches media. Its transport is expected to be the network
	// worker so fetched media lands in the media cache.
	Client *http.Client
	// Storage and MediaCache locate the cache Reconcile verifies against.
	Storage      rescache.Storage
	MediaCache   string
	MediaBaseURL string
	BatchSize    int
	Log          zerolog.Logger
}

// Downloader runs at most one download at a time; starting a new one
// aborts the previous.
type Downloader struct {
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	run    uint64
	cancel context.CancelFunc

	// stateMu serializes read-modify-write cycles on the persisted set and
	// manifests.
	stateMu sync.Mutex
}

// New returns a Downloader.
func New(opts Options) *Downloader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &Downloader{opts: opts, log: opts.Log.With().Str("component", "offline").Logger()}
}

// Download fetches every distinct media resource of category. The
// category is marked downloaded only when all fetches succeed and the run
// is not cancelled; otherwise any previous mark and manifest are removed.
// Errors are only returned when the category itself cannot be loaded.
func (d *Downloader) Download(ctx context.Context, category string, onProgress func(Progress)) (Result, error) {
	runCtx, id := d.begin(ctx)
	defer d.end(id)

	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	data, err := d.opts.Content.FetchCategory(runCtx, category)
	if err != nil {
		d.demote(context.WithoutCancel(runCtx), category)
		if runCtx.Err() != nil {
			report(Progress{Cancelled: true})
			return Result{Cancelled: true}, nil
		}
		return Result{}, fmt.Errorf("load category %s: %w", category, err)
	}

	urls := normalize(content.MediaURLs(d.opts.MediaBaseURL, data.Questions))
	total := len(urls)
	log := d.log.With().Str("category", category).Int("total", total).Logger()

	if total == 0 {
		if err := d.promote(context.WithoutCancel(runCtx), category, urls); err != nil {
			return Result{}, err
		}
		report(Progress{Completed: 1, Total: 1})
		return Result{Success: true}, nil
	}

	completed, failedCount, cancelled := 0, 0, false
	for start := 0; start < total; start += d.opts.BatchSize {
		if runCtx.Err() != nil {
			cancelled = true
			break
		}
		batch := urls[start:min(start+d.opts.BatchSize, total)]
		outcomes := make([]outcome, len(batch))

		var wg sync.WaitGroup
		for i, u := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes[i] = d.fetch(runCtx, u)
			}()
		}
		wg.Wait()

		for i, o := range outcomes {
			switch o {
			case fulfilled:
				completed++
			case failed:
				completed++
				failedCount++
				log.Debug().Str("url", batch[i]).Msg("media fetch failed")
			case aborted:
				cancelled = true
			}
		}
		report(Progress{Completed: completed, Total: total, Failed: failedCount, Cancelled: cancelled})
		if cancelled {
			break
		}
	}

	res := Result{Total: total, Failed: failedCount, Cancelled: cancelled}
	if cancelled || failedCount > 0 {
		d.demote(context.WithoutCancel(runCtx), category)
		log.Info().Int("failed", failedCount).Bool("cancelled", cancelled).Msg("download incomplete")
		return res, nil
	}
	if err := d.promote(context.WithoutCancel(runCtx), category, urls); err != nil {
		d.demote(context.WithoutCancel(runCtx), category)
		return res, err
	}
	res.Success = true
	log.Info().Msg("category available offline")
	return res, nil
}

// Cancel aborts the running download, if any.
func (d *Downloader) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Downloader) begin(ctx context.Context) (context.Context, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.run++
	d.cancel = cancel
	return runCtx, d.run
}

func (d *Downloader) end(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.run == id && d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Downloader) fetch(ctx context.Context, u string) outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return failed
	}
	resp, err := d.opts.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return aborted
		}
		return failed
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		if ctx.Err() != nil {
			return aborted
		}
		return failed
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed
	}
	return fulfilled
}

// Downloaded returns the categories currently marked downloaded.
func (d *Downloader) Downloaded(ctx context.Context) map[string]bool {
	set := map[string]bool{}
	for _, c := range d.loadSet(ctx) {
		set[c] = true
	}
	return set
}

// Manifest returns the media URLs recorded for a downloaded category.
func (d *Downloader) Manifest(ctx context.Context, category string) ([]string, bool) {
	m, ok := d.loadManifests(ctx)[category]
	return m, ok
}

// Reconcile demotes every downloaded category whose manifest is missing
// or whose media is no longer all present in the media cache. It never
// marks anything downloaded. It returns the remaining set.
func (d *Downloader) Reconcile(ctx context.Context) map[string]bool {
	manifests := d.loadManifests(ctx)
	var cache rescache.Cache
	if d.opts.Storage != nil {
		c, err := d.opts.Storage.Open(ctx, d.opts.MediaCache)
		if err != nil {
			d.log.Warn().Err(err).Msg("media cache unavailable during reconcile")
		} else {
			cache = c
		}
	}

	for _, category := range d.loadSet(ctx) {
		urls, ok := manifests[category]
		if ok && d.allCached(ctx, cache, urls) {
			continue
		}
		d.log.Info().Str("category", category).Bool("manifest", ok).Msg("offline copy incomplete, unmarking")
		d.demote(ctx, category)
	}
	return d.Downloaded(ctx)
}

func (d *Downloader) allCached(ctx context.Context, cache rescache.Cache, urls []string) bool {
	if len(urls) == 0 {
		return true
	}
	if cache == nil {
		return false
	}
	for _, u := range urls {
		e, err := cache.Match(ctx, u)
		if err != nil || e == nil {
			return false
		}
	}
	return true
}

func (d *Downloader) promote(ctx context.Context, category string, urls []string) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	manifests := d.loadManifests(ctx)
	manifests[category] = urls
	if err := store.SaveJSON(ctx, d.opts.KV, manifestsKey, manifests); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	set := d.loadSet(ctx)
	if !slices.Contains(set, category) {
		set = append(set, category)
		slices.Sort(set)
	}
	if err := store.SaveJSON(ctx, d.opts.KV, downloadedKey, set); err != nil {
		return fmt.Errorf("save downloaded set: %w", err)
	}
	return nil
}

// demote removes category from the downloaded set, then drops its
// manifest. Failures are logged.
func (d *Downloader) demote(ctx context.Context, category string) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	set := d.loadSet(ctx)
	if i := slices.Index(set, category); i >= 0 {
		set = slices.Delete(set, i, i+1)
		if err := store.SaveJSON(ctx, d.opts.KV, downloadedKey, set); err != nil {
			d.log.Warn().Err(err).Str("category", category).Msg("downloaded set not saved")
		}
	}
	manifests := d.loadManifests(ctx)
	if _, ok := manifests[category]; ok {
		delete(manifests, category)
		if err := store.SaveJSON(ctx, d.opts.KV, manifestsKey, manifests); err != nil {
			d.log.Warn().Err(err).Str("category", category).Msg("manifest not removed")
		}
	}
}

func (d *Downloader) loadSet(ctx context.Context) []string {
	var set []string
	store.LoadJSON(ctx, d.opts.KV, downloadedKey, &set)
	return set
}

func (d *Downloader) loadManifests(ctx context.Context) map[string][]string {
	var m map[string][]string
	store.LoadJSON(ctx, d.opts.KV, manifestsKey, &m)
	if m == nil {
		m = map[string][]string{}
	}
	return m
}

// normalize rewrites urls the way net/url prints them, which is how the
// network worker keys its cache.
func normalize(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			out = append(out, raw)
			continue
		}
		out = append(out, u.String())
	}
	return out
}
