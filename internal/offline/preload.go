package offline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prawko/prawko/internal/content"
)

const preloadTimeout = 30 * time.Second

// Preloader warms the media cache for media about to be shown. It is the
// exam look-ahead: fire and forget, at most one request per URL at a time.
type Preloader struct {
	d   *Downloader
	log zerolog.Logger

	mu       sync.Mutex
	inflight map[string]bool
	wg       sync.WaitGroup
}

// NewPreloader fetches through d's client and media base URL.
func NewPreloader(d *Downloader) *Preloader {
	return &Preloader{
		d:        d,
		log:      d.log.With().Str("component", "preload").Logger(),
		inflight: map[string]bool{},
	}
}

// Preload starts fetching m in the background.
func (p *Preloader) Preload(m content.Media) {
	u := content.MediaURL(p.d.opts.MediaBaseURL, m)

	p.mu.Lock()
	if p.inflight[u] {
		p.mu.Unlock()
		return
	}
	p.inflight[u] = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.inflight, u)
			p.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), preloadTimeout)
		defer cancel()
		if p.d.fetch(ctx, u) != fulfilled {
			p.log.Debug().Str("url", u).Msg("preload failed")
		}
	}()
}

// Wait blocks until started preloads finish.
func (p *Preloader) Wait() { p.wg.Wait() }
