package offline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler runs Reconcile on a fixed interval.
type Reconciler struct {
	d        *Downloader
	interval time.Duration
	log      zerolog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(d *Downloader, interval time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		d:        d,
		interval: interval,
		log:      log.With().Str("component", "reconcile_worker").Logger(),
	}
}

// Run reconciles once immediately, then every interval until ctx is
// done. Call in a goroutine. A non-positive interval reconciles once.
func (r *Reconciler) Run(ctx context.Context) {
	r.log.Debug().Dur("interval", r.interval).Msg("Worker started")
	r.tick(ctx)
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("Worker stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	before := len(r.d.Downloaded(ctx))
	after := len(r.d.Reconcile(ctx))
	if after < before {
		r.log.Info().Int("demoted", before-after).Msg("offline categories demoted")
	}
}
