package reconcile

import (
	"context"
	"time"

	"github.com/clubworks/billing-engine/pkg/logger"
)

// Runner drives the syncer on a fixed interval until its context is cancelled
type Runner struct {
	syncer   *Syncer
	interval time.Duration
}

// NewRunner creates a runner; interval defaults to 15 minutes
func NewRunner(syncer *Syncer, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Runner{syncer: syncer, interval: interval}
}

// Start launches the sync loop in its own goroutine. The first pass runs
// immediately so a restart doesn't wait a full interval to catch up.
func (r *Runner) Start(ctx context.Context) {
	log := logger.Component("reconcile-runner")

	go func() {
		log.Info().Dur("interval", r.interval).Msg("Reconciliation runner started")

		r.runOnce(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Reconciliation runner stopped")
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()
}

func (r *Runner) runOnce(ctx context.Context) {
	log := logger.Component("reconcile-runner")

	if _, err := r.syncer.SyncPending(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Reconciliation pass failed")
	}
}
