package processor

import (
	"context"
	"time"

	"github.com/clubworks/billing-engine/pkg/logger"
)

// Runner drives the processor on a fixed cadence. Collection is sweep
// based: every interval it first resolves claims stranded by a crash, then
// charges whatever has come due. Missed windows are caught up naturally
// because due queries look backwards.
type Runner struct {
	processor *Processor
	interval  time.Duration
}

// NewRunner creates a runner with the given cadence
func NewRunner(p *Processor, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Runner{processor: p, interval: interval}
}

// Start launches the collection loop. It runs one pass immediately and
// stops when the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	log := logger.Component("collection-runner")

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Collection runner stopping")
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()

	log.Info().Dur("interval", r.interval).Msg("Collection runner started")
}

func (r *Runner) runOnce(ctx context.Context) {
	log := logger.Component("collection-runner")

	if _, err := r.processor.RecoverStale(ctx, 0); err != nil {
		log.Error().Err(err).Msg("Stale claim recovery failed")
	}

	if _, err := r.processor.ProcessDue(ctx, time.Now()); err != nil {
		log.Error().Err(err).Msg("Collection batch failed")
	}
}
