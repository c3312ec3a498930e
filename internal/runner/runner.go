// Package runner owns periodic execution: an interval loop with an
// explicit single-flight guard so a slow run is never stacked behind a new
// trigger.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aduanapp/refsync/pkg/infra"
	"github.com/aduanapp/refsync/pkg/metrics"
)

// ErrRunInFlight is returned when a trigger fires while a previous run is
// still active. The trigger is skipped entirely: no queueing.
var ErrRunInFlight = errors.New("previous run still in flight, trigger skipped")

// Job is one sync cycle.
type Job func(ctx context.Context) error

// Runner fires the job on a fixed interval. The guard is a compare-and-swap
// on a private state cell, not ambient package-level state, so concurrent
// triggers (ticker plus manual kick) resolve deterministically.
type Runner struct {
	interval time.Duration
	job      Job
	backoff  *infra.Backoff
	logger   *slog.Logger
	running  atomic.Bool
}

func New(interval time.Duration, job Job, logger *slog.Logger) *Runner {
	return &Runner{
		interval: interval,
		job:      job,
		backoff:  infra.NewBackoff(30*time.Second, 15*time.Minute, 2.0),
		logger:   logger,
	}
}

// TryRun executes the job unless one is already active.
func (r *Runner) TryRun(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn("Previous run still active, skipping trigger")
		metrics.RunsTotal.WithLabelValues("skipped").Inc()
		return ErrRunInFlight
	}
	defer r.running.Store(false)

	return r.job(ctx)
}

// Loop blocks until ctx is canceled, running the job once immediately and
// then on every interval tick. A failed run delays the next attempt by a
// growing backoff; the first success resets it.
func (r *Runner) Loop(ctx context.Context) {
	r.logger.Info("Runner started", "interval", r.interval)

	if err := r.TryRun(ctx); err != nil && !errors.Is(err, ErrRunInFlight) {
		r.logger.Error("Initial run failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Runner shutting down")
			return
		case <-ticker.C:
			err := r.TryRun(ctx)
			switch {
			case err == nil:
				r.backoff.Reset()
			case errors.Is(err, ErrRunInFlight):
				// nothing to do, the active run owns the cycle
			default:
				r.logger.Error("Run failed, delaying next attempt", "failures", r.backoff.Failures()+1, "error", err)
				if r.backoff.Sleep(ctx) != nil {
					r.logger.Info("Runner shutting down")
					return
				}
			}
		}
	}
}
