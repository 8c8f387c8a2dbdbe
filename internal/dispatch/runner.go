package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/post-office/internal/lock"
)

// Cycler runs one dispatch cycle.
type Cycler interface {
	DispatchQueued(ctx context.Context, workers int) (Result, error)
}

// Runner runs dispatch cycles under a process lock, either once or on a
// fixed interval.
type Runner struct {
	cycler   Cycler
	locker   lock.Locker
	workers  int
	interval time.Duration
	log      zerolog.Logger
}

// NewRunner creates a Runner. interval is only used by Run.
func NewRunner(c Cycler, l lock.Locker, workers int, interval time.Duration, log zerolog.Logger) *Runner {
	return &Runner{cycler: c, locker: l, workers: workers, interval: interval, log: log}
}

// RunOnce runs a single cycle while holding the lock. A lock held by
// another process is not an error; the cycle is skipped. The lock is
// released on every path once acquired.
func (r *Runner) RunOnce(ctx context.Context) error {
	if err := r.locker.TryLock(ctx); err != nil {
		if errors.Is(err, lock.ErrLocked) {
			r.log.Info().Msg("another dispatch is already running, skipping cycle")
			return nil
		}
		r.log.Error().Err(err).Msg("failed to acquire lock")
		return err
	}
	defer func() {
		if err := r.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn().Err(err).Msg("failed to release lock")
		}
	}()

	result, err := r.cycler.DispatchQueued(ctx, r.workers)
	if err != nil {
		r.log.Error().
			Err(err).
			Int("attempted", result.Attempted).
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Msg("dispatch cycle failed")
		return err
	}
	return nil
}

// Run starts a cycle immediately and then once per interval until ctx is
// cancelled. Cycle errors are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().
		Int("workers", r.workers).
		Dur("interval", r.interval).
		Msg("dispatch loop started")

	for {
		_ = r.RunOnce(ctx)

		select {
		case <-ctx.Done():
			r.log.Info().Msg("dispatch loop stopped")
			return
		case <-ticker.C:
		}
	}
}
