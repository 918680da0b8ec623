package scheduler

import (
	"context"
	"time"

	"mobile-money-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// LockName is the job lock key shared by every scheduler replica.
const LockName = "scheduled-transfers"

// Executor runs one pass over the due scheduled transfers.
type Executor interface {
	ExecuteDue(ctx context.Context) (*ports.ExecutionReport, error)
}

// Runner polls the scheduled transfer manager on a fixed interval. Only the
// replica holding the job lock executes a pass.
type Runner struct {
	exec     Executor
	lock     ports.JobLock
	interval time.Duration
	lockTTL  time.Duration
	log      zerolog.Logger
}

// NewRunner creates a new Runner. lockTTL should stay below interval so a
// crashed holder never skips more than one pass.
func NewRunner(exec Executor, lock ports.JobLock, interval, lockTTL time.Duration, log zerolog.Logger) *Runner {
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &Runner{
		exec:     exec,
		lock:     lock,
		interval: interval,
		lockTTL:  lockTTL,
		log:      log,
	}
}

// Run executes a pass immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Msg("scheduler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("scheduler pass failed")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			r.log.Info().Msg("scheduler stopping")
			return
		}
	}
}

// RunOnce executes a single pass under the job lock. It returns a nil report
// when another replica holds the lock.
func (r *Runner) RunOnce(ctx context.Context) (*ports.ExecutionReport, error) {
	acquired, err := r.lock.Acquire(ctx, LockName, r.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		r.log.Debug().Msg("scheduler lock held elsewhere, skipping pass")
		return nil, nil
	}
	defer func() {
		// Release must outlive a cancelled pass.
		if err := r.lock.Release(context.WithoutCancel(ctx), LockName); err != nil {
			r.log.Warn().Err(err).Msg("failed to release scheduler lock")
		}
	}()

	return r.exec.ExecuteDue(ctx)
}
