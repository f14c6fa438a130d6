// Package scheduler implements the retry-with-backoff and
// long-running-task glue that C4 and C5 run under (spec.md §4.10).
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// maxBackoff caps the exponential retry delay, matching the Python
// original's "doubling, capped at 4h" policy.
const maxBackoff = 4 * time.Hour

// RetryExponential wraps fn with exponential backoff: start, start*2,
// start*4, ... capped at maxBackoff. If deadline is zero, it retries
// forever. On deadline exhaustion the last error from fn propagates.
func RetryExponential(ctx context.Context, logger *slog.Logger, name string, deadline time.Duration, start time.Duration, fn func(context.Context) error) error {
	if start <= 0 {
		start = time.Second
	}
	begin := time.Now()
	sleep := start

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		if logger != nil {
			logger.Warn("task attempt failed", "task", name, "err", err)
		}

		elapsed := time.Since(begin)
		if deadline > 0 && elapsed+sleep > deadline {
			return err
		}

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		sleep *= 2
		if sleep > maxBackoff {
			sleep = maxBackoff
		}
	}
}

// Task is a long-running background job with the scheduler contract:
// it loops indefinitely, sleeping delay between iterations, retrying
// each iteration's work with exponential backoff and no overall
// deadline. Ready is closed the moment the task observes the store
// already carries fresh state (or after its first successful
// iteration, whichever comes first) — callers await it the way the
// primary's startup gate awaits C4/C5 before flipping to "running".
type Task struct {
	Name      string
	Delay     time.Duration
	Logger    *slog.Logger
	Run       func(ctx context.Context) error
	IsCurrent func(ctx context.Context) bool // true if no work is needed this start
}

// Loop runs the task until ctx is canceled. ready is closed exactly
// once, after the first completed iteration (successful or a no-op
// because the state was already current).
func (t *Task) Loop(ctx context.Context, ready chan<- struct{}) {
	readyClosed := false
	closeReady := func() {
		if ready != nil && !readyClosed {
			close(ready)
			readyClosed = true
		}
	}

	if t.IsCurrent != nil && t.IsCurrent(ctx) {
		closeReady()
	}

	for {
		// Run already wraps its own unit of work in RetryExponential
		// with no deadline (spec.md §4.4/§4.5 "protected by
		// exponential backoff"); Loop itself does not double-wrap.
		if err := t.Run(ctx); err != nil {
			if t.Logger != nil {
				t.Logger.Error("task iteration aborted", "task", t.Name, "err", err)
			}
		}
		closeReady()

		timer := time.NewTimer(t.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
