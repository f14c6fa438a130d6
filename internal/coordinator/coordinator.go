// Package coordinator implements single-primary worker election over
// a shared data directory (spec.md §4.9, C9). Every process attempts
// a non-blocking exclusive file lock at startup; the winner becomes
// primary and runs the write path, losers poll for the primary's
// state gate before serving reads.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

// State is the value written to the state file by the primary.
type State string

const (
	StateStartup State = "startup"
	StateRunning State = "running"
)

// pollInterval matches the Python implementation's 0.1s spin.
const pollInterval = 100 * time.Millisecond

// Coordinator holds the three well-known sibling files this process
// uses to arbitrate primary status.
type Coordinator struct {
	lockPath, pidPath, statePath string
	lock                         *flock.Flock
	IsPrimary                    bool
}

// New returns a Coordinator rooted at dataDir, naming its files after
// name (e.g. "aedcore" -> aedcore-worker.{lock,pid,state}).
func New(dataDir, name string) *Coordinator {
	base := filepath.Join(dataDir, name+"-worker")
	return &Coordinator{
		lockPath:  base + ".lock",
		pidPath:   base + ".pid",
		statePath: base + ".state",
	}
}

// Acquire attempts the non-blocking lock. On success this process is
// primary: it writes its PID and transitions the state file to
// "startup". On failure it blocks until an existing primary's state
// file reads "running", so this process never returns before the
// startup->running gate flips (spec.md §4.9).
func (c *Coordinator) Acquire(ctx context.Context) error {
	c.lock = flock.New(c.lockPath)

	locked, err := c.lock.TryLock()
	if err != nil {
		return fmt.Errorf("coordinator: try lock: %w", err)
	}

	if locked {
		c.IsPrimary = true
		if err := os.WriteFile(c.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("coordinator: write pid: %w", err)
		}
		return c.writeState(StateStartup)
	}

	c.IsPrimary = false
	return c.waitForState(ctx, StateRunning)
}

// SetState transitions the state file. Only the primary may call this.
func (c *Coordinator) SetState(state State) error {
	if !c.IsPrimary {
		return errors.New("coordinator: only the primary may set state")
	}
	return c.writeState(state)
}

func (c *Coordinator) writeState(state State) error {
	if err := os.WriteFile(c.statePath, []byte(state), 0o644); err != nil {
		return fmt.Errorf("coordinator: write state: %w", err)
	}
	return nil
}

// GetState reads the current state, returning "" if no primary has
// written one yet.
func (c *Coordinator) GetState() (State, error) {
	b, err := os.ReadFile(c.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("coordinator: read state: %w", err)
	}
	return State(b), nil
}

// waitForState blocks until the primary's pid is alive and its state
// file equals want, or ctx is done.
func (c *Coordinator) waitForState(ctx context.Context, want State) error {
	for {
		if ready, err := c.primaryReady(want); err != nil {
			return err
		} else if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (c *Coordinator) primaryReady(want State) (bool, error) {
	pidRaw, err := os.ReadFile(c.pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("coordinator: read pid: %w", err)
	}

	state, err := c.GetState()
	if err != nil {
		return false, err
	}
	if state == "" {
		return false, nil
	}

	pid, err := strconv.Atoi(string(pidRaw))
	if err != nil || !pidAlive(pid) {
		return false, nil
	}

	return state == want, nil
}

// Readiness satisfies internal/core/health.ReadinessReporter. A
// Coordinator is always ready once Acquire has returned, since Acquire
// itself blocks secondaries until the primary's state is running.
func (c *Coordinator) Readiness() (ready bool, isPrimary bool) {
	return c.lock != nil, c.IsPrimary
}

// Close releases the lock, letting the OS drop it immediately so a
// restarted process can win election without waiting on a stale file
// (spec.md §4.9: "if the primary dies the OS releases the lock").
func (c *Coordinator) Close() error {
	if c.lock == nil {
		return nil
	}
	return c.lock.Unlock()
}

// pidAlive reports whether pid names a live process, by way of
// signal 0 (no-op delivery, POSIX-portable liveness check).
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
