package coordinator

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestAcquireBecomesPrimaryAndWritesStartup(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, "test")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !c.IsPrimary {
		t.Fatal("expected first acquirer to become primary")
	}

	state, err := c.GetState()
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state != StateStartup {
		t.Errorf("expected startup state, got %q", state)
	}
}

func TestSetStateRejectedForNonPrimary(t *testing.T) {
	c := &Coordinator{IsPrimary: false}
	if err := c.SetState(StateRunning); err == nil {
		t.Error("expected error setting state from a non-primary")
	}
}

func TestSecondAcquirerWaitsThenProceedsOnceRunning(t *testing.T) {
	dir := t.TempDir()

	primary := New(dir, "test")
	if err := primary.Acquire(context.Background()); err != nil {
		t.Fatalf("primary Acquire: %v", err)
	}
	if !primary.IsPrimary {
		t.Fatal("expected primary to win the lock")
	}

	secondary := New(dir, "test")
	done := make(chan error, 1)
	go func() {
		done <- secondary.Acquire(context.Background())
	}()

	select {
	case err := <-done:
		t.Fatalf("secondary returned before state went running: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	if err := primary.SetState(StateRunning); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("secondary Acquire: %v", err)
		}
		if secondary.IsPrimary {
			t.Error("expected secondary to remain non-primary")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("secondary never unblocked after state went running")
	}
}

func TestGetStateMissingFileReturnsEmpty(t *testing.T) {
	c := New(t.TempDir(), "test")
	state, err := c.GetState()
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state != "" {
		t.Errorf("expected empty state, got %q", state)
	}
}

func TestPidAliveForCurrentProcess(t *testing.T) {
	if !pidAlive(os.Getpid()) {
		t.Error("expected current process to be alive")
	}
}

func TestPidAliveFalseForBogusPID(t *testing.T) {
	if pidAlive(1 << 30) {
		t.Error("expected implausible pid to be reported dead")
	}
}
