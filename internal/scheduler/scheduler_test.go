package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryExponentialSucceedsEventually(t *testing.T) {
	attempts := 0
	err := RetryExponential(context.Background(), nil, "test", time.Second, time.Millisecond, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExponentialDeadlineExhaustion(t *testing.T) {
	wantErr := errors.New("persistent failure")
	err := RetryExponential(context.Background(), nil, "test", 5*time.Millisecond, time.Millisecond, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected persistent failure to propagate, got %v", err)
	}
}

func TestRetryExponentialRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryExponential(ctx, nil, "test", 0, time.Second, func(ctx context.Context) error {
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTaskLoopClosesReadyAfterFirstIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	runs := 0

	task := &Task{
		Name:  "test",
		Delay: time.Millisecond,
		Run: func(ctx context.Context) error {
			runs++
			if runs == 2 {
				cancel()
			}
			return nil
		},
	}

	done := make(chan struct{})
	go func() {
		task.Loop(ctx, ready)
		close(done)
	}()

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("ready was never closed")
	}
	<-done
	if runs < 1 {
		t.Error("expected at least one run")
	}
}
