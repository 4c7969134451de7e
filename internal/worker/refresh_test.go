package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtlprog/kursy/internal/refresh"
)

type mockRunner struct {
	callCount atomic.Int32
	err       error
	delay     time.Duration
	finished  atomic.Int32
	cancelled atomic.Int32
}

func (m *mockRunner) Run(ctx context.Context) (refresh.State, error) {
	n := m.callCount.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			m.cancelled.Add(1)
			m.finished.Add(1)
			return refresh.State{}, ctx.Err()
		}
	}
	m.finished.Add(1)
	if m.err != nil {
		return refresh.State{}, m.err
	}
	return refresh.State{Result: refresh.Result{CycleID: "c"}, Seq: uint64(n)}, nil
}

func TestRefreshWorkerRunsAndShutdown(t *testing.T) {
	runner := &mockRunner{}
	w := NewRefreshWorker(runner, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	// Should have run at least the initial refresh + some ticks
	if got := runner.callCount.Load(); got < 2 {
		t.Errorf("call count = %d, want >= 2", got)
	}
}

func TestRefreshWorkerInFlightCyclesFinishAfterShutdown(t *testing.T) {
	runner := &mockRunner{delay: 150 * time.Millisecond}
	w := NewRefreshWorker(runner, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	// Slow cycles overlap rather than queue behind each other.
	if got := runner.callCount.Load(); got < 2 {
		t.Errorf("call count = %d, want overlapping cycles", got)
	}
	if started, done := runner.callCount.Load(), runner.finished.Load(); started != done {
		t.Errorf("Run returned with %d of %d cycles in flight", started-done, started)
	}
	if got := runner.cancelled.Load(); got != 0 {
		t.Errorf("%d cycles saw a cancelled context within the grace period", got)
	}
}

func TestRefreshWorkerCancelsCyclesAfterGrace(t *testing.T) {
	runner := &mockRunner{delay: time.Hour}
	w := NewRefreshWorker(runner, time.Hour).WithShutdownGrace(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	w.Run(ctx)

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run took %v, want return shortly after the grace period", elapsed)
	}
	if got := runner.cancelled.Load(); got != 1 {
		t.Errorf("cancelled cycles = %d, want 1", got)
	}
}

func TestRefreshWorkerSurvivesCycleErrors(t *testing.T) {
	for _, err := range []error{refresh.ErrNoProviderData, refresh.ErrStale, errors.New("boom")} {
		runner := &mockRunner{err: err}
		w := NewRefreshWorker(runner, 10*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
		w.Run(ctx)
		cancel()

		if got := runner.callCount.Load(); got < 2 {
			t.Errorf("%v: call count = %d, want the loop to keep ticking", err, got)
		}
	}
}
