package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/kursy/internal/refresh"
)

// DefaultShutdownGrace bounds how long Run waits for in-flight cycles after cancellation.
const DefaultShutdownGrace = 30 * time.Second

// CycleRunner runs one refresh cycle and commits it. Export hooks run inside the
// runner on commit.
type CycleRunner interface {
	Run(ctx context.Context) (refresh.State, error)
}

// RefreshWorker periodically refreshes rates. Each tick starts a cycle in its own
// goroutine, so a slow cycle never delays the next one.
type RefreshWorker struct {
	runner        CycleRunner
	interval      time.Duration
	shutdownGrace time.Duration

	wg sync.WaitGroup
}

// NewRefreshWorker creates a new RefreshWorker.
func NewRefreshWorker(runner CycleRunner, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{
		runner:        runner,
		interval:      interval,
		shutdownGrace: DefaultShutdownGrace,
	}
}

// WithShutdownGrace overrides DefaultShutdownGrace.
func (w *RefreshWorker) WithShutdownGrace(d time.Duration) *RefreshWorker {
	w.shutdownGrace = d
	return w
}

// Run starts the refresh loop and blocks until ctx is cancelled. Cycles run on a
// context detached from ctx: in-flight cycles get up to the shutdown grace period to
// finish, then they are cancelled and Run returns once they have exited.
func (w *RefreshWorker) Run(ctx context.Context) {
	slog.Info("RefreshWorker: starting", "interval", w.interval)

	cycleCtx, cancelCycles := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelCycles()

	// Refresh immediately on startup
	w.start(cycleCtx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("RefreshWorker: shutting down")
			w.drain(cancelCycles)
			return
		case <-ticker.C:
			w.start(cycleCtx)
		}
	}
}

func (w *RefreshWorker) drain(cancelCycles context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.shutdownGrace):
		slog.Warn("RefreshWorker: in-flight cycles exceeded shutdown grace, cancelling", "grace", w.shutdownGrace)
		cancelCycles()
		<-done
	}
}

func (w *RefreshWorker) start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.cycle(ctx)
	}()
}

func (w *RefreshWorker) cycle(ctx context.Context) {
	state, err := w.runner.Run(ctx)
	switch {
	case errors.Is(err, refresh.ErrStale):
		slog.Info("RefreshWorker: cycle superseded by a newer one")
	case errors.Is(err, refresh.ErrNoProviderData):
		slog.Warn("RefreshWorker: no provider answered, keeping previous snapshot")
	case err != nil:
		slog.Error("RefreshWorker: refresh failed", "error", err)
	default:
		slog.Info("RefreshWorker: refresh completed", "cycle", state.CycleID, "seq", state.Seq,
			"resolved", state.Snapshot.ResolvedCount())
	}
}
