package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/metrics"
	"github.com/mtlprog/kursy/internal/snapshot"
)

// ErrStale indicates a cycle finished after a newer cycle had already committed.
var ErrStale = errors.New("stale refresh cycle discarded")

// Refresher runs one cycle against a previous snapshot.
type Refresher interface {
	Refresh(ctx context.Context, prev *domain.RatesSnapshot) (Result, error)
}

// Hook receives every committed state that is still the newest when its turn comes.
type Hook interface {
	Export(ctx context.Context, state State) error
}

// State is the committed outcome of the latest cycle.
type State struct {
	Result
	Seq         uint64    `json:"seq"`
	CommittedAt time.Time `json:"committedAt"`
}

// Tracker owns the current snapshot. Cycles may overlap; each gets a sequence number
// at start and commits only if no later-started cycle has committed first.
type Tracker struct {
	refresher Refresher
	store     snapshot.Store // optional

	mu        sync.Mutex
	nextSeq   uint64
	committed uint64
	current   *State
	seeded    *domain.RatesSnapshot

	persistMu sync.Mutex

	hooks    []Hook
	exportMu sync.Mutex
	exported uint64
}

// NewTracker creates a Tracker. store may be nil to disable persistence.
func NewTracker(refresher Refresher, store snapshot.Store) *Tracker {
	return &Tracker{refresher: refresher, store: store}
}

// OnCommit registers hooks run after each commit, in order. It must be called before
// the first Run.
func (t *Tracker) OnCommit(hooks ...Hook) {
	t.hooks = append(t.hooks, hooks...)
}

// Seed loads the persisted snapshot, used as the delta baseline until the first commit.
func (t *Tracker) Seed(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	snap, ok, err := snapshot.Load(ctx, t.store, snapshot.LastRatesKey)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("no persisted snapshot to seed from")
		return nil
	}

	t.mu.Lock()
	t.seeded = &snap
	t.mu.Unlock()
	slog.Info("seeded previous snapshot", "producedAt", snap.ProducedAt, "rates", len(snap.Rates))
	return nil
}

// Run executes one cycle and commits it unless a newer cycle already has.
// It returns ErrNoProviderData or ErrStale when nothing was committed.
func (t *Tracker) Run(ctx context.Context) (State, error) {
	t.mu.Lock()
	t.nextSeq++
	seq := t.nextSeq
	prev := t.baselineLocked()
	t.mu.Unlock()

	start := time.Now()
	res, err := t.refresher.Refresh(ctx, prev)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrNoProviderData) {
			outcome = "no_data"
		}
		metrics.RefreshCycles.WithLabelValues(outcome).Inc()
		return State{}, err
	}

	t.mu.Lock()
	if seq < t.committed {
		t.mu.Unlock()
		metrics.RefreshCycles.WithLabelValues("stale").Inc()
		slog.Info("discarding stale refresh cycle", "cycle", res.CycleID, "seq", seq)
		return State{}, ErrStale
	}
	state := State{Result: res, Seq: seq, CommittedAt: time.Now()}
	t.committed = seq
	t.current = &state
	t.mu.Unlock()

	metrics.RefreshCycles.WithLabelValues("committed").Inc()
	metrics.RatesResolved.Set(float64(res.Snapshot.ResolvedCount()))

	t.persist(ctx, state)
	t.export(ctx, state)
	return state, nil
}

// export runs the hooks for state. Exports are serialized, and a state superseded by a
// newer commit is skipped, so the last export always carries the newest snapshot.
func (t *Tracker) export(ctx context.Context, state State) {
	if len(t.hooks) == 0 {
		return
	}
	t.exportMu.Lock()
	defer t.exportMu.Unlock()

	t.mu.Lock()
	latest := t.committed
	t.mu.Unlock()
	if latest != state.Seq || state.Seq <= t.exported {
		slog.Info("skipping export of superseded cycle", "cycle", state.CycleID, "seq", state.Seq, "latest", latest)
		return
	}

	for _, hook := range t.hooks {
		if err := hook.Export(ctx, state); err != nil {
			slog.Error("export hook failed", "cycle", state.CycleID, "seq", state.Seq, "error", err)
		}
	}
	t.exported = state.Seq
}

// persist writes the committed snapshot unless a newer commit has superseded it.
func (t *Tracker) persist(ctx context.Context, state State) {
	if t.store == nil {
		return
	}
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.Lock()
	latest := t.committed
	t.mu.Unlock()
	if latest != state.Seq {
		return
	}

	if err := snapshot.Save(ctx, t.store, snapshot.LastRatesKey, state.Snapshot); err != nil {
		slog.Error("failed to persist snapshot", "cycle", state.CycleID, "error", err)
	}
}

// Current returns the committed state; ok is false before the first commit.
func (t *Tracker) Current() (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return State{}, false
	}
	return *t.current, true
}

func (t *Tracker) baselineLocked() *domain.RatesSnapshot {
	if t.current != nil {
		snap := t.current.Snapshot
		return &snap
	}
	return t.seeded
}
