package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/snapshot"
)

func snapWithBTC(v int64) domain.RatesSnapshot {
	return domain.NewRatesSnapshot(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(v)},
		time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
}

// scriptedRefresher returns queued results; a non-nil gate blocks the call until closed.
type scriptedRefresher struct {
	mu    sync.Mutex
	steps []step
	prevs []*domain.RatesSnapshot
}

type step struct {
	gate chan struct{}
	res  Result
	err  error
}

func (s *scriptedRefresher) Refresh(ctx context.Context, prev *domain.RatesSnapshot) (Result, error) {
	s.mu.Lock()
	st := s.steps[0]
	s.steps = s.steps[1:]
	s.prevs = append(s.prevs, prev)
	s.mu.Unlock()

	if st.gate != nil {
		<-st.gate
	}
	if st.err != nil {
		return Result{}, st.err
	}
	res := st.res
	res.Deltas = domain.Deltas(res.Snapshot, prev)
	return res, nil
}

func TestTrackerCommitsAndPersists(t *testing.T) {
	store := snapshot.NewMemoryStore()
	r := &scriptedRefresher{steps: []step{{res: Result{CycleID: "c1", Snapshot: snapWithBTC(100)}}}}
	tr := NewTracker(r, store)

	if _, ok := tr.Current(); ok {
		t.Fatal("Current() ok before first cycle")
	}

	state, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Seq != 1 || state.CycleID != "c1" {
		t.Errorf("state = seq %d cycle %q", state.Seq, state.CycleID)
	}

	cur, ok := tr.Current()
	if !ok || !cur.Snapshot.Rate("BTC").Equal(decimal.NewFromInt(100)) {
		t.Errorf("Current() = %v, %v", cur.Snapshot, ok)
	}

	stored, ok, err := snapshot.Load(context.Background(), store, snapshot.LastRatesKey)
	if err != nil || !ok {
		t.Fatalf("persisted snapshot missing: ok %v err %v", ok, err)
	}
	if !stored.Rate("BTC").Equal(decimal.NewFromInt(100)) {
		t.Errorf("persisted BTC = %s", stored.Rate("BTC"))
	}
}

func TestTrackerNoDataKeepsPrevious(t *testing.T) {
	r := &scriptedRefresher{steps: []step{
		{res: Result{CycleID: "c1", Snapshot: snapWithBTC(100)}},
		{err: ErrNoProviderData},
		{res: Result{CycleID: "c3", Snapshot: snapWithBTC(110)}},
	}}
	tr := NewTracker(r, nil)
	ctx := context.Background()

	tr.Run(ctx)
	if _, err := tr.Run(ctx); !errors.Is(err, ErrNoProviderData) {
		t.Fatalf("err = %v, want ErrNoProviderData", err)
	}
	cur, _ := tr.Current()
	if cur.CycleID != "c1" {
		t.Errorf("Current() cycle = %q, want c1 kept", cur.CycleID)
	}

	state, err := tr.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := state.Deltas["BTC"]; !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("BTC delta = %s, want 10 (against the kept snapshot)", got)
	}
}

func TestTrackerLastSnapshotWins(t *testing.T) {
	slow := make(chan struct{})
	r := &scriptedRefresher{steps: []step{
		{gate: slow, res: Result{CycleID: "old", Snapshot: snapWithBTC(100)}},
		{res: Result{CycleID: "new", Snapshot: snapWithBTC(200)}},
	}}
	store := snapshot.NewMemoryStore()
	tr := NewTracker(r, store)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		oldErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, oldErr = tr.Run(ctx)
	}()

	// Wait until the slow cycle has taken sequence 1.
	for {
		r.mu.Lock()
		started := len(r.prevs)
		r.mu.Unlock()
		if started == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := tr.Run(ctx); err != nil {
		t.Fatalf("newer cycle failed: %v", err)
	}
	close(slow)
	wg.Wait()

	if !errors.Is(oldErr, ErrStale) {
		t.Errorf("older cycle err = %v, want ErrStale", oldErr)
	}
	cur, _ := tr.Current()
	if cur.CycleID != "new" || cur.Seq != 2 {
		t.Errorf("Current() = %q seq %d, want new seq 2", cur.CycleID, cur.Seq)
	}
	stored, _, _ := snapshot.Load(ctx, store, snapshot.LastRatesKey)
	if !stored.Rate("BTC").Equal(decimal.NewFromInt(200)) {
		t.Errorf("persisted BTC = %s, want 200", stored.Rate("BTC"))
	}
}

func TestTrackerSeedsBaseline(t *testing.T) {
	store := snapshot.NewMemoryStore()
	ctx := context.Background()
	if err := snapshot.Save(ctx, store, snapshot.LastRatesKey, snapWithBTC(50)); err != nil {
		t.Fatal(err)
	}

	r := &scriptedRefresher{steps: []step{{res: Result{CycleID: "c1", Snapshot: snapWithBTC(100)}}}}
	tr := NewTracker(r, store)
	if err := tr.Seed(ctx); err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	if _, ok := tr.Current(); ok {
		t.Error("seeded snapshot must not become current")
	}

	state, err := tr.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.prevs[0] == nil {
		t.Fatal("seeded snapshot not passed as baseline")
	}
	if got := state.Deltas["BTC"]; !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("BTC delta = %s, want 100", got)
	}
}

func TestTrackerSeedWithoutStore(t *testing.T) {
	if err := NewTracker(&scriptedRefresher{}, nil).Seed(context.Background()); err != nil {
		t.Errorf("Seed() error: %v", err)
	}
}

// recordingHook records exported sequence numbers; a gate blocks the export of gateSeq.
type recordingHook struct {
	mu      sync.Mutex
	seqs    []uint64
	err     error
	gateSeq uint64
	entered chan struct{}
	gate    chan struct{}
}

func (h *recordingHook) Export(_ context.Context, state State) error {
	if h.gate != nil && state.Seq == h.gateSeq {
		close(h.entered)
		<-h.gate
	}
	h.mu.Lock()
	h.seqs = append(h.seqs, state.Seq)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHook) exported() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uint64(nil), h.seqs...)
}

func TestTrackerRunsHooksOnCommit(t *testing.T) {
	r := &scriptedRefresher{steps: []step{
		{res: Result{CycleID: "c1", Snapshot: snapWithBTC(100)}},
		{err: ErrNoProviderData},
	}}
	failing := &recordingHook{err: errors.New("sheets unavailable")}
	ok := &recordingHook{}
	tr := NewTracker(r, nil)
	tr.OnCommit(failing, ok)
	ctx := context.Background()

	if _, err := tr.Run(ctx); err != nil {
		t.Fatal(err)
	}
	tr.Run(ctx)

	if got := failing.exported(); len(got) != 1 || got[0] != 1 {
		t.Errorf("failing hook exports = %v, want [1]", got)
	}
	if got := ok.exported(); len(got) != 1 || got[0] != 1 {
		t.Errorf("hook after failing one exports = %v, want [1]", got)
	}
}

func TestTrackerExportsEndOnNewestCommit(t *testing.T) {
	r := &scriptedRefresher{steps: []step{
		{res: Result{CycleID: "c1", Snapshot: snapWithBTC(100)}},
		{res: Result{CycleID: "c2", Snapshot: snapWithBTC(200)}},
	}}
	hook := &recordingHook{gateSeq: 1, entered: make(chan struct{}), gate: make(chan struct{})}
	tr := NewTracker(r, nil)
	tr.OnCommit(hook)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tr.Run(ctx)
	}()
	<-hook.entered

	go func() {
		defer wg.Done()
		tr.Run(ctx)
	}()
	// Cycle 2 commits while cycle 1 is still exporting.
	for {
		if cur, ok := tr.Current(); ok && cur.Seq == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(hook.gate)
	wg.Wait()

	got := hook.exported()
	if len(got) == 0 || got[len(got)-1] != 2 {
		t.Errorf("exports = %v, want the last one to be seq 2", got)
	}
}
