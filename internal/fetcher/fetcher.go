package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/metrics"
)

// Getter is the network primitive the Fetcher dispatches through.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Fetcher issues one request per configured endpoint per refresh cycle.
type Fetcher struct {
	client Getter
}

// New creates a Fetcher.
func New(client Getter) *Fetcher {
	return &Fetcher{client: client}
}

// FetchAll requests every endpoint concurrently and returns once all of them have
// settled. A failing endpoint yields a result with a nil payload and never affects
// the others. There is no retry within a cycle.
func (f *Fetcher) FetchAll(ctx context.Context, endpoints map[string]string) map[string]domain.RawProviderResult {
	ids := make([]string, 0, len(endpoints))
	for id := range endpoints {
		ids = append(ids, id)
	}

	// One slot per endpoint; goroutines never share a slot.
	slots := make([]domain.RawProviderResult, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		url := endpoints[id]
		g.Go(func() error {
			slots[i] = f.fetchOne(ctx, id, url)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]domain.RawProviderResult, len(slots))
	for _, r := range slots {
		results[r.ProviderID] = r
	}
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, id, url string) domain.RawProviderResult {
	start := time.Now()
	result := domain.RawProviderResult{ProviderID: id}

	body, err := f.client.Get(ctx, url)
	if err == nil && !json.Valid(body) {
		err = fmt.Errorf("%w: invalid JSON from %s", domain.ErrPayload, id)
	}

	metrics.FetchDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
	if err != nil {
		result.Err = fmt.Errorf("fetching %s: %w", id, err)
		metrics.FetchRequests.WithLabelValues(id, string(domain.KindOf(err))).Inc()
		slog.Warn("endpoint fetch failed", "endpoint", id, "kind", domain.KindOf(err), "error", err)
		return result
	}

	metrics.FetchRequests.WithLabelValues(id, "ok").Inc()
	result.Payload = json.RawMessage(body)
	return result
}

// AnyPayload reports whether at least one endpoint produced a payload.
func AnyPayload(results map[string]domain.RawProviderResult) bool {
	for _, r := range results {
		if r.OK() {
			return true
		}
	}
	return false
}
