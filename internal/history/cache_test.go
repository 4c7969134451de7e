package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
)

type stubSource struct {
	calls  int
	series domain.HistoricalSeries
	err    error
}

func (s *stubSource) Series(_ context.Context, code string, _ int) (domain.HistoricalSeries, error) {
	s.calls++
	out := s.series
	out.AssetCode = code
	return out, s.err
}

func TestCacheKey(t *testing.T) {
	if got := cacheKey("EUR", 30); got != "EUR:30" {
		t.Errorf("cacheKey() = %q, want EUR:30", got)
	}
}

func TestCachedServiceHitAndMiss(t *testing.T) {
	stub := &stubSource{series: domain.HistoricalSeries{
		Points: []domain.HistoricalPoint{{Date: "2024-05-01", Value: decimal.NewFromInt(1)}},
	}}
	c := NewCachedService(stub, time.Minute)

	for range 3 {
		if _, err := c.Series(context.Background(), "BTC", 30); err != nil {
			t.Fatal(err)
		}
	}
	if stub.calls != 1 {
		t.Errorf("calls = %d, want 1", stub.calls)
	}

	if _, err := c.Series(context.Background(), "BTC", 7); err != nil {
		t.Fatal(err)
	}
	if stub.calls != 2 {
		t.Errorf("calls = %d, want 2 (different window)", stub.calls)
	}
}

func TestCachedServiceExpiry(t *testing.T) {
	stub := &stubSource{series: domain.HistoricalSeries{
		Points: []domain.HistoricalPoint{{Date: "2024-05-01", Value: decimal.NewFromInt(1)}},
	}}
	c := NewCachedService(stub, time.Minute)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Series(context.Background(), "EUR", 30)
	now = now.Add(2 * time.Minute)
	c.Series(context.Background(), "EUR", 30)

	if stub.calls != 2 {
		t.Errorf("calls = %d, want 2 after expiry", stub.calls)
	}
}

func TestCachedServiceSkipsEmpty(t *testing.T) {
	stub := &stubSource{}
	c := NewCachedService(stub, time.Minute)

	c.Series(context.Background(), "XAU", 30)
	c.Series(context.Background(), "XAU", 30)

	if stub.calls != 2 {
		t.Errorf("calls = %d, want 2 (empty series are not cached)", stub.calls)
	}
}

func TestCachedServicePassesErrors(t *testing.T) {
	stub := &stubSource{err: ErrUnknownAsset}
	c := NewCachedService(stub, time.Minute)

	if _, err := c.Series(context.Background(), "DOGE", 30); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("err = %v, want ErrUnknownAsset", err)
	}
}
