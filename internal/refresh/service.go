package refresh

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/registry"
)

// ErrNoProviderData indicates that no endpoint answered; the previous snapshot stays.
var ErrNoProviderData = errors.New("no provider returned data")

// Fetcher requests every endpoint once and joins the results.
type Fetcher interface {
	FetchAll(ctx context.Context, endpoints map[string]string) map[string]domain.RawProviderResult
}

// Resolver turns joined raw results into a snapshot.
type Resolver interface {
	ResolveDetailed(raw map[string]domain.RawProviderResult, assets []domain.AssetDescriptor) (domain.RatesSnapshot, []domain.AssetResult)
}

// Result is the outcome of one refresh cycle.
type Result struct {
	CycleID  string                     `json:"cycleId"`
	Snapshot domain.RatesSnapshot       `json:"snapshot"`
	Deltas   map[string]decimal.Decimal `json:"deltas"`
	Assets   []domain.AssetResult       `json:"assets"`
}

// Service runs refresh cycles. It holds no state between calls; the caller passes
// the previous snapshot in and receives the new one back.
type Service struct {
	reg      *registry.Registry
	fetcher  Fetcher
	resolver Resolver
}

// NewService creates a refresh Service.
func NewService(reg *registry.Registry, fetcher Fetcher, resolver Resolver) *Service {
	return &Service{reg: reg, fetcher: fetcher, resolver: resolver}
}

// Refresh fetches all endpoints, resolves a new snapshot and computes deltas against
// prev (nil on the first cycle). It returns ErrNoProviderData when every endpoint failed.
func (s *Service) Refresh(ctx context.Context, prev *domain.RatesSnapshot) (Result, error) {
	cycleID := uuid.NewString()
	raw := s.fetcher.FetchAll(ctx, s.reg.Endpoints())

	if !lo.SomeBy(lo.Values(raw), func(r domain.RawProviderResult) bool { return r.OK() }) {
		slog.Warn("refresh produced no provider data", "cycle", cycleID, "endpoints", len(raw))
		return Result{CycleID: cycleID}, ErrNoProviderData
	}

	snap, assets := s.resolver.ResolveDetailed(raw, s.reg.Assets())
	slog.Info("refresh resolved", "cycle", cycleID,
		"resolved", snap.ResolvedCount(), "assets", len(assets))

	return Result{
		CycleID:  cycleID,
		Snapshot: snap,
		Deltas:   domain.Deltas(snap, prev),
		Assets:   assets,
	}, nil
}
