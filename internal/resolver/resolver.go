package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/metrics"
	"github.com/mtlprog/kursy/internal/registry"
)

// Config carries the registry settings resolution depends on.
type Config struct {
	LocalCurrency     string
	ReferenceCurrency string
	FiatTables        []string
	GoldProvider      string
	FX                registry.FXConfig
}

// ConfigFromRegistry extracts the resolver settings from a registry.
func ConfigFromRegistry(r *registry.Registry) Config {
	return Config{
		LocalCurrency:     r.LocalCurrency(),
		ReferenceCurrency: r.ReferenceCurrency(),
		FiatTables:        r.FiatTables(),
		GoldProvider:      r.GoldProvider(),
		FX:                r.FX(),
	}
}

// Resolver turns raw per-endpoint payloads into one canonical rate per asset.
// It keeps no state between calls.
type Resolver struct {
	cfg Config
	now func() time.Time
}

// New creates a Resolver.
func New(cfg Config) *Resolver {
	cfg.LocalCurrency = strings.ToUpper(cfg.LocalCurrency)
	cfg.ReferenceCurrency = strings.ToUpper(cfg.ReferenceCurrency)
	return &Resolver{cfg: cfg, now: time.Now}
}

// WithClock overrides the timestamp source, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve builds a snapshot with exactly one entry per asset.
func (r *Resolver) Resolve(raw map[string]domain.RawProviderResult, assets []domain.AssetDescriptor) domain.RatesSnapshot {
	snap, _ := r.ResolveDetailed(raw, assets)
	return snap
}

// ResolveDetailed is Resolve plus the per-asset results, in asset order.
//
// Resolution order: fiat (fx prerequisites), then metal/crypto/stock, then derived
// fallbacks. A failing asset resolves to zero and never aborts the others.
func (r *Resolver) ResolveDetailed(raw map[string]domain.RawProviderResult, assets []domain.AssetDescriptor) (domain.RatesSnapshot, []domain.AssetResult) {
	c := newCycle(r.cfg, raw)
	if c.fxErr != nil {
		slog.Warn("fx rate unavailable", "reference", r.cfg.ReferenceCurrency, "error", c.fxErr)
	} else if c.fxSource == "default" {
		slog.Warn("fx rate fell back to configured default", "reference", r.cfg.ReferenceCurrency, "rate", c.fx)
	}

	results := make(map[string]domain.AssetResult, len(assets))

	fiat, rest := lo.FilterReject(assets, func(a domain.AssetDescriptor, _ int) bool {
		return a.Class == domain.AssetClassFiat
	})
	for _, a := range fiat {
		res := resolveDirect(c, a)
		results[a.Code] = res
		c.fiat[strings.ToUpper(a.Code)] = res.Rate
	}
	for _, a := range rest {
		results[a.Code] = resolveDirect(c, a)
	}

	for _, a := range assets {
		if !a.HasFallback() || results[a.Code].Rate.IsPositive() {
			continue
		}
		results[a.Code] = resolveFallback(a, results[a.Code], results[a.FallbackDependency])
	}

	ordered := make([]domain.AssetResult, 0, len(assets))
	rates := make(map[string]decimal.Decimal, len(assets))
	for _, a := range assets {
		res := results[a.Code]
		if res.Err != nil {
			metrics.AssetUnresolved.WithLabelValues(a.Code, string(res.Kind())).Inc()
			slog.Warn("asset unresolved", "asset", a.Code, "kind", res.Kind(), "error", res.Err)
		}
		ordered = append(ordered, res)
		rates[a.Code] = res.Rate
	}

	return domain.NewRatesSnapshot(rates, r.now()), ordered
}

// resolveDirect evaluates the class strategy's lookups in order.
func resolveDirect(c *cycle, a domain.AssetDescriptor) domain.AssetResult {
	res := domain.AssetResult{Code: a.Code, Rate: decimal.Zero}

	strat, ok := strategies[a.Class]
	if !ok {
		res.Err = fmt.Errorf("%w: no strategy for class %q", domain.ErrUnresolvable, a.Class)
		return res
	}

	var errs []error
	for _, l := range strat(c, a) {
		rate, err := l.run()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.source, err))
			continue
		}
		if rate.IsPositive() {
			res.Rate = rate
			res.Source = l.source
			return res
		}
	}

	switch len(errs) {
	case 0:
		res.Err = fmt.Errorf("%w: %s has no usable quote", domain.ErrUnresolvable, a.Code)
	case 1:
		res.Err = errs[0]
	default:
		// The primary source's failure names the kind.
		res.Err = fmt.Errorf("%w (secondary: %v)", errs[0], errors.Join(errs[1:]...))
	}
	return res
}

// resolveFallback derives rate = dependency × ratio, but only from a resolved
// (nonzero) dependency; otherwise zero propagates.
func resolveFallback(a domain.AssetDescriptor, direct, dep domain.AssetResult) domain.AssetResult {
	if !dep.Rate.IsPositive() {
		return domain.AssetResult{
			Code: a.Code,
			Rate: decimal.Zero,
			Err: fmt.Errorf("%w: %s fallback dependency %s unresolved (direct: %v)",
				domain.ErrUnresolvable, a.Code, a.FallbackDependency, direct.Err),
		}
	}

	metrics.AssetFallbacks.WithLabelValues(a.Code).Inc()
	slog.Info("asset estimated from fallback", "asset", a.Code, "dependency", a.FallbackDependency,
		"ratio", a.FallbackRatio, "direct_error", direct.Err)

	return domain.AssetResult{
		Code:   a.Code,
		Rate:   dep.Rate.Mul(domain.SafeFloat(a.FallbackRatio)),
		Source: "fallback:" + a.FallbackDependency,
	}
}
