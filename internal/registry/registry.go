package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/mtlprog/kursy/internal/domain"
)

// ErrInvalid indicates a registry that violates its invariants.
var ErrInvalid = errors.New("invalid registry")

// FXSourceKind selects how a reference→local fx multiplier is read from a payload.
type FXSourceKind string

const (
	FXSourceRate  FXSourceKind = "rate"  // single-currency rate endpoint: {"rates":[{"mid":…}]}
	FXSourceTable FXSourceKind = "table" // fiat table endpoint: [{"rates":[{"code":…,"mid":…}]}]
)

// FXSource is one step of the fx lookup chain.
type FXSource struct {
	Kind     FXSourceKind `yaml:"kind"`
	Endpoint string       `yaml:"endpoint"`
}

// FXConfig describes how the reference→local multiplier is obtained.
// DefaultRate is the last-resort multiplier; zero disables it.
type FXConfig struct {
	Sources     []FXSource `yaml:"sources"`
	DefaultRate float64    `yaml:"default_rate"`
}

// HistoryEndpoints holds the base URLs of the historical providers.
type HistoryEndpoints struct {
	CoinGecko string `yaml:"coingecko" env-default:"https://api.coingecko.com/api/v3/coins"`
	NBPRates  string `yaml:"nbp_rates" env-default:"https://api.nbp.pl/api/exchangerates/rates"`
	NBPGold   string `yaml:"nbp_gold" env-default:"https://api.nbp.pl/api/cenyzlota"`

	// FiatTables are the NBP table letters for fiat history, one per registry fiat
	// table and in the same order.
	FiatTables []string `yaml:"fiat_tables" env-default:"A,B"`
}

// Registry is the static table of asset descriptors and provider endpoints.
// It is built once at startup and never mutated; accessors return copies.
type Registry struct {
	version           string
	localCurrency     string
	referenceCurrency string
	assets            []domain.AssetDescriptor
	byCode            map[string]domain.AssetDescriptor
	endpoints         map[string]string
	fiatTables        []string
	goldProvider      string
	fx                FXConfig
	history           HistoryEndpoints
}

// New builds and validates a registry from a File.
func New(f File) (*Registry, error) {
	r := &Registry{
		version:           f.Version,
		localCurrency:     strings.ToUpper(f.LocalCurrency),
		referenceCurrency: strings.ToUpper(f.ReferenceCurrency),
		assets:            slices.Clone(f.Assets),
		endpoints:         maps.Clone(f.Endpoints),
		fiatTables:        slices.Clone(f.FiatTables),
		goldProvider:      f.GoldProvider,
		fx:                FXConfig{Sources: slices.Clone(f.FX.Sources), DefaultRate: f.FX.DefaultRate},
		history:           f.History,
	}
	r.history.FiatTables = slices.Clone(f.History.FiatTables)
	if err := r.validate(); err != nil {
		return nil, err
	}
	r.byCode = lo.KeyBy(r.assets, func(a domain.AssetDescriptor) string { return a.Code })
	return r, nil
}

func (r *Registry) validate() error {
	if len(r.assets) == 0 {
		return fmt.Errorf("%w: no assets configured", ErrInvalid)
	}
	if r.localCurrency == "" {
		return fmt.Errorf("%w: local currency is empty", ErrInvalid)
	}
	if dups := lo.FindDuplicatesBy(r.assets, func(a domain.AssetDescriptor) string { return a.Code }); len(dups) > 0 {
		return fmt.Errorf("%w: duplicate asset code %q", ErrInvalid, dups[0].Code)
	}
	for _, id := range r.fiatTables {
		if _, ok := r.endpoints[id]; !ok {
			return fmt.Errorf("%w: fiat table %q has no endpoint", ErrInvalid, id)
		}
	}
	if len(r.history.FiatTables) != len(r.fiatTables) {
		return fmt.Errorf("%w: %d history fiat tables for %d fiat tables", ErrInvalid,
			len(r.history.FiatTables), len(r.fiatTables))
	}
	for _, src := range r.fx.Sources {
		if _, ok := r.endpoints[src.Endpoint]; !ok {
			return fmt.Errorf("%w: fx source %q has no endpoint", ErrInvalid, src.Endpoint)
		}
		if src.Kind != FXSourceRate && src.Kind != FXSourceTable {
			return fmt.Errorf("%w: fx source %q has unknown kind %q", ErrInvalid, src.Endpoint, src.Kind)
		}
	}
	if r.fx.DefaultRate < 0 {
		return fmt.Errorf("%w: negative default fx rate", ErrInvalid)
	}

	codes := lo.SliceToMap(r.assets, func(a domain.AssetDescriptor) (string, domain.AssetDescriptor) {
		return a.Code, a
	})
	for _, a := range r.assets {
		if a.Code == "" {
			return fmt.Errorf("%w: asset with empty code", ErrInvalid)
		}
		if !a.Class.Valid() {
			return fmt.Errorf("%w: %s has unknown class %q", ErrInvalid, a.Code, a.Class)
		}
		if a.Class == domain.AssetClassFiat {
			if len(r.fiatTables) == 0 {
				return fmt.Errorf("%w: fiat asset %s but no fiat tables", ErrInvalid, a.Code)
			}
		} else if _, ok := r.endpoints[a.ProviderID]; !ok {
			return fmt.Errorf("%w: %s references unknown provider %q", ErrInvalid, a.Code, a.ProviderID)
		}
		if a.UnitDivisor < 0 {
			return fmt.Errorf("%w: %s has negative unit divisor", ErrInvalid, a.Code)
		}
		if a.FallbackDependency == "" {
			if a.FallbackRatio != 0 {
				return fmt.Errorf("%w: %s has fallback ratio without dependency", ErrInvalid, a.Code)
			}
			continue
		}
		if a.FallbackRatio <= 0 {
			return fmt.Errorf("%w: %s has non-positive fallback ratio", ErrInvalid, a.Code)
		}
		dep, ok := codes[a.FallbackDependency]
		switch {
		case !ok:
			return fmt.Errorf("%w: %s falls back to unknown asset %q", ErrInvalid, a.Code, a.FallbackDependency)
		case dep.Code == a.Code:
			return fmt.Errorf("%w: %s falls back to itself", ErrInvalid, a.Code)
		case dep.HasFallback():
			return fmt.Errorf("%w: %s falls back to %s which has its own fallback", ErrInvalid, a.Code, dep.Code)
		}
	}
	return nil
}

// Version returns the registry file version.
func (r *Registry) Version() string { return r.version }

// LocalCurrency returns the upper-case currency all rates are expressed in.
func (r *Registry) LocalCurrency() string { return r.localCurrency }

// ReferenceCurrency returns the currency foreign quotes are converted from.
func (r *Registry) ReferenceCurrency() string { return r.referenceCurrency }

// Assets returns the descriptors in display order.
func (r *Registry) Assets() []domain.AssetDescriptor {
	return slices.Clone(r.assets)
}

// Asset looks up a descriptor by code.
func (r *Registry) Asset(code string) (domain.AssetDescriptor, bool) {
	a, ok := r.byCode[code]
	return a, ok
}

// Endpoints returns endpoint id → URL.
func (r *Registry) Endpoints() map[string]string {
	return maps.Clone(r.endpoints)
}

// EndpointList returns the endpoints sorted by id.
func (r *Registry) EndpointList() []domain.ProviderEndpoint {
	ids := slices.Sorted(maps.Keys(r.endpoints))
	return lo.Map(ids, func(id string, _ int) domain.ProviderEndpoint {
		return domain.ProviderEndpoint{ID: id, URL: r.endpoints[id]}
	})
}

// FiatTables returns the fiat table endpoint ids in lookup order.
func (r *Registry) FiatTables() []string { return slices.Clone(r.fiatTables) }

// GoldProvider returns the endpoint id of the dedicated gold feed.
func (r *Registry) GoldProvider() string { return r.goldProvider }

// FX returns the fx lookup configuration.
func (r *Registry) FX() FXConfig {
	return FXConfig{Sources: slices.Clone(r.fx.Sources), DefaultRate: r.fx.DefaultRate}
}

// History returns the historical provider base URLs.
func (r *Registry) History() HistoryEndpoints {
	h := r.history
	h.FiatTables = slices.Clone(h.FiatTables)
	return h
}
