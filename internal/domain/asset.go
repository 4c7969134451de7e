package domain

import (
	"fmt"
	"strings"
)

// AssetClass is the category of a quoted instrument.
type AssetClass string

const (
	AssetClassFiat   AssetClass = "fiat"
	AssetClassCrypto AssetClass = "crypto"
	AssetClassMetal  AssetClass = "metal"
	AssetClassStock  AssetClass = "stock"
)

// Valid reports whether c is one of the known asset classes.
func (c AssetClass) Valid() bool {
	switch c {
	case AssetClassFiat, AssetClassCrypto, AssetClassMetal, AssetClassStock:
		return true
	}
	return false
}

// HistorySource names the provider family that serves an asset's historical series.
type HistorySource string

const (
	HistoryMarket    HistorySource = "market"     // CoinGecko market_chart/range
	HistoryFiatTable HistorySource = "fiat-table" // NBP exchangerates/rates/{table}
	HistoryGoldTable HistorySource = "gold-table" // NBP cenyzlota
)

// FiatTableProvider is the pseudo provider id of assets looked up in the NBP fiat tables.
const FiatTableProvider = "nbp"

// AssetDescriptor describes one quoted instrument. Descriptors are immutable once the
// registry is built.
type AssetDescriptor struct {
	Code        string     `json:"code" yaml:"code"`
	DisplayName string     `json:"displayName" yaml:"name"`
	Glyph       string     `json:"glyph" yaml:"glyph"`
	Class       AssetClass `json:"assetClass" yaml:"class"`
	ProviderID  string     `json:"providerId" yaml:"provider"`
	ExternalID  string     `json:"externalId,omitempty" yaml:"external_id"`
	// QuoteCurrency is the currency the provider quotes this asset in (lowercase ISO code).
	// Empty means the local currency.
	QuoteCurrency      string        `json:"quoteCurrency,omitempty" yaml:"quote_currency"`
	UnitDivisor        float64       `json:"unitDivisor,omitempty" yaml:"unit_divisor"`
	FallbackDependency string        `json:"fallbackDependency,omitempty" yaml:"fallback_dependency"`
	FallbackRatio      float64       `json:"fallbackRatio,omitempty" yaml:"fallback_ratio"`
	History            HistorySource `json:"history,omitempty" yaml:"history"`
}

// HasFallback reports whether a derived fallback estimate is configured.
func (a AssetDescriptor) HasFallback() bool {
	return a.FallbackDependency != "" && a.FallbackRatio > 0
}

// QuotedIn reports whether the provider quotes the asset in the given currency.
func (a AssetDescriptor) QuotedIn(currency string) bool {
	return a.QuoteCurrency == "" || strings.EqualFold(a.QuoteCurrency, currency)
}

// HistorySourceOrDefault returns the configured history source, or the one implied by
// the asset class and provider.
func (a AssetDescriptor) HistorySourceOrDefault(goldProvider string) HistorySource {
	if a.History != "" {
		return a.History
	}
	switch {
	case a.Class == AssetClassFiat:
		return HistoryFiatTable
	case a.ProviderID == goldProvider:
		return HistoryGoldTable
	default:
		return HistoryMarket
	}
}

func (a AssetDescriptor) String() string {
	return fmt.Sprintf("%s(%s/%s)", a.Code, a.Class, a.ProviderID)
}

// ProviderEndpoint is a named URL queried once per refresh cycle.
type ProviderEndpoint struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
