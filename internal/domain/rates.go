package domain

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used by all providers and series.
const DateLayout = "2006-01-02"

// RawProviderResult is the outcome of one endpoint request within a refresh cycle.
// Payload is nil when the request failed; Err then carries the cause.
type RawProviderResult struct {
	ProviderID string
	Payload    json.RawMessage
	Err        error
}

// OK reports whether the endpoint produced a payload.
func (r RawProviderResult) OK() bool {
	return r.Payload != nil && r.Err == nil
}

// Kind returns the taxonomy kind of the failure, or KindNone.
func (r RawProviderResult) Kind() ErrorKind {
	return KindOf(r.Err)
}

// RatesSnapshot is an immutable, fully resolved rate map produced by one cycle.
// A zero rate means the asset could not be resolved.
type RatesSnapshot struct {
	Rates      map[string]decimal.Decimal `json:"ratesByCode"`
	ProducedAt time.Time                  `json:"producedAt"`
}

// NewRatesSnapshot copies rates into a new snapshot. Negative rates are clamped to zero.
func NewRatesSnapshot(rates map[string]decimal.Decimal, producedAt time.Time) RatesSnapshot {
	out := make(map[string]decimal.Decimal, len(rates))
	for code, r := range rates {
		if r.IsNegative() {
			r = decimal.Zero
		}
		out[code] = r
	}
	return RatesSnapshot{Rates: out, ProducedAt: producedAt}
}

// Rate returns the rate for code, or zero when absent or unresolved.
func (s RatesSnapshot) Rate(code string) decimal.Decimal {
	return s.Rates[code]
}

// ResolvedCount returns the number of assets with a nonzero rate.
func (s RatesSnapshot) ResolvedCount() int {
	n := 0
	for _, r := range s.Rates {
		if r.IsPositive() {
			n++
		}
	}
	return n
}

// RatesCopy returns a copy of the rate map that callers may modify.
func (s RatesSnapshot) RatesCopy() map[string]decimal.Decimal {
	return maps.Clone(s.Rates)
}

// AssetResult is the per-asset outcome of resolution. Err is retained for observability;
// the externally visible rate of a failed asset is zero.
type AssetResult struct {
	Code   string          `json:"code"`
	Rate   decimal.Decimal `json:"rate"`
	Source string          `json:"source,omitempty"`
	Err    error           `json:"-"`
}

// Kind returns the taxonomy kind of the resolution failure, or KindNone.
func (r AssetResult) Kind() ErrorKind {
	return KindOf(r.Err)
}

// HistoricalPoint is one value on one calendar date.
type HistoricalPoint struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// HistoricalSeries holds at most one point per calendar date, ascending by date.
// An empty series means no data was obtained.
type HistoricalSeries struct {
	AssetCode string            `json:"assetCode"`
	Currency  string            `json:"currency"`
	Points    []HistoricalPoint `json:"points"`
}

// Empty reports whether the series carries no data.
func (s HistoricalSeries) Empty() bool {
	return len(s.Points) == 0
}
