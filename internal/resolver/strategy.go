package resolver

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
)

// lookup is one way of obtaining an asset's direct rate. Lookups of an asset are
// evaluated in order until one yields a positive rate.
type lookup struct {
	source string
	run    func() (decimal.Decimal, error)
}

// strategy builds the ordered lookups for an asset of one class.
type strategy func(c *cycle, a domain.AssetDescriptor) []lookup

// strategies is the conversion strategy registered per asset class.
var strategies = map[domain.AssetClass]strategy{
	domain.AssetClassFiat:   fiatLookups,
	domain.AssetClassCrypto: quoteLookups,
	domain.AssetClassStock:  quoteLookups,
	domain.AssetClassMetal:  metalLookups,
}

// fiatLookups checks the fiat tables in configured order (primary, then secondary).
func fiatLookups(c *cycle, a domain.AssetDescriptor) []lookup {
	lookups := make([]lookup, 0, len(c.cfg.FiatTables))
	for _, id := range c.cfg.FiatTables {
		lookups = append(lookups, lookup{
			source: id,
			run:    func() (decimal.Decimal, error) { return c.tableMid(id, a.Code) },
		})
	}
	return lookups
}

// metalLookups reads the dedicated local-currency gold feed directly and treats every
// other metal as a converted market quote.
func metalLookups(c *cycle, a domain.AssetDescriptor) []lookup {
	if a.ProviderID != c.cfg.GoldProvider {
		return quoteLookups(c, a)
	}
	return []lookup{{
		source: a.ProviderID,
		run: func() (decimal.Decimal, error) {
			payload, err := c.payload(a.ProviderID)
			if err != nil {
				return decimal.Zero, err
			}
			price, err := parseGold(payload)
			if err != nil {
				return decimal.Zero, err
			}
			return checkRate(price, "gold price")
		},
	}}
}

// quoteLookups reads an id-keyed market quote and converts it to the local currency:
// price × fx(quote→local), then ÷ unitDivisor when set.
func quoteLookups(c *cycle, a domain.AssetDescriptor) []lookup {
	return []lookup{{
		source: a.ProviderID,
		run: func() (decimal.Decimal, error) {
			if a.ExternalID == "" {
				return decimal.Zero, fmt.Errorf("%w: %s has no external id", domain.ErrPayload, a.Code)
			}
			payload, err := c.payload(a.ProviderID)
			if err != nil {
				return decimal.Zero, err
			}
			currency := a.QuoteCurrency
			if currency == "" {
				currency = c.cfg.LocalCurrency
			}
			price, err := parseSimplePrice(payload, a.ExternalID, currency)
			if err != nil {
				return decimal.Zero, err
			}
			if price, err = checkRate(price, "price"); err != nil || price.IsZero() {
				return decimal.Zero, err
			}
			return c.convert(price, a)
		},
	}}
}

// convert applies the currency multiplier and unit divisor to an external price.
func (c *cycle) convert(price decimal.Decimal, a domain.AssetDescriptor) (decimal.Decimal, error) {
	local := price
	if !a.QuotedIn(c.cfg.LocalCurrency) {
		m, err := c.multiplier(a.QuoteCurrency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("converting %s: %w", a.Code, err)
		}
		local = price.Mul(m)
	}
	if div := domain.SafeFloat(a.UnitDivisor); div.IsPositive() {
		local = local.Div(div)
	}
	return local, nil
}
