package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/registry"
)

// cycle holds everything one resolution pass derives from the joined raw results.
// It lives only for the duration of a single Resolve call.
type cycle struct {
	cfg Config
	raw map[string]domain.RawProviderResult

	tables    map[string]map[string]decimal.Decimal
	tableErrs map[string]error

	// fx is the reference→local multiplier; fxErr is set when no source produced one.
	fx       decimal.Decimal
	fxSource string
	fxErr    error

	// fiat holds the phase-one fiat rates, used to convert quotes in other currencies.
	fiat map[string]decimal.Decimal
}

func newCycle(cfg Config, raw map[string]domain.RawProviderResult) *cycle {
	c := &cycle{
		cfg:       cfg,
		raw:       raw,
		tables:    make(map[string]map[string]decimal.Decimal),
		tableErrs: make(map[string]error),
		fiat:      make(map[string]decimal.Decimal),
	}
	c.fx, c.fxSource, c.fxErr = c.resolveFX()
	return c
}

// payload returns the raw payload of an endpoint or the reason it is absent.
func (c *cycle) payload(id string) (json.RawMessage, error) {
	r, ok := c.raw[id]
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: no result for endpoint %s", domain.ErrPayload, id)
	case r.Err != nil:
		return nil, r.Err
	case r.Payload == nil:
		return nil, fmt.Errorf("%w: endpoint %s returned no payload", domain.ErrPayload, id)
	}
	return r.Payload, nil
}

// table parses a fiat table payload once per cycle.
func (c *cycle) table(id string) (map[string]decimal.Decimal, error) {
	if t, ok := c.tables[id]; ok {
		return t, nil
	}
	if err, ok := c.tableErrs[id]; ok {
		return nil, err
	}
	payload, err := c.payload(id)
	if err == nil {
		var t map[string]decimal.Decimal
		if t, err = parseFiatTable(payload); err == nil {
			c.tables[id] = t
			return t, nil
		}
	}
	c.tableErrs[id] = err
	return nil, err
}

func (c *cycle) tableMid(id, code string) (decimal.Decimal, error) {
	t, err := c.table(id)
	if err != nil {
		return decimal.Zero, err
	}
	mid, ok := t[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s not listed in %s", domain.ErrUnresolvable, code, id)
	}
	return checkRate(mid, "mid")
}

// resolveFX walks the configured fx sources in order, then the default rate.
func (c *cycle) resolveFX() (decimal.Decimal, string, error) {
	var lastErr error
	for _, src := range c.cfg.FX.Sources {
		var (
			rate decimal.Decimal
			err  error
		)
		switch src.Kind {
		case registry.FXSourceRate:
			var payload json.RawMessage
			if payload, err = c.payload(src.Endpoint); err == nil {
				rate, err = parseSingleRate(payload)
			}
		case registry.FXSourceTable:
			rate, err = c.tableMid(src.Endpoint, c.cfg.ReferenceCurrency)
		default:
			err = fmt.Errorf("%w: unknown fx source kind %q", domain.ErrUnresolvable, src.Kind)
		}
		if err == nil && rate.IsPositive() {
			return rate, src.Endpoint, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if d := domain.SafeFloat(c.cfg.FX.DefaultRate); d.IsPositive() {
		return d, "default", nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no fx sources configured", domain.ErrUnresolvable)
	}
	return decimal.Zero, "", fmt.Errorf("%w: no %s→%s rate: %v", domain.ErrUnresolvable,
		c.cfg.ReferenceCurrency, c.cfg.LocalCurrency, lastErr)
}

// multiplier returns the factor converting a price quoted in currency into the local
// currency.
func (c *cycle) multiplier(currency string) (decimal.Decimal, error) {
	cur := strings.ToUpper(currency)
	switch cur {
	case "", c.cfg.LocalCurrency:
		return decimal.NewFromInt(1), nil
	case c.cfg.ReferenceCurrency:
		if c.fxErr != nil {
			return decimal.Zero, c.fxErr
		}
		return c.fx, nil
	}
	if r, ok := c.fiat[cur]; ok && r.IsPositive() {
		return r, nil
	}
	for _, id := range c.cfg.FiatTables {
		if mid, err := c.tableMid(id, cur); err == nil && mid.IsPositive() {
			return mid, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: no %s→%s rate", domain.ErrUnresolvable, cur, c.cfg.LocalCurrency)
}
