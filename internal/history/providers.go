package history

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
)

// marketChart is a CoinGecko /coins/{id}/market_chart/range response.
type marketChart struct {
	Prices [][]decimal.Decimal `json:"prices"`
}

// nbpSeries is an NBP /exchangerates/rates/{table}/{code}/{start}/{end} response.
type nbpSeries struct {
	Table string `json:"table"`
	Code  string `json:"code"`
	Rates []struct {
		EffectiveDate string          `json:"effectiveDate"`
		Mid           decimal.Decimal `json:"mid"`
	} `json:"rates"`
}

type nbpGoldPrice struct {
	Date  string          `json:"data"`
	Price decimal.Decimal `json:"cena"`
}

// market reads sub-daily CoinGecko prices and keeps the first observation per UTC date.
func (s *Service) market(ctx context.Context, a domain.AssetDescriptor, currency string, from, to time.Time) ([]domain.HistoricalPoint, error) {
	if a.ExternalID == "" {
		return nil, fmt.Errorf("%w: %s has no external id", domain.ErrPayload, a.Code)
	}

	q := url.Values{}
	q.Set("vs_currency", strings.ToLower(currency))
	q.Set("from", fmt.Sprint(from.Unix()))
	q.Set("to", fmt.Sprint(to.Unix()))
	u := fmt.Sprintf("%s/%s/market_chart/range?%s", s.reg.History().CoinGecko, url.PathEscape(a.ExternalID), q.Encode())

	var chart marketChart
	if err := s.client.GetJSON(ctx, u, &chart); err != nil {
		return nil, fmt.Errorf("fetching market chart for %s: %w", a.Code, err)
	}

	f := newFolder(len(chart.Prices))
	for _, pair := range chart.Prices {
		if len(pair) < 2 {
			continue
		}
		at := time.UnixMilli(pair[0].IntPart()).UTC()
		f.add(at.Format(domain.DateLayout), pair[1])
	}
	return f.points(), nil
}

// fiat reads the fiat table histories in registry order and stops at the first table
// that answers for the code. That table serves the whole window.
func (s *Service) fiat(ctx context.Context, code string, r dateRange) ([]domain.HistoricalPoint, error) {
	var errs []error
	for _, table := range s.reg.History().FiatTables {
		points, err := s.fiatTable(ctx, table, code, r)
		if err == nil {
			return points, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (s *Service) fiatTable(ctx context.Context, table, code string, r dateRange) ([]domain.HistoricalPoint, error) {
	f := newFolder(0)
	var (
		answered bool
		lastErr  error
	)
	for _, c := range r.chunks() {
		u := fmt.Sprintf("%s/%s/%s/%s/%s/?format=json", s.reg.History().NBPRates, table,
			strings.ToLower(code), c.start.Format(domain.DateLayout), c.end.Format(domain.DateLayout))

		var resp nbpSeries
		if err := s.client.GetJSON(ctx, u, &resp); err != nil {
			// A chunk without publications (holidays) is answered with 404.
			lastErr = fmt.Errorf("fetching table %s %s %s: %w", table, code, c, err)
			continue
		}
		answered = true
		for _, rate := range resp.Rates {
			f.add(rate.EffectiveDate, rate.Mid)
		}
	}
	if !answered {
		return nil, lastErr
	}
	return f.points(), nil
}

func (s *Service) gold(ctx context.Context, r dateRange) ([]domain.HistoricalPoint, error) {
	f := newFolder(0)
	var (
		answered bool
		lastErr  error
	)
	for _, c := range r.chunks() {
		u := fmt.Sprintf("%s/%s/%s/?format=json", s.reg.History().NBPGold,
			c.start.Format(domain.DateLayout), c.end.Format(domain.DateLayout))

		var prices []nbpGoldPrice
		if err := s.client.GetJSON(ctx, u, &prices); err != nil {
			lastErr = fmt.Errorf("fetching gold prices %s: %w", c, err)
			continue
		}
		answered = true
		for _, p := range prices {
			f.add(p.Date, p.Price)
		}
	}
	if !answered {
		return nil, lastErr
	}
	return f.points(), nil
}

// folder keeps the first value seen for each calendar date.
type folder struct {
	byDate map[string]decimal.Decimal
	order  []string
}

func newFolder(hint int) *folder {
	return &folder{byDate: make(map[string]decimal.Decimal, hint)}
}

func (f *folder) add(date string, value decimal.Decimal) {
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return
	}
	if value.IsNegative() {
		return
	}
	if _, seen := f.byDate[date]; seen {
		return
	}
	f.byDate[date] = value
	f.order = append(f.order, date)
}

// points returns the folded values sorted ascending by date.
func (f *folder) points() []domain.HistoricalPoint {
	dates := slices.Clone(f.order)
	slices.Sort(dates)
	out := make([]domain.HistoricalPoint, 0, len(dates))
	for _, d := range dates {
		out = append(out, domain.HistoricalPoint{Date: d, Value: f.byDate[d]})
	}
	return out
}
