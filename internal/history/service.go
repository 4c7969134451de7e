package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/metrics"
	"github.com/mtlprog/kursy/internal/registry"
)

// ErrUnknownAsset is returned for codes absent from the registry.
var ErrUnknownAsset = errors.New("unknown asset")

// maxChunkDays is the longest date range NBP serves in one query (inclusive).
const maxChunkDays = 93

// JSONGetter is the network primitive history requests go through.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, dest any) error
}

// Source produces historical series for registry assets.
type Source interface {
	Series(ctx context.Context, code string, days int) (domain.HistoricalSeries, error)
}

// Service fetches historical series on demand. It shares no state with the refresh
// path and never caches; see CachedService.
type Service struct {
	reg    *registry.Registry
	client JSONGetter
	now    func() time.Time
}

// NewService creates a history Service.
func NewService(reg *registry.Registry, client JSONGetter) *Service {
	return &Service{reg: reg, client: client, now: time.Now}
}

// WithClock overrides the clock used to compute the window, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Series returns the daily series of code over [today−days, today] (UTC).
// Provider failures yield an empty series and a nil error; only an unknown code errors.
func (s *Service) Series(ctx context.Context, code string, days int) (domain.HistoricalSeries, error) {
	asset, ok := s.reg.Asset(code)
	if !ok {
		return domain.HistoricalSeries{}, fmt.Errorf("%w: %s", ErrUnknownAsset, code)
	}
	if days < 1 {
		days = 1
	}

	now := s.now().UTC()
	source := asset.HistorySourceOrDefault(s.reg.GoldProvider())
	series := domain.HistoricalSeries{
		AssetCode: asset.Code,
		Currency:  s.reg.LocalCurrency(),
		Points:    []domain.HistoricalPoint{},
	}

	var (
		points []domain.HistoricalPoint
		err    error
	)
	switch source {
	case domain.HistoryMarket:
		series.Currency = s.marketCurrency(asset)
		points, err = s.market(ctx, asset, series.Currency, now.AddDate(0, 0, -days), now)
	case domain.HistoryFiatTable:
		points, err = s.fiat(ctx, asset.Code, window(now, days))
	case domain.HistoryGoldTable:
		points, err = s.gold(ctx, window(now, days))
	default:
		err = fmt.Errorf("unsupported history source %q", source)
	}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		slog.Warn("history unavailable", "asset", asset.Code, "source", source, "days", days, "error", err)
	case len(points) == 0:
		outcome = "empty"
	default:
		series.Points = points
	}
	metrics.HistoryRequests.WithLabelValues(string(source), outcome).Inc()

	return series, nil
}

func (s *Service) marketCurrency(a domain.AssetDescriptor) string {
	if a.QuoteCurrency == "" {
		return s.reg.LocalCurrency()
	}
	return strings.ToUpper(a.QuoteCurrency)
}

// dateRange is an inclusive span of calendar dates.
type dateRange struct {
	start, end time.Time
}

func (r dateRange) String() string {
	return r.start.Format(domain.DateLayout) + "/" + r.end.Format(domain.DateLayout)
}

func window(now time.Time, days int) dateRange {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return dateRange{start: end.AddDate(0, 0, -days), end: end}
}

// chunks splits r into consecutive ranges of at most maxChunkDays days each.
func (r dateRange) chunks() []dateRange {
	var out []dateRange
	for start := r.start; !start.After(r.end); {
		end := start.AddDate(0, 0, maxChunkDays-1)
		if end.After(r.end) {
			end = r.end
		}
		out = append(out, dateRange{start: start, end: end})
		start = end.AddDate(0, 0, 1)
	}
	return out
}
