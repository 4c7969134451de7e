package export

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/refresh"
)

// RateRow is one asset's line in a rates export.
type RateRow struct {
	Code   string            `json:"code"`
	Name   string            `json:"name"`
	Glyph  string            `json:"glyph"`
	Class  domain.AssetClass `json:"assetClass"`
	Rate   decimal.Decimal   `json:"rate"`
	Change *decimal.Decimal  `json:"changePercent,omitempty"` // vs previous cycle; nil when unavailable
	Source string            `json:"source,omitempty"`
	Error  domain.ErrorKind  `json:"error,omitempty"`
}

// BuildRateRows joins registry descriptors with a committed state, in registry order.
func BuildRateRows(assets []domain.AssetDescriptor, state refresh.State) []RateRow {
	results := lo.KeyBy(state.Assets, func(r domain.AssetResult) string { return r.Code })

	return lo.Map(assets, func(a domain.AssetDescriptor, _ int) RateRow {
		row := RateRow{
			Code:  a.Code,
			Name:  a.DisplayName,
			Glyph: a.Glyph,
			Class: a.Class,
			Rate:  state.Snapshot.Rate(a.Code),
		}
		if d, ok := state.Deltas[a.Code]; ok {
			row.Change = &d
		}
		if r, ok := results[a.Code]; ok {
			row.Source = r.Source
			row.Error = r.Kind()
		}
		return row
	})
}

// SheetWriter writes rate rows to a spreadsheet destination.
type SheetWriter interface {
	Write(ctx context.Context, rows []RateRow) error
	AppendMonitoring(ctx context.Context, rows []RateRow, at time.Time) error
}

// Service turns committed refresh states into spreadsheet rows.
type Service struct {
	assets []domain.AssetDescriptor
	writer SheetWriter
}

// NewService creates a new export Service.
func NewService(assets []domain.AssetDescriptor, writer SheetWriter) *Service {
	return &Service{assets: assets, writer: writer}
}

// Export rewrites the RATES sheet and appends one MONITORING row.
// Implements refresh.Hook.
func (s *Service) Export(ctx context.Context, state refresh.State) error {
	rows := BuildRateRows(s.assets, state)

	if err := s.writer.Write(ctx, rows); err != nil {
		return fmt.Errorf("writing rates sheet: %w", err)
	}
	if err := s.writer.AppendMonitoring(ctx, rows, state.Snapshot.ProducedAt); err != nil {
		return fmt.Errorf("appending monitoring row: %w", err)
	}
	return nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return f
}
