package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
	"github.com/mtlprog/kursy/internal/export"
	"github.com/mtlprog/kursy/internal/history"
	"github.com/mtlprog/kursy/internal/refresh"
	"github.com/mtlprog/kursy/internal/registry"
)

// RatesTracker exposes the committed rates state and runs on-demand cycles.
type RatesTracker interface {
	Current() (refresh.State, bool)
	Run(ctx context.Context) (refresh.State, error)
}

// Handler provides HTTP endpoints for the rates API.
type Handler struct {
	reg         *registry.Registry
	rates       RatesTracker
	history     history.Source
	defaultDays int
	maxDays     int
}

// NewHandler creates a new API handler.
func NewHandler(reg *registry.Registry, rates RatesTracker, hist history.Source, defaultDays, maxDays int) *Handler {
	return &Handler{
		reg:         reg,
		rates:       rates,
		history:     hist,
		defaultDays: defaultDays,
		maxDays:     maxDays,
	}
}

type assetsResponse struct {
	Version           string                   `json:"version"`
	LocalCurrency     string                   `json:"localCurrency"`
	ReferenceCurrency string                   `json:"referenceCurrency"`
	Assets            []domain.AssetDescriptor `json:"assets"`
}

type rateEntry struct {
	Code   string           `json:"code"`
	Name   string           `json:"name"`
	Glyph  string           `json:"glyph"`
	Class  string           `json:"assetClass"`
	Rate   decimal.Decimal  `json:"rate"`
	Change *decimal.Decimal `json:"changePercent,omitempty"`
	Source string           `json:"source,omitempty"`
	Error  domain.ErrorKind `json:"error,omitempty"`
}

type ratesResponse struct {
	CycleID       string      `json:"cycleId"`
	Seq           uint64      `json:"seq"`
	ProducedAt    time.Time   `json:"producedAt"`
	CommittedAt   time.Time   `json:"committedAt"`
	LocalCurrency string      `json:"localCurrency"`
	Resolved      int         `json:"resolved"`
	Rates         []rateEntry `json:"rates"`
}

// GetAssets handles GET /api/v1/assets.
func (h *Handler) GetAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, assetsResponse{
		Version:           h.reg.Version(),
		LocalCurrency:     h.reg.LocalCurrency(),
		ReferenceCurrency: h.reg.ReferenceCurrency(),
		Assets:            h.reg.Assets(),
	})
}

// GetRates handles GET /api/v1/rates.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	state, ok := h.rates.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "rates not available yet")
		return
	}
	writeJSON(w, http.StatusOK, h.ratesResponse(state))
}

// RefreshRates handles POST /api/v1/rates/refresh.
func (h *Handler) RefreshRates(w http.ResponseWriter, r *http.Request) {
	state, err := h.rates.Run(r.Context())
	switch {
	case errors.Is(err, refresh.ErrNoProviderData):
		writeError(w, http.StatusBadGateway, "no provider returned data")
		return
	case errors.Is(err, refresh.ErrStale):
		// A newer cycle committed meanwhile; serve that one.
		var ok bool
		if state, ok = h.rates.Current(); !ok {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	case err != nil:
		slog.Error("failed to refresh rates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refresh rates")
		return
	}
	writeJSON(w, http.StatusOK, h.ratesResponse(state))
}

// GetHistory handles GET /api/v1/history/{code}.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	series, _, ok := h.series(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// GetHistoryXLSX handles GET /api/v1/history/{code}/xlsx.
func (h *Handler) GetHistoryXLSX(w http.ResponseWriter, r *http.Request) {
	series, days, ok := h.series(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteSeriesXLSX(&buf, series); err != nil {
		slog.Error("failed to build history workbook", "asset", series.AssetCode, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%dd.xlsx"`, series.AssetCode, days))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
	}
}

// series resolves the path code and days query and fetches the series, writing the
// error response itself when it returns false.
func (h *Handler) series(w http.ResponseWriter, r *http.Request) (domain.HistoricalSeries, int, bool) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	if _, ok := h.reg.Asset(code); !ok {
		writeError(w, http.StatusNotFound, "unknown asset")
		return domain.HistoricalSeries{}, 0, false
	}

	days := h.defaultDays
	if d := r.URL.Query().Get("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			days = min(n, h.maxDays)
		}
	}

	series, err := h.history.Series(r.Context(), code, days)
	if err != nil {
		if errors.Is(err, history.ErrUnknownAsset) {
			writeError(w, http.StatusNotFound, "unknown asset")
			return domain.HistoricalSeries{}, 0, false
		}
		slog.Error("failed to get history", "asset", code, "days", days, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return domain.HistoricalSeries{}, 0, false
	}
	return series, days, true
}

func (h *Handler) ratesResponse(state refresh.State) ratesResponse {
	rows := export.BuildRateRows(h.reg.Assets(), state)
	entries := make([]rateEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rateEntry{
			Code:   row.Code,
			Name:   row.Name,
			Glyph:  row.Glyph,
			Class:  string(row.Class),
			Rate:   row.Rate,
			Change: row.Change,
			Source: row.Source,
			Error:  row.Error,
		})
	}
	return ratesResponse{
		CycleID:       state.CycleID,
		Seq:           state.Seq,
		ProducedAt:    state.Snapshot.ProducedAt,
		CommittedAt:   state.CommittedAt,
		LocalCurrency: h.reg.LocalCurrency(),
		Resolved:      state.Snapshot.ResolvedCount(),
		Rates:         entries,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
