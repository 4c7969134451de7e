package domain

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"positive", 4.0123, "4.0123"},
		{"zero", 0, "0"},
		{"negative clamps", -1.5, "0"},
		{"NaN", math.NaN(), "0"},
		{"+Inf", math.Inf(1), "0"},
		{"-Inf", math.Inf(-1), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeFloat(tt.input)
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("SafeFloat(%v) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name     string
		cur, prv string
		want     string
		wantOK   bool
	}{
		{"increase", "110", "100", "10", true},
		{"decrease", "4.5", "5", "-10", true},
		{"unchanged", "3", "3", "0", true},
		{"previous unresolved", "3", "0", "0", false},
		{"current unresolved", "0", "3", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PercentChange(decimal.RequireFromString(tt.cur), decimal.RequireFromString(tt.prv))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("PercentChange(%s, %s) = %s, want %s", tt.cur, tt.prv, got, want)
			}
		})
	}
}

func TestDeltas(t *testing.T) {
	now := time.Now()
	prev := NewRatesSnapshot(map[string]decimal.Decimal{
		"EUR": decimal.NewFromInt(4),
		"USD": decimal.Zero,
	}, now.Add(-5*time.Minute))
	cur := NewRatesSnapshot(map[string]decimal.Decimal{
		"EUR": decimal.NewFromFloat(4.4),
		"USD": decimal.NewFromFloat(3.9),
		"BTC": decimal.NewFromInt(300000),
	}, now)

	deltas := Deltas(cur, &prev)
	if len(deltas) != 1 {
		t.Fatalf("len(deltas) = %d, want 1 (only EUR has both sides)", len(deltas))
	}
	if !deltas["EUR"].Equal(decimal.NewFromInt(10)) {
		t.Errorf("EUR delta = %s, want 10", deltas["EUR"])
	}

	if got := Deltas(cur, nil); len(got) != 0 {
		t.Errorf("Deltas without previous = %v, want empty", got)
	}
}

func TestNewRatesSnapshotCopiesAndClamps(t *testing.T) {
	rates := map[string]decimal.Decimal{
		"EUR": decimal.NewFromInt(4),
		"BAD": decimal.NewFromInt(-1),
	}
	s := NewRatesSnapshot(rates, time.Now())
	rates["EUR"] = decimal.NewFromInt(100)

	if !s.Rate("EUR").Equal(decimal.NewFromInt(4)) {
		t.Errorf("snapshot shares map with caller: EUR = %s", s.Rate("EUR"))
	}
	if !s.Rate("BAD").IsZero() {
		t.Errorf("negative rate not clamped: %s", s.Rate("BAD"))
	}
	if s.ResolvedCount() != 1 {
		t.Errorf("ResolvedCount = %d, want 1", s.ResolvedCount())
	}
}
