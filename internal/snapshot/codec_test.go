package snapshot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
)

func TestMarshalRoundTripThroughStore(t *testing.T) {
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	snap := domain.NewRatesSnapshot(map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("4.3123"),
		"BTC": decimal.NewFromInt(250000),
		"COP": decimal.Zero,
	}, at)

	store := NewMemoryStore()
	ctx := context.Background()
	if err := Save(ctx, store, LastRatesKey, snap); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, ok, err := Load(ctx, store, LastRatesKey)
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if !got.ProducedAt.Equal(at) {
		t.Errorf("ProducedAt = %v, want %v", got.ProducedAt, at)
	}
	if len(got.Rates) != 3 {
		t.Fatalf("len(Rates) = %d, want 3", len(got.Rates))
	}
	for code, want := range snap.Rates {
		if !got.Rate(code).Equal(want) {
			t.Errorf("%s = %s, want %s", code, got.Rate(code), want)
		}
	}
}

func TestMarshalFormat(t *testing.T) {
	snap := domain.NewRatesSnapshot(map[string]decimal.Decimal{"EUR": decimal.RequireFromString("4.31")},
		time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))

	data, err := Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"ratesByCode":{"EUR":"4.31"},"producedAt":"2024-05-10T00:00:00Z"}`
	if data != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"string rates", `{"ratesByCode":{"EUR":"4.31"},"producedAt":"2024-05-10T00:00:00Z"}`, false},
		{"numeric rates", `{"ratesByCode":{"EUR":4.31},"producedAt":"2024-05-10T00:00:00Z"}`, false},
		{"negative rate", `{"ratesByCode":{"EUR":"-1"},"producedAt":"2024-05-10T00:00:00Z"}`, true},
		{"missing rates", `{"producedAt":"2024-05-10T00:00:00Z"}`, true},
		{"garbage", `not json`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingKey(t *testing.T) {
	_, ok, err := Load(context.Background(), NewMemoryStore(), LastRatesKey)
	if err != nil || ok {
		t.Errorf("Load() = ok %v, err %v, want absent", ok, err)
	}
}

type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) (string, bool, error) { return "", false, s.err }
func (s failingStore) Set(context.Context, string, string) error         { return s.err }

func TestLoadStoreError(t *testing.T) {
	boom := errors.New("connection refused")
	_, _, err := Load(context.Background(), failingStore{err: boom}, LastRatesKey)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestLoadCorruptValue(t *testing.T) {
	store := NewMemoryStore()
	store.Set(context.Background(), LastRatesKey, `{"ratesByCode":{"EUR":"-4"}}`)

	_, ok, err := Load(context.Background(), store, LastRatesKey)
	if err == nil || ok {
		t.Errorf("Load() = ok %v, err %v, want error", ok, err)
	}
	if !strings.Contains(err.Error(), "negative") {
		t.Errorf("err = %v", err)
	}
}
