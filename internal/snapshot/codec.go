package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mtlprog/kursy/internal/domain"
)

// Marshal serializes a snapshot as {"ratesByCode":{...},"producedAt":"..."} with rates
// encoded as decimal strings.
func Marshal(s domain.RatesSnapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}
	return string(data), nil
}

// Unmarshal parses a serialized snapshot. Negative rates are rejected.
func Unmarshal(data string) (domain.RatesSnapshot, error) {
	var s domain.RatesSnapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return domain.RatesSnapshot{}, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	for code, r := range s.Rates {
		if r.IsNegative() {
			return domain.RatesSnapshot{}, fmt.Errorf("unmarshaling snapshot: negative rate %s for %s", r, code)
		}
	}
	if s.Rates == nil {
		return domain.RatesSnapshot{}, fmt.Errorf("unmarshaling snapshot: missing ratesByCode")
	}
	return s, nil
}

// Load reads and parses the snapshot stored under key. ok is false when nothing is stored.
func Load(ctx context.Context, store Store, key string) (snap domain.RatesSnapshot, ok bool, err error) {
	data, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return domain.RatesSnapshot{}, false, err
	}
	snap, err = Unmarshal(data)
	if err != nil {
		return domain.RatesSnapshot{}, false, err
	}
	return snap, true, nil
}

// Save serializes snap and stores it under key.
func Save(ctx context.Context, store Store, key string, snap domain.RatesSnapshot) error {
	data, err := Marshal(snap)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, data)
}
