package registry

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/mtlprog/kursy/internal/domain"
)

// File is the versioned on-disk form of a registry.
type File struct {
	Version           string                   `yaml:"version"`
	LocalCurrency     string                   `yaml:"local_currency" env-default:"PLN"`
	ReferenceCurrency string                   `yaml:"reference_currency" env-default:"USD"`
	Assets            []domain.AssetDescriptor `yaml:"assets"`
	Endpoints         map[string]string        `yaml:"endpoints"`
	FiatTables        []string                 `yaml:"fiat_tables"`
	GoldProvider      string                   `yaml:"gold_provider"`
	FX                FXConfig                 `yaml:"fx"`
	History           HistoryEndpoints         `yaml:"history"`
}

// Load reads a registry from a YAML file. An empty path yields the built-in registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return New(DefaultFile())
	}

	var f File
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("reading registry file %s: %w", path, err)
	}

	r, err := New(f)
	if err != nil {
		return nil, fmt.Errorf("loading registry file %s: %w", path, err)
	}
	return r, nil
}
