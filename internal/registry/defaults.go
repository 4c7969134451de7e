package registry

import "github.com/mtlprog/kursy/internal/domain"

const (
	// TroyOunceGrams converts a per-ounce quote into a per-gram price.
	TroyOunceGrams = 31.1035
	// LegacyETHBTCRatio approximates ETH from BTC when the ETH feed is down.
	LegacyETHBTCRatio = 0.06
	// DefaultUSDRate is the last-resort USD→PLN multiplier.
	DefaultUSDRate = 4.0
)

const (
	EndpointCoinGeckoBTC    = "coingecko_btc"
	EndpointCoinGeckoETH    = "coingecko_eth"
	EndpointCoinGeckoNVDA   = "coingecko_nvda"
	EndpointCoinGeckoSilver = "coingecko_silver"
	EndpointNBPGold         = "nbp_gold"
	EndpointNBPTableA       = "nbp_table_a"
	EndpointNBPTableB       = "nbp_table_b"
	EndpointNBPUSD          = "nbp_usd"
)

// DefaultFile returns the built-in registry definition.
func DefaultFile() File {
	return File{
		Version:           "2024.1",
		LocalCurrency:     "PLN",
		ReferenceCurrency: "USD",
		Endpoints: map[string]string{
			EndpointCoinGeckoBTC:    "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=pln",
			EndpointCoinGeckoETH:    "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=pln",
			EndpointCoinGeckoNVDA:   "https://api.coingecko.com/api/v3/simple/price?ids=nvidia-tokenized-stock-defichain&vs_currencies=usd",
			EndpointNBPGold:         "https://api.nbp.pl/api/cenyzlota/?format=json",
			EndpointCoinGeckoSilver: "https://api.coingecko.com/api/v3/simple/price?ids=kinesis-silver&vs_currencies=usd",
			EndpointNBPTableA:       "https://api.nbp.pl/api/exchangerates/tables/A/?format=json",
			EndpointNBPTableB:       "https://api.nbp.pl/api/exchangerates/tables/B/?format=json",
			EndpointNBPUSD:          "https://api.nbp.pl/api/exchangerates/rates/a/usd/?format=json",
		},
		FiatTables:   []string{EndpointNBPTableA, EndpointNBPTableB},
		GoldProvider: EndpointNBPGold,
		FX: FXConfig{
			Sources: []FXSource{
				{Kind: FXSourceRate, Endpoint: EndpointNBPUSD},
				{Kind: FXSourceTable, Endpoint: EndpointNBPTableA},
			},
			DefaultRate: DefaultUSDRate,
		},
		History: HistoryEndpoints{
			CoinGecko: "https://api.coingecko.com/api/v3/coins",
			NBPRates:  "https://api.nbp.pl/api/exchangerates/rates",
			NBPGold:   "https://api.nbp.pl/api/cenyzlota",

			// Letters of nbp_table_a and nbp_table_b.
			FiatTables: []string{"A", "B"},
		},
		Assets: []domain.AssetDescriptor{
			{Code: "XAU", DisplayName: "Złoto (1g)", Glyph: "🥇", Class: domain.AssetClassMetal, ProviderID: EndpointNBPGold},
			{
				Code: "XAG", DisplayName: "Srebro (1g)", Glyph: "🥈", Class: domain.AssetClassMetal,
				ProviderID: EndpointCoinGeckoSilver, ExternalID: "kinesis-silver", QuoteCurrency: "usd",
				UnitDivisor: TroyOunceGrams,
			},
			fiat("EUR", "Euro", "🇪🇺"),
			fiat("USD", "Dolar amerykański", "🇺🇸"),
			fiat("COP", "Peso kolumbijskie", "🇨🇴"),
			fiat("GBP", "Funt brytyjski", "🇬🇧"),
			fiat("CHF", "Frank szwajcarski", "🇨🇭"),
			fiat("JPY", "Jen japoński", "🇯🇵"),
			fiat("AUD", "Dolar australijski", "🇦🇺"),
			fiat("CNY", "Juan chiński", "🇨🇳"),
			fiat("NOK", "Korona norweska", "🇳🇴"),
			fiat("SEK", "Korona szwedzka", "🇸🇪"),
			{
				Code: "BTC", DisplayName: "Bitcoin", Glyph: "₿", Class: domain.AssetClassCrypto,
				ProviderID: EndpointCoinGeckoBTC, ExternalID: "bitcoin", QuoteCurrency: "pln",
			},
			{
				Code: "ETH", DisplayName: "Ethereum", Glyph: "⟠", Class: domain.AssetClassCrypto,
				ProviderID: EndpointCoinGeckoETH, ExternalID: "ethereum", QuoteCurrency: "pln",
				FallbackDependency: "BTC", FallbackRatio: LegacyETHBTCRatio,
			},
			{
				Code: "NVDA", DisplayName: "Nvidia Corp", Glyph: "🎮", Class: domain.AssetClassStock,
				ProviderID: EndpointCoinGeckoNVDA, ExternalID: "nvidia-tokenized-stock-defichain", QuoteCurrency: "usd",
			},
		},
	}
}

func fiat(code, name, glyph string) domain.AssetDescriptor {
	return domain.AssetDescriptor{
		Code:        code,
		DisplayName: name,
		Glyph:       glyph,
		Class:       domain.AssetClassFiat,
		ProviderID:  domain.FiatTableProvider,
	}
}

// Default returns the built-in registry. It panics if the built-in table is invalid,
// which the package tests rule out.
func Default() *Registry {
	r, err := New(DefaultFile())
	if err != nil {
		panic("registry.Default: " + err.Error())
	}
	return r
}
