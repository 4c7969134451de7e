package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAssetClassValid(t *testing.T) {
	for _, c := range []AssetClass{AssetClassFiat, AssetClassCrypto, AssetClassMetal, AssetClassStock} {
		if !c.Valid() {
			t.Errorf("%q.Valid() = false", c)
		}
	}
	if AssetClass("bond").Valid() {
		t.Error(`"bond".Valid() = true`)
	}
}

func TestHistorySourceOrDefault(t *testing.T) {
	tests := []struct {
		name  string
		asset AssetDescriptor
		want  HistorySource
	}{
		{"fiat", AssetDescriptor{Code: "EUR", Class: AssetClassFiat, ProviderID: FiatTableProvider}, HistoryFiatTable},
		{"gold", AssetDescriptor{Code: "XAU", Class: AssetClassMetal, ProviderID: "nbp_gold"}, HistoryGoldTable},
		{"silver proxy", AssetDescriptor{Code: "XAG", Class: AssetClassMetal, ProviderID: "coingecko_silver"}, HistoryMarket},
		{"crypto", AssetDescriptor{Code: "BTC", Class: AssetClassCrypto, ProviderID: "coingecko_btc"}, HistoryMarket},
		{"explicit", AssetDescriptor{Code: "X", Class: AssetClassFiat, History: HistoryMarket}, HistoryMarket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.asset.HistorySourceOrDefault("nbp_gold"); got != tt.want {
				t.Errorf("HistorySourceOrDefault() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuotedIn(t *testing.T) {
	btc := AssetDescriptor{Code: "BTC", QuoteCurrency: "pln"}
	if !btc.QuotedIn("PLN") {
		t.Error("BTC quoted in pln should match PLN")
	}
	nvda := AssetDescriptor{Code: "NVDA", QuoteCurrency: "usd"}
	if nvda.QuotedIn("PLN") {
		t.Error("NVDA quoted in usd should not match PLN")
	}
	if !(AssetDescriptor{Code: "XAU"}).QuotedIn("PLN") {
		t.Error("empty quote currency should mean local")
	}
}

func TestHasFallback(t *testing.T) {
	if !(AssetDescriptor{FallbackDependency: "BTC", FallbackRatio: 0.06}).HasFallback() {
		t.Error("expected fallback")
	}
	if (AssetDescriptor{FallbackDependency: "BTC"}).HasFallback() {
		t.Error("zero ratio should disable fallback")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{fmt.Errorf("fetching x: %w", ErrProtocol), KindProtocol},
		{fmt.Errorf("parsing x: %w", ErrPayload), KindPayload},
		{fmt.Errorf("BTC: %w", ErrUnresolvable), KindUnresolvable},
		{fmt.Errorf("dial: %w", ErrTransport), KindTransport},
		{errors.New("anything else"), KindTransport},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
