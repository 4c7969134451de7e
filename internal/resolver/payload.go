package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/kursy/internal/domain"
)

// nbpTable is one element of an NBP /exchangerates/tables/{A,B} response.
type nbpTable struct {
	Table         string `json:"table"`
	EffectiveDate string `json:"effectiveDate"`
	Rates         []struct {
		Currency string          `json:"currency"`
		Code     string          `json:"code"`
		Mid      decimal.Decimal `json:"mid"`
	} `json:"rates"`
}

// nbpRate is an NBP /exchangerates/rates/{table}/{code} response.
type nbpRate struct {
	Code  string `json:"code"`
	Rates []struct {
		EffectiveDate string          `json:"effectiveDate"`
		Mid           decimal.Decimal `json:"mid"`
	} `json:"rates"`
}

// nbpGold is one element of an NBP /cenyzlota response (price of 1 g in PLN).
type nbpGold struct {
	Date  string          `json:"data"`
	Price decimal.Decimal `json:"cena"`
}

// simplePrice is a CoinGecko /simple/price response: {"bitcoin":{"pln":123.4}}.
type simplePrice map[string]map[string]decimal.Decimal

func parseFiatTable(payload json.RawMessage) (map[string]decimal.Decimal, error) {
	var tables []nbpTable
	if err := json.Unmarshal(payload, &tables); err != nil {
		return nil, fmt.Errorf("%w: decoding fiat table: %v", domain.ErrPayload, err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: empty fiat table", domain.ErrPayload)
	}
	mids := make(map[string]decimal.Decimal, len(tables[0].Rates))
	for _, r := range tables[0].Rates {
		code := strings.ToUpper(r.Code)
		if _, seen := mids[code]; seen {
			continue
		}
		mids[code] = r.Mid
	}
	return mids, nil
}

func parseSingleRate(payload json.RawMessage) (decimal.Decimal, error) {
	var r nbpRate
	if err := json.Unmarshal(payload, &r); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decoding rate: %v", domain.ErrPayload, err)
	}
	if len(r.Rates) == 0 {
		return decimal.Zero, fmt.Errorf("%w: rate response has no rates", domain.ErrPayload)
	}
	return r.Rates[0].Mid, nil
}

func parseGold(payload json.RawMessage) (decimal.Decimal, error) {
	var prices []nbpGold
	if err := json.Unmarshal(payload, &prices); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decoding gold price: %v", domain.ErrPayload, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("%w: empty gold price list", domain.ErrPayload)
	}
	return prices[0].Price, nil
}

func parseSimplePrice(payload json.RawMessage, id, currency string) (decimal.Decimal, error) {
	var sp simplePrice
	if err := json.Unmarshal(payload, &sp); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decoding simple price: %v", domain.ErrPayload, err)
	}
	quotes, ok := sp[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: id %q missing", domain.ErrPayload, id)
	}
	price, ok := quotes[strings.ToLower(currency)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s has no %s quote", domain.ErrPayload, id, currency)
	}
	return price, nil
}

// checkRate rejects negative values; zero passes through as "unresolved".
func checkRate(d decimal.Decimal, what string) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %s %s", domain.ErrPayload, what, d)
	}
	return d, nil
}
