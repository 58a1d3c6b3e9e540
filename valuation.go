package cryptofolio

import (
	"maps"
	"slices"
)

// PricedAsset is a holding valued at its current price.
type PricedAsset struct {
	Symbol           string   `json:"symbol"`
	Amount           Quantity `json:"amount"`
	Price            Money    `json:"price"`
	Value            Money    `json:"value"`
	PercentChange24h Percent  `json:"percent_change_24h"`
	PercentChange7d  Percent  `json:"percent_change_7d"`
}

// Valuation is the value of the holdings at current prices.
//
// Total is always the sum of the Assets values.
type Valuation struct {
	Assets map[string]PricedAsset `json:"assets"`
	Total  Money                  `json:"total"`
	// Skipped lists held symbols that could not be priced, they are part of
	// neither Assets nor Total.
	Skipped []string `json:"skipped,omitempty"`
}

// Symbols returns the valued symbols in alphabetical order.
func (v Valuation) Symbols() []string {
	return slices.Sorted(maps.Keys(v.Assets))
}

// Value computes the valuation of h at quotes q.
//
// Symbols without a quote, or with a null price, are skipped: a single bad quote
// degrades the valuation instead of failing it.
func Value(h Holdings, q Quotes) Valuation {
	v := Valuation{
		Assets: make(map[string]PricedAsset, len(h)),
		Total:  M(0, ReportingCurrency),
	}
	for _, symbol := range h.Symbols() {
		amount := h[symbol]
		quote, ok := q[symbol]
		if !ok || !quote.Price.Valid {
			v.Skipped = append(v.Skipped, symbol)
			continue
		}
		price := M(quote.Price.Decimal, ReportingCurrency).exact()
		value := price.Mul(amount)
		v.Assets[symbol] = PricedAsset{
			Symbol:           symbol,
			Amount:           amount,
			Price:            price,
			Value:            value,
			PercentChange24h: quote.PercentChange24h,
			PercentChange7d:  quote.PercentChange7d,
		}
		v.Total = v.Total.Add(value)
	}
	return v
}
