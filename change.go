package cryptofolio

import "github.com/shopspring/decimal"

// Change is a return over the last 24 hours and the last 7 days.
type Change struct {
	H24 Percent `json:"change_24h"`
	D7  Percent `json:"change_7d"`
}

// WeightedChange computes the portfolio return as the value-weighted average of
// its assets' returns.
//
// An asset missing from changes counts as a 0% change but keeps its weight.
func WeightedChange(v Valuation, changes map[string]Change) Change {
	if v.Total.IsZero() {
		return Change{}
	}
	var h24, d7 float64
	for symbol, asset := range v.Assets {
		weight := asset.Value.value.Div(v.Total.value).InexactFloat64()
		c := changes[symbol]
		h24 += weight * float64(c.H24)
		d7 += weight * float64(c.D7)
	}
	return Change{H24: Percent(h24), D7: Percent(d7)}
}

// MarketData is the market information of a symbol as reported alongside an analysis.
type MarketData struct {
	PriceChange24h Percent         `json:"price_change_24h"`
	PriceChange7d  Percent         `json:"price_change_7d"`
	MarketCap      decimal.Decimal `json:"market_cap"`
	Volume24h      decimal.Decimal `json:"volume_24h"`
}
