package cryptofolio

import "time"

// Analysis bundles everything computed about a portfolio at a given instant.
type Analysis struct {
	Valuation  Valuation             `json:"valuation"`
	Allocation Allocation            `json:"allocation"`
	Plan       Plan                  `json:"rebalance"`
	Change     Change                `json:"change"`
	MarketData map[string]MarketData `json:"market_data"`
}

// Analyze values h at quotes q, computes its allocation according to c, the
// rebalancing plan and the weighted return.
//
// It is a pure function of its inputs.
func Analyze(h Holdings, q Quotes, c Classification, at time.Time) *Analysis {
	v := Value(h, q)
	a := Allocate(v, c, at)
	md := make(map[string]MarketData, len(v.Assets))
	for symbol := range v.Assets {
		quote := q[symbol]
		md[symbol] = MarketData{
			PriceChange24h: quote.PercentChange24h,
			PriceChange7d:  quote.PercentChange7d,
			MarketCap:      quote.MarketCap,
			Volume24h:      quote.Volume24h,
		}
	}
	return &Analysis{
		Valuation:  v,
		Allocation: a,
		Plan:       Rebalance(a),
		Change:     WeightedChange(v, q.Changes()),
		MarketData: md,
	}
}
