package cryptofolio

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// ErrPricesUnavailable is returned when the price provider cannot deliver quotes.
// Valuations never proceed with partial or stale prices in that case.
var ErrPricesUnavailable = errors.New("prices unavailable")

const (
	// SyntheticSymbol is the internal USD balance. It is not traded and is priced
	// from SyntheticProxy.
	SyntheticSymbol = "USDB"
	// SyntheticProxy is the USD pegged stablecoin whose price is copied to SyntheticSymbol.
	SyntheticProxy = "USDT"
)

// Quote is the market data of a single symbol, in the ReportingCurrency.
type Quote struct {
	// Price is invalid when the provider returned a null price.
	Price            decimal.NullDecimal `json:"price"`
	PercentChange24h Percent             `json:"percent_change_24h"`
	PercentChange7d  Percent             `json:"percent_change_7d"`
	MarketCap        decimal.Decimal     `json:"market_cap"`
	Volume24h        decimal.Decimal     `json:"volume_24h"`
}

// Quotes maps a symbol to its quote.
type Quotes map[string]Quote

// Changes extracts the 24h and 7d changes of every quote.
func (q Quotes) Changes() map[string]Change {
	res := make(map[string]Change, len(q))
	for symbol, quote := range q {
		res[symbol] = Change{H24: quote.PercentChange24h, D7: quote.PercentChange7d}
	}
	return res
}

// QuoteProvider fetches the latest quotes for a set of symbols.
//
// Symbols unknown to the provider are simply absent from the result. Any failure
// to reach the provider, or a malformed answer, is an error.
type QuoteProvider interface {
	Quotes(ctx context.Context, symbols []string) (Quotes, error)
}

// FetchQuotes gets the quotes for symbols from p, deriving the SyntheticSymbol
// from SyntheticProxy when it is requested.
//
// Errors wrap ErrPricesUnavailable.
func FetchQuotes(ctx context.Context, p QuoteProvider, symbols []string) (Quotes, error) {
	traded := slices.DeleteFunc(slices.Clone(symbols), func(s string) bool { return s == SyntheticSymbol })
	res := make(Quotes, len(symbols))

	if len(traded) < len(symbols) {
		// the proxy is queried on its own, exactly as any other provider call.
		proxy, err := p.Quotes(ctx, []string{SyntheticProxy})
		if err != nil {
			return nil, fmt.Errorf("%w: cannot price %s from %s: %w", ErrPricesUnavailable, SyntheticSymbol, SyntheticProxy, err)
		}
		q, ok := proxy[SyntheticProxy]
		if !ok || !q.Price.Valid {
			return nil, fmt.Errorf("%w: no %s price to derive %s", ErrPricesUnavailable, SyntheticProxy, SyntheticSymbol)
		}
		res[SyntheticSymbol] = Quote{Price: q.Price}
	}

	if len(traded) == 0 {
		return res, nil
	}
	quotes, err := p.Quotes(ctx, traded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPricesUnavailable, err)
	}
	for symbol, q := range quotes {
		res[symbol] = q
	}
	return res, nil
}
