package renderer

import (
	"fmt"
	"strconv"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/history"
)

// Report is the view model of an analysis. Amounts have 8 decimals, money 2,
// allocations 1 and changes 2.
type Report struct {
	Timestamp string
	Currency  string

	Total         string
	VolatileValue string
	VolatilePct   string
	StableValue   string
	StablePct     string
	Change24h     string
	Change7d      string
	Skipped       []string

	VolatileTarget string
	StableTarget   string
	Tolerance      string

	// Volatile and Stable are sorted by value, highest first.
	Volatile []ReportAsset
	Stable   []ReportAsset

	Needed      bool
	Suggestions []ReportSuggestion
	Adjustments []ReportAdjustment
}

// ReportAsset is one held asset. Relative is its share of its own class.
type ReportAsset struct {
	Symbol     string
	Amount     string
	Value      string
	Allocation string
	Relative   string
	Change24h  string
	Change7d   string
}

type ReportSuggestion struct {
	Class   string
	Current string
	Target  string
	Delta   string
}

type ReportAdjustment struct {
	Symbol        string
	Action        string
	CurrentAmount string
	TargetAmount  string
	AmountDelta   string
	Price         string
	ValueDelta    string
}

func pct1(p cryptofolio.Percent) string { return fmt.Sprintf("%.1f", float64(p)) }
func pct2(p cryptofolio.Percent) string { return fmt.Sprintf("%.2f", float64(p)) }

func number(p cryptofolio.Percent) string {
	return strconv.FormatFloat(float64(p), 'f', -1, 64)
}

// signed prefixes positive fixed point numbers with '+'.
func signed(fixed string, positive bool) string {
	if positive {
		return "+" + fixed
	}
	return fixed
}

// NewReport creates the view model of a.
func NewReport(a *cryptofolio.Analysis) *Report {
	alloc := a.Allocation
	volatile := alloc.Classes[cryptofolio.Volatile]
	stable := alloc.Classes[cryptofolio.Stable]

	r := &Report{
		Timestamp:      alloc.Timestamp.Format("2006-01-02 15:04:05 -07:00"),
		Currency:       cryptofolio.ReportingCurrency,
		Total:          alloc.Total.Fixed(),
		VolatileValue:  volatile.Value.Fixed(),
		VolatilePct:    pct1(volatile.Percent),
		StableValue:    stable.Value.Fixed(),
		StablePct:      pct1(stable.Percent),
		Change24h:      pct2(a.Change.H24),
		Change7d:       pct2(a.Change.D7),
		Skipped:        a.Valuation.Skipped,
		VolatileTarget: number(cryptofolio.TargetVolatile),
		StableTarget:   number(cryptofolio.TargetStable),
		Tolerance:      number(cryptofolio.Tolerance),
		Volatile:       newReportAssets(alloc, cryptofolio.Volatile),
		Stable:         newReportAssets(alloc, cryptofolio.Stable),
		Needed:         a.Plan.Needed,
	}

	for _, s := range a.Plan.Suggestions {
		r.Suggestions = append(r.Suggestions, ReportSuggestion{
			Class:   string(s.Class),
			Current: pct1(s.CurrentPct),
			Target:  pct1(s.TargetPct),
			Delta:   signed(s.ValueDelta.Fixed(), s.ValueDelta.IsPositive()),
		})
	}
	for _, adj := range a.Plan.Adjustments {
		r.Adjustments = append(r.Adjustments, ReportAdjustment{
			Symbol:        adj.Symbol,
			Action:        string(adj.Action),
			CurrentAmount: adj.CurrentAmount.Fixed(),
			TargetAmount:  adj.TargetAmount.Fixed(),
			AmountDelta:   signed(adj.AmountDelta.Fixed(), adj.AmountDelta.IsPositive()),
			Price:         adj.Price.Fixed(),
			ValueDelta:    signed(adj.ValueDelta.Fixed(), adj.ValueDelta.IsPositive()),
		})
	}
	return r
}

func newReportAssets(alloc cryptofolio.Allocation, class cryptofolio.AssetClass) []ReportAsset {
	classValue := alloc.Classes[class].Value
	assets := alloc.ClassAssets(class)
	res := make([]ReportAsset, 0, len(assets))
	for _, asset := range assets {
		relative := 0.0
		if classValue.IsPositive() {
			relative = asset.Value.Decimal().Div(classValue.Decimal()).InexactFloat64() * 100
		}
		res = append(res, ReportAsset{
			Symbol:     asset.Symbol,
			Amount:     asset.Amount.Fixed(),
			Value:      asset.Value.Fixed(),
			Allocation: pct1(asset.Percent),
			Relative:   pct1(cryptofolio.Percent(relative)),
			Change24h:  pct2(asset.PercentChange24h),
			Change7d:   pct2(asset.PercentChange7d),
		})
	}
	return res
}

// Portfolio is the view model of a valuation, assets sorted by symbol.
type Portfolio struct {
	Total   string
	Assets  []PortfolioAsset
	Skipped []string
}

type PortfolioAsset struct {
	Symbol    string
	Amount    string
	Price     string
	Value     string
	Change24h string
	Change7d  string
}

// NewPortfolio creates the view model of v.
func NewPortfolio(v cryptofolio.Valuation) *Portfolio {
	p := &Portfolio{Total: v.Total.String(), Skipped: v.Skipped}
	for _, symbol := range v.Symbols() {
		asset := v.Assets[symbol]
		p.Assets = append(p.Assets, PortfolioAsset{
			Symbol:    symbol,
			Amount:    asset.Amount.Fixed(),
			Price:     "R$ " + asset.Price.Fixed(),
			Value:     asset.Value.String(),
			Change24h: pct2(asset.PercentChange24h),
			Change7d:  pct2(asset.PercentChange7d),
		})
	}
	return p
}

// History is the view model of a valuation series.
type History struct {
	Low, High string
	Entries   []HistoryEntry
}

type HistoryEntry struct {
	Timestamp string
	Value     string
}

// NewHistory creates the view model of entries, keeping their order.
func NewHistory(entries []history.Entry) *History {
	low, high := history.Bounds(entries)
	h := &History{
		Low:  fmt.Sprintf("%.2f", low),
		High: fmt.Sprintf("%.2f", high),
	}
	for _, e := range entries {
		h.Entries = append(h.Entries, HistoryEntry{
			Timestamp: e.Timestamp.In(cryptofolio.Zone).Format("2006-01-02 15:04"),
			Value:     fmt.Sprintf("%.2f", e.Value),
		})
	}
	return h
}
