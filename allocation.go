package cryptofolio

import (
	"cmp"
	"slices"
	"time"
)

// Zone is the fixed UTC-3 offset every timestamp is displayed in.
var Zone = time.FixedZone("UTC-3", -3*60*60)

// AssetClass partitions assets for the target allocation.
type AssetClass string

const (
	Volatile AssetClass = "volatile"
	Stable   AssetClass = "stable"
)

// Classes lists the asset classes in reporting order.
var Classes = []AssetClass{Volatile, Stable}

// Classification decides the class of a symbol: members of the stable set are
// Stable, everything else is Volatile.
type Classification struct {
	stable map[string]bool
}

// NewClassification creates a classification with the given stable symbols.
func NewClassification(stable ...string) Classification {
	c := Classification{stable: make(map[string]bool, len(stable))}
	for _, s := range stable {
		c.stable[s] = true
	}
	return c
}

// DefaultClassification is the stablecoin set known to the system.
var DefaultClassification = NewClassification("USDT", "MUSD", SyntheticSymbol)

// Of returns the class of symbol.
func (c Classification) Of(symbol string) AssetClass {
	if c.stable[symbol] {
		return Stable
	}
	return Volatile
}

// StableSymbols returns the stable set in alphabetical order.
func (c Classification) StableSymbols() []string {
	res := make([]string, 0, len(c.stable))
	for s := range c.stable {
		res = append(res, s)
	}
	slices.Sort(res)
	return res
}

// ClassAllocation is the weight of a class in the portfolio.
type ClassAllocation struct {
	Value   Money   `json:"value"`
	Percent Percent `json:"percentage"`
}

// AssetAllocation is the weight of a single asset in the whole portfolio.
type AssetAllocation struct {
	PricedAsset
	Class   AssetClass `json:"class"`
	Percent Percent    `json:"allocation_total_pct"`
}

// Allocation is the current split of the portfolio across classes and assets.
type Allocation struct {
	Total     Money                          `json:"total_value"`
	Classes   map[AssetClass]ClassAllocation `json:"classes"`
	Assets    map[string]AssetAllocation     `json:"assets"`
	Timestamp time.Time                      `json:"timestamp"`
}

// Allocate computes the allocation of v according to c, timestamped at 'at'.
//
// All percentages are 0 when the total value is 0.
func Allocate(v Valuation, c Classification, at time.Time) Allocation {
	a := Allocation{
		Total:     v.Total,
		Classes:   make(map[AssetClass]ClassAllocation, len(Classes)),
		Assets:    make(map[string]AssetAllocation, len(v.Assets)),
		Timestamp: at.In(Zone),
	}
	for _, class := range Classes {
		a.Classes[class] = ClassAllocation{Value: M(0, ReportingCurrency)}
	}
	for symbol, asset := range v.Assets {
		class := c.Of(symbol)
		a.Assets[symbol] = AssetAllocation{
			PricedAsset: asset,
			Class:       class,
			Percent:     percentOf(asset.Value.value, v.Total.value),
		}
		ca := a.Classes[class]
		ca.Value = ca.Value.Add(asset.Value)
		a.Classes[class] = ca
	}
	for class, ca := range a.Classes {
		ca.Percent = percentOf(ca.Value.value, v.Total.value)
		a.Classes[class] = ca
	}
	return a
}

// ClassAssets returns the assets of a class, by value descending then symbol.
func (a Allocation) ClassAssets(class AssetClass) []AssetAllocation {
	var res []AssetAllocation
	for _, asset := range a.Assets {
		if asset.Class == class {
			res = append(res, asset)
		}
	}
	slices.SortFunc(res, func(x, y AssetAllocation) int {
		if c := y.Value.value.Cmp(x.Value.value); c != 0 {
			return c
		}
		return cmp.Compare(x.Symbol, y.Symbol)
	})
	return res
}
