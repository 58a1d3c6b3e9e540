package cryptofolio

import (
	"github.com/shopspring/decimal"
)

// Target allocation, in percent of the total value, and the tolerance band around it.
const (
	TargetVolatile Percent = 70
	TargetStable   Percent = 30
	Tolerance      Percent = 2.5
)

// Target returns the target percent of a class.
func Target(class AssetClass) Percent {
	if class == Stable {
		return TargetStable
	}
	return TargetVolatile
}

// Action is the trade needed on an asset to reach its target.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
	// Hold is used when the target amount is exactly the current one.
	Hold Action = "hold"
)

// actionOf is the sign convention of an amount delta.
func actionOf(delta Quantity) Action {
	switch {
	case delta.IsPositive():
		return Buy
	case delta.IsNegative():
		return Sell
	default:
		return Hold
	}
}

// Suggestion is the move of a whole class to its target.
type Suggestion struct {
	Class      AssetClass `json:"class"`
	CurrentPct Percent    `json:"current_pct"`
	TargetPct  Percent    `json:"target_pct"`
	ValueDelta Money      `json:"value_delta"`
}

// Adjustment is the move of a single asset, preserving its weight inside its class.
type Adjustment struct {
	Symbol        string     `json:"symbol"`
	Class         AssetClass `json:"class"`
	Price         Money      `json:"price"`
	CurrentAmount Quantity   `json:"current_amount"`
	TargetAmount  Quantity   `json:"target_amount"`
	AmountDelta   Quantity   `json:"amount_delta"`
	CurrentValue  Money      `json:"current_value"`
	TargetValue   Money      `json:"target_value"`
	ValueDelta    Money      `json:"value_delta"`
	Action        Action     `json:"action"`
	// CurrentPct and TargetPct are relative to the whole portfolio.
	CurrentPct Percent `json:"current_pct"`
	TargetPct  Percent `json:"target_pct"`
}

// Plan is the rebalancing decision. Suggestions and Adjustments are empty when not Needed.
type Plan struct {
	Needed      bool         `json:"needed"`
	Suggestions []Suggestion `json:"suggestions"`
	Adjustments []Adjustment `json:"adjustments"`
}

// NeedsRebalance reports whether the volatile share is outside the tolerance band.
//
// Only the volatile side is checked: the stable share is always its complement.
func NeedsRebalance(volatile Percent) bool {
	diff := volatile - TargetVolatile
	if diff < 0 {
		diff = -diff
	}
	return diff > Tolerance
}

// Rebalance decides whether a is to be rebalanced and computes the plan to reach
// the target split.
//
// Inside a class every asset keeps its relative weight: the class as a whole is
// resized to its target value and each asset gets its share of it.
func Rebalance(a Allocation) Plan {
	p := Plan{Suggestions: []Suggestion{}, Adjustments: []Adjustment{}}
	if !NeedsRebalance(a.Classes[Volatile].Percent) {
		return p
	}
	p.Needed = true

	for _, class := range Classes {
		current := a.Classes[class]
		target := Target(class)
		targetValue := Money{value: a.Total.value.Mul(decimal.NewFromFloat(float64(target))).Div(hundred), cur: a.Total.cur}

		p.Suggestions = append(p.Suggestions, Suggestion{
			Class:      class,
			CurrentPct: current.Percent,
			TargetPct:  target,
			ValueDelta: targetValue.Sub(current.Value),
		})

		assets := a.ClassAssets(class)
		// the class weight is the sum of its assets' shares of the total.
		classPct := decimal.Zero
		for _, asset := range assets {
			classPct = classPct.Add(decimal.NewFromFloat(float64(asset.Percent)))
		}

		for _, asset := range assets {
			weight := decimal.Zero
			if classPct.IsPositive() {
				weight = decimal.NewFromFloat(float64(asset.Percent)).Div(classPct)
			}
			assetTarget := Money{value: targetValue.value.Mul(weight), cur: targetValue.cur}

			targetAmount := Q(0)
			if asset.Price.IsPositive() && weight.IsPositive() {
				targetAmount = assetTarget.DivPrice(asset.Price)
			}
			delta := targetAmount.Sub(asset.Amount)

			p.Adjustments = append(p.Adjustments, Adjustment{
				Symbol:        asset.Symbol,
				Class:         class,
				Price:         asset.Price,
				CurrentAmount: asset.Amount,
				TargetAmount:  targetAmount,
				AmountDelta:   delta,
				CurrentValue:  asset.Value,
				TargetValue:   assetTarget,
				ValueDelta:    asset.Price.Mul(delta),
				Action:        actionOf(delta),
				CurrentPct:    asset.Percent,
				TargetPct:     percentOf(assetTarget.value, a.Total.value),
			})
		}
	}
	return p
}
