package cryptofolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an update carries a quantity that is not a
// non-negative number.
var ErrInvalidAmount = errors.New("invalid amount")

// Holdings maps an asset symbol to the quantity held.
type Holdings map[string]Quantity

// Symbols returns the held symbols in alphabetical order.
func (h Holdings) Symbols() []string {
	return slices.Sorted(maps.Keys(h))
}

// Apply returns a copy of h where every symbol in update has been set to its new quantity.
// h is not modified.
func (h Holdings) Apply(update Holdings) Holdings {
	res := make(Holdings, len(h)+len(update))
	maps.Copy(res, h)
	maps.Copy(res, update)
	return res
}

// ParseUpdate validates a raw update, as decoded from JSON, symbol by symbol.
//
// Values can be JSON numbers or numeric strings. Every entry is validated
// before anything is returned, so a single bad symbol rejects the whole update.
func ParseUpdate(raw map[string]any) (Holdings, error) {
	res := make(Holdings, len(raw))
	// iterate in a stable order so that the reported symbol is deterministic.
	for _, symbol := range slices.Sorted(maps.Keys(raw)) {
		if strings.TrimSpace(symbol) == "" {
			return nil, fmt.Errorf("%w: empty symbol", ErrInvalidAmount)
		}
		q, err := parseAmount(raw[symbol])
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidAmount, symbol, err)
		}
		if q.IsNegative() {
			return nil, fmt.Errorf("%w for %s: negative quantity %s", ErrInvalidAmount, symbol, q)
		}
		res[symbol] = q
	}
	return res, nil
}

// parseAmount converts any decoded JSON scalar into a Quantity.
func parseAmount(v any) (Quantity, error) {
	switch x := v.(type) {
	case float64:
		return Q(x), nil
	case json.Number:
		return ParseQuantity(x.String())
	case string:
		return ParseQuantity(strings.TrimSpace(x))
	case int:
		return Q(x), nil
	case int64:
		return Q(x), nil
	case decimal.Decimal:
		return Q(x), nil
	case nil:
		return Quantity{}, fmt.Errorf("missing value")
	case bool:
		return Quantity{}, fmt.Errorf("not a number: %s", strconv.FormatBool(x))
	default:
		return Quantity{}, fmt.Errorf("not a number: %T", v)
	}
}

// DecodeHoldings reads holdings from their persisted JSON form, a flat object of
// symbol to quantity. Empty input is an empty portfolio.
func DecodeHoldings(data []byte) (Holdings, error) {
	h := make(Holdings)
	if len(strings.TrimSpace(string(data))) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("format error in holdings: %w", err)
	}
	return h, nil
}

// EncodeHoldings writes holdings in their persisted JSON form.
func EncodeHoldings(h Holdings) ([]byte, error) {
	if h == nil {
		h = Holdings{}
	}
	return json.MarshalIndent(h, "", "    ")
}
