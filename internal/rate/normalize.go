package rate

import (
	"fmt"
	"fxconverter/internal/domain"
	"math"
	"strconv"
	"strings"
)

// Normalize re-expresses rates quoted against sourceBase as rates quoted
// against targetBase by dividing through targetBase's own quote.
// Codes with a non-positive or non-finite quote are dropped.
// The returned table never aliases the input.
func Normalize(targetBase, sourceBase string, rates map[string]float64) (domain.RateTable, error) {
	if targetBase == sourceBase {
		normalized := make(domain.RateTable, len(rates))
		for code, r := range rates {
			if usableRate(r) {
				normalized[code] = r
			}
		}
		return normalized, nil
	}

	pivot, ok := rates[targetBase]
	if !ok || !usableRate(pivot) {
		return nil, fmt.Errorf("%w: %s is not quoted against %s", domain.ErrNotConvertible, targetBase, sourceBase)
	}

	normalized := make(domain.RateTable, len(rates))
	for code, r := range rates {
		if !usableRate(r) {
			continue
		}
		if n := r / pivot; usableRate(n) {
			normalized[code] = n
		}
	}
	// exact, self-division may drift
	normalized[targetBase] = 1.0
	return normalized, nil
}

// Convert converts amount from one currency to another through the common
// base of table. No rounding is applied.
func Convert(amount float64, from, to string, table domain.RateTable) (float64, error) {
	fromRate, ok := table[from]
	if !ok || !usableRate(fromRate) {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotConvertible, from)
	}
	toRate, ok := table[to]
	if !ok || !usableRate(toRate) {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotConvertible, to)
	}
	if from == to {
		return amount, nil
	}

	result := amount / fromRate * toRate
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: %s->%s overflows", domain.ErrNotConvertible, from, to)
	}
	return result, nil
}

// ParseAmount accepts keypad input such as " 12,5 ".
func ParseAmount(raw string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty", domain.ErrInvalidAmount)
	}
	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, raw)
	}
	return amount, nil
}

func usableRate(r float64) bool {
	return r > 0 && !math.IsInf(r, 0)
}
