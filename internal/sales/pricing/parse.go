package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(finite(v)).Round(2).InexactFloat64()
}

// ParseAmount reads user-entered money. Grouping commas, spaces and a
// leading currency symbol are ignored; anything unparsable is 0.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$₱ ")
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// ParseQuantity reads a whole quantity; fractions truncate, invalid or
// negative input is 0.
func ParseQuantity(s string) int {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return 0
	}
	return int(d.IntPart())
}
