package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PipValue returns the conventional pip unit for the symbol: 0.01 for
// JPY-quoted pairs, 0.0001 for everything else. The symbol string is
// otherwise opaque to the core.
func PipValue(symbol string) float64 {
	if strings.Contains(strings.ToUpper(symbol), "JPY") {
		return 0.01
	}
	return 0.0001
}

// FormatPrice renders a price with the canonical five fractional
// digits used in reason strings and at the JSON boundary.
func FormatPrice(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(5)
}
