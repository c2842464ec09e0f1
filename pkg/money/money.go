// Package money holds decimal helpers shared by pricing, orders and the API.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fraction digits used when formatting prices.
const Places = 2

// Formatter renders a decimal price for display.
type Formatter func(decimal.Decimal) string

// FormatPrice renders the price with two fixed decimals.
func FormatPrice(price decimal.Decimal) string {
	return price.StringFixed(Places)
}

// PrefixFormatter returns a Formatter that prepends prefix to FormatPrice.
// An empty prefix yields FormatPrice itself.
func PrefixFormatter(prefix string) Formatter {
	if strings.TrimSpace(prefix) == "" {
		return FormatPrice
	}
	return func(price decimal.Decimal) string {
		if price.IsNegative() {
			return "-" + prefix + FormatPrice(price.Neg())
		}
		return prefix + FormatPrice(price)
	}
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Percent returns pct percent of amount, e.g. Percent(200, 10) == 20.
func Percent(amount decimal.Decimal, pct int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100))
}

// Parse reads a decimal from user input; blank input is zero.
func Parse(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(trimmed)
}
