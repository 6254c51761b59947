// Package money provides fixed-point decimal helpers shared by the order
// book and venue adapters. Prices and sizes are never represented as
// float64 anywhere past the wire-decode boundary.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal is re-exported so callers only need to import this package.
type Decimal = decimal.Decimal

// Zero is the additive identity, handy for default struct values.
var Zero = decimal.Zero

// ParseToken converts a wire token (a JSON string, or the literal text of a
// JSON number) into a Decimal. It never routes through float64: Okex sends
// prices/sizes as quoted strings, Deribit sends them as JSON numbers whose
// token text this package re-parses directly, so the conversion in both
// cases goes token-text -> Decimal, never token-text -> float64 -> Decimal.
func ParseToken(token string) (Decimal, error) {
	d, err := decimal.NewFromString(token)
	if err != nil {
		return Decimal{}, fmt.Errorf("money: parse %q: %w", token, err)
	}
	return d, nil
}

// IsZero reports whether d represents exactly zero size, the book's
// delete-on-zero threshold.
func IsZero(d Decimal) bool {
	return d.IsZero()
}

// GreaterThan reports a > b.
func GreaterThan(a, b Decimal) bool {
	return a.Cmp(b) > 0
}

// Min returns the smaller of a and b.
func Min(a, b Decimal) Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
