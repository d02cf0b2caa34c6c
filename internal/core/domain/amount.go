package domain

import "github.com/shopspring/decimal"

// Bounds on the decimals the ledger accepts for amounts and prices.
const (
	MaxIntegerDigits  = 30
	MaxFractionDigits = 18
)

// WithinBounds reports whether d has at most MaxIntegerDigits digits before
// the decimal point and at most MaxFractionDigits after it, as written.
// It only inspects the exponent and the coefficient, so it is cheap even for
// values such as 1e2000000000.
func WithinBounds(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -MaxFractionDigits {
		return false
	}
	if exp > MaxIntegerDigits {
		return false
	}
	return int64(d.NumDigits())+exp <= MaxIntegerDigits
}
