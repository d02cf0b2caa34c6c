package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3,4}$`)

// Currency is a catalog entry carrying the current USD quote.
type Currency struct {
	Code      string          `json:"code"`
	USDPrice  decimal.Decimal `json:"usd_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ValidCurrencyCode reports whether code is 3 to 4 uppercase ASCII letters.
func ValidCurrencyCode(code string) bool {
	return currencyCodeRe.MatchString(code)
}

// NormalizeCurrencyCode trims and upper-cases a client supplied code.
func NormalizeCurrencyCode(code string) string {
	return upper(code)
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
