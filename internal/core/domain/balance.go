package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Balance maps currency code to the net amount an account holds. It is
// always derived from records and never stored.
type Balance map[string]decimal.Decimal

// Codes returns the currency codes in lexical order.
func (b Balance) Codes() []string {
	codes := make([]string, 0, len(b))
	for code := range b {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// BalanceReport is the answer to a balance query. Total and Currency are set
// only when a target currency was requested; otherwise Balances is.
type BalanceReport struct {
	Account  string           `json:"account"`
	Currency string           `json:"currency,omitempty"`
	Total    *decimal.Decimal `json:"total,omitempty"`
	Balances Balance          `json:"balances,omitempty"`
}
