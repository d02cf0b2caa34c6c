// Package ledger holds the consistency rules of the multi-currency ledger:
// currency conversion, balance projection, append planning and the
// retraction guard. Everything here works on explicit snapshots and performs
// no I/O; callers provide the unit of work.
package ledger

import (
	"currency-ledger/internal/core/domain"
	"currency-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// PriceBook maps currency code to its current USD price.
type PriceBook map[string]decimal.Decimal

// NewPriceBook indexes a currency catalog listing.
func NewPriceBook(currencies []domain.Currency) PriceBook {
	p := make(PriceBook, len(currencies))
	for _, c := range currencies {
		p[c.Code] = c.USDPrice
	}
	return p
}

// Has reports whether code is in the catalog.
func (p PriceBook) Has(code string) bool {
	_, ok := p[code]
	return ok
}

// Convert pivots amount through USD: amount * price(from) / price(to).
// Converting a currency to itself returns amount unchanged.
func (p PriceBook) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	pf, ok := p[from]
	if !ok {
		return decimal.Zero, apperror.ErrUnknownCurrency(from)
	}
	pt, ok := p[to]
	if !ok {
		return decimal.Zero, apperror.ErrUnknownCurrency(to)
	}
	if from == to {
		return amount, nil
	}
	return amount.Mul(pf).Div(pt), nil
}

// Total folds a per-currency balance into target and sums it.
func (p PriceBook) Total(b domain.Balance, target string) (decimal.Decimal, error) {
	if !p.Has(target) {
		return decimal.Zero, apperror.ErrUnknownCurrency(target)
	}
	sum := decimal.Zero
	for _, code := range b.Codes() {
		v, err := p.Convert(b[code], code, target)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(v)
	}
	return sum, nil
}
