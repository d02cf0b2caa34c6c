package ledger

import (
	"currency-ledger/internal/core/domain"
	"currency-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// Project replays records into the per-currency balance of account. Records
// not touching account are skipped; the rest are applied in slice order.
// Either every aggregate is non-negative and the full balance is returned, or
// the projection fails with NegativeBalance.
func Project(records []domain.Record, prices PriceBook, account string) (domain.Balance, error) {
	bal := domain.Balance{}
	add := func(code string, v decimal.Decimal) {
		bal[code] = bal[code].Add(v)
	}

	pos := 0 // 1-based position among the replayed records
	for _, r := range records {
		if !r.Touches(account) {
			continue
		}
		pos++
		e, err := r.Entry()
		if err != nil {
			return nil, apperror.ErrCorruptRecord(pos, err)
		}

		switch v := e.(type) {
		case domain.Onboard:
			add(v.Currency, v.Amount)
		case domain.Transfer:
			if v.From == account {
				add(v.Currency, v.Amount.Neg())
			}
			if v.To == account {
				add(v.Currency, v.Amount)
			}
		case domain.Swap:
			received, err := prices.Convert(v.Amount, v.From, v.To)
			if err != nil {
				return nil, err
			}
			add(v.From, v.Amount.Neg())
			add(v.To, received)
		}
	}

	for _, amount := range bal {
		if amount.IsNegative() {
			return nil, apperror.ErrNegativeBalance(account)
		}
	}
	return bal, nil
}

// QueryBalance answers a balance query for account. With an empty target the
// full per-currency balance is returned; otherwise every currency is
// converted into target and summed.
func QueryBalance(records []domain.Record, prices PriceBook, account, target string) (*domain.BalanceReport, error) {
	if !touchesAny(records, account) {
		return nil, apperror.ErrNoRecords(account)
	}

	bal, err := Project(records, prices, account)
	if err != nil {
		return nil, err
	}

	if target == "" {
		return &domain.BalanceReport{Account: account, Balances: bal}, nil
	}

	total, err := prices.Total(bal, target)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceReport{Account: account, Currency: target, Total: &total}, nil
}

func touchesAny(records []domain.Record, account string) bool {
	for _, r := range records {
		if r.Touches(account) {
			return true
		}
	}
	return false
}
