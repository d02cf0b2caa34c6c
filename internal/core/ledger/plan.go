package ledger

import (
	"fmt"
	"strings"

	"currency-ledger/internal/core/domain"
	"currency-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// MinMovement is the smallest amount a transfer or swap may move.
var MinMovement = decimal.RequireFromString("0.1")

// Request is an unvalidated append. Empty strings mean "not supplied".
type Request struct {
	Kind         string
	Account      string
	DestAccount  string
	Currency     string
	DestCurrency string
	Amount       string
}

// Snapshot is the state an append is validated against. Records must hold
// every record touching the accounts of the request, in append order.
type Snapshot struct {
	Prices   PriceBook
	Accounts map[string]struct{}
	Records  []domain.Record
}

// NewSnapshot builds a Snapshot from catalog listings and a record log.
func NewSnapshot(currencies []domain.Currency, accounts []string, records []domain.Record) Snapshot {
	set := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		set[a] = struct{}{}
	}
	return Snapshot{Prices: NewPriceBook(currencies), Accounts: set, Records: records}
}

// Plan is an accepted append: Primary, preceded by Dependent when the
// destination pair has to be onboarded first. Both belong in one unit of work.
type Plan struct {
	Dependent *domain.Onboard
	Primary   domain.Entry
}

// Entries returns the plan in append order.
func (p Plan) Entries() []domain.Entry {
	if p.Dependent != nil {
		return []domain.Entry{*p.Dependent, p.Primary}
	}
	return []domain.Entry{p.Primary}
}

type field struct {
	name  string
	value string
}

// PlanAppend validates req against snap and returns what to append.
func PlanAppend(req Request, snap Snapshot) (*Plan, error) {
	kind, ok := domain.ParseRecordKind(req.Kind)
	if !ok {
		return nil, apperror.ErrUnknownKind(req.Kind)
	}

	account := field{"account", strings.TrimSpace(req.Account)}
	destAccount := field{"dest_account", strings.TrimSpace(req.DestAccount)}
	currency := field{"currency", domain.NormalizeCurrencyCode(req.Currency)}
	destCurrency := field{"dest_currency", domain.NormalizeCurrencyCode(req.DestCurrency)}

	var required, forbidden []field
	switch kind {
	case domain.RecordKindOnboard:
		required = []field{account, currency}
		forbidden = []field{destAccount, destCurrency}
	case domain.RecordKindTransfer:
		required = []field{account, destAccount, currency}
		forbidden = []field{destCurrency}
	case domain.RecordKindSwap:
		required = []field{account, currency, destCurrency}
		forbidden = []field{destAccount}
	}
	for _, f := range required {
		if f.value == "" {
			return nil, apperror.Validation(fmt.Sprintf("%s is required", f.name))
		}
	}
	for _, f := range forbidden {
		if f.value != "" {
			return nil, apperror.ErrFieldNotAllowed(f.name)
		}
	}

	for _, f := range []field{account, destAccount} {
		if _, ok := snap.Accounts[f.value]; f.value != "" && !ok {
			return nil, apperror.ErrNotFound(f.name)
		}
	}
	for _, f := range []field{currency, destCurrency} {
		if f.value != "" && !snap.Prices.Has(f.value) {
			return nil, apperror.ErrNotFound(f.name)
		}
	}

	amount, err := parseAmount(req.Amount, kind == domain.RecordKindOnboard)
	if err != nil {
		return nil, err
	}

	switch kind {
	case domain.RecordKindOnboard:
		if onboarded(snap.Records, account.value, currency.value) {
			return nil, apperror.ErrDuplicateOnboard()
		}
		return &Plan{Primary: domain.Onboard{Account: account.value, Currency: currency.value, Amount: amount}}, nil

	case domain.RecordKindSwap:
		if currency.value == destCurrency.value {
			return nil, apperror.ErrSameCurrency()
		}
		if err := checkMovement(snap, account.value, currency.value, amount); err != nil {
			return nil, err
		}
		plan := &Plan{Primary: domain.Swap{Account: account.value, From: currency.value, To: destCurrency.value, Amount: amount}}
		if !onboarded(snap.Records, account.value, destCurrency.value) {
			plan.Dependent = &domain.Onboard{Account: account.value, Currency: destCurrency.value, Amount: decimal.Zero}
		}
		return plan, nil

	default:
		if account.value == destAccount.value {
			return nil, apperror.ErrSameAccount()
		}
		if err := checkMovement(snap, account.value, currency.value, amount); err != nil {
			return nil, err
		}
		plan := &Plan{Primary: domain.Transfer{From: account.value, To: destAccount.value, Currency: currency.value, Amount: amount}}
		if !onboarded(snap.Records, destAccount.value, currency.value) {
			plan.Dependent = &domain.Onboard{Account: destAccount.value, Currency: currency.value, Amount: decimal.Zero}
		}
		return plan, nil
	}
}

// checkMovement applies the rules shared by transfers and swaps to the
// source pair: minimum amount, onboarding, then sufficient funds.
func checkMovement(snap Snapshot, account, currency string, amount decimal.Decimal) error {
	if amount.LessThan(MinMovement) {
		return apperror.ErrAmountTooSmall(MinMovement.String())
	}
	if !onboarded(snap.Records, account, currency) {
		return apperror.ErrNotOnboarded(fmt.Sprintf("%s on account %s", currency, account))
	}
	bal, err := Project(snap.Records, snap.Prices, account)
	if err != nil {
		return err
	}
	if bal[currency].LessThan(amount) {
		return apperror.ErrInsufficientFunds()
	}
	return nil
}

// parseAmount reads a non-negative decimal within domain.WithinBounds. An
// absent amount is zero when optional and a NotANumber failure otherwise.
func parseAmount(raw string, optional bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if optional {
			return decimal.Zero, nil
		}
		return decimal.Zero, apperror.ErrNotANumber("amount")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() || !domain.WithinBounds(amount) {
		return decimal.Zero, apperror.ErrNotANumber("amount")
	}
	return amount, nil
}

func onboarded(records []domain.Record, account, currency string) bool {
	for _, r := range records {
		if r.IsOnboardOf(account, currency) {
			return true
		}
	}
	return false
}
