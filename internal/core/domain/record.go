package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordKind identifies the shape of a ledger record.
type RecordKind string

const (
	RecordKindOnboard  RecordKind = "ONBOARD"
	RecordKindTransfer RecordKind = "TRANSFER"
	RecordKindSwap     RecordKind = "SWAP"
)

// ParseRecordKind maps a client supplied kind, case-insensitively.
func ParseRecordKind(s string) (RecordKind, bool) {
	switch RecordKind(upper(s)) {
	case RecordKindOnboard:
		return RecordKindOnboard, true
	case RecordKindTransfer:
		return RecordKindTransfer, true
	case RecordKindSwap:
		return RecordKindSwap, true
	}
	return "", false
}

// Record is an immutable ledger entry as it is stored. Seq is assigned by the
// store at append time and orders records globally.
type Record struct {
	ID           uuid.UUID       `json:"id"`
	Seq          int64           `json:"seq"`
	Kind         RecordKind      `json:"kind"`
	Account      string          `json:"account"`
	DestAccount  *string         `json:"dest_account,omitempty"`
	Currency     string          `json:"currency"`
	DestCurrency *string         `json:"dest_currency,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Entry is the closed set of record shapes: Onboard, Transfer and Swap.
type Entry interface {
	Kind() RecordKind
	record() Record
}

// Onboard activates Currency on Account with an initial Amount.
type Onboard struct {
	Account  string
	Currency string
	Amount   decimal.Decimal
}

// Transfer moves Amount of Currency from one account to another.
type Transfer struct {
	From     string
	To       string
	Currency string
	Amount   decimal.Decimal
}

// Swap converts Amount of From into To within a single account.
type Swap struct {
	Account string
	From    string
	To      string
	Amount  decimal.Decimal
}

func (Onboard) Kind() RecordKind  { return RecordKindOnboard }
func (Transfer) Kind() RecordKind { return RecordKindTransfer }
func (Swap) Kind() RecordKind     { return RecordKindSwap }

func (e Onboard) record() Record {
	return Record{Kind: RecordKindOnboard, Account: e.Account, Currency: e.Currency, Amount: e.Amount}
}

func (e Transfer) record() Record {
	to := e.To
	return Record{Kind: RecordKindTransfer, Account: e.From, DestAccount: &to, Currency: e.Currency, Amount: e.Amount}
}

func (e Swap) record() Record {
	to := e.To
	return Record{Kind: RecordKindSwap, Account: e.Account, Currency: e.From, DestCurrency: &to, Amount: e.Amount}
}

// NewRecord builds an unsequenced record for e with a fresh id.
func NewRecord(e Entry, now time.Time) Record {
	r := e.record()
	r.ID = uuid.New()
	r.CreatedAt = now
	return r
}

// Entry decodes the stored row back into its variant, rejecting rows whose
// kind is unknown or whose optional fields do not match the kind.
func (r Record) Entry() (Entry, error) {
	switch r.Kind {
	case RecordKindOnboard:
		if r.DestAccount != nil || r.DestCurrency != nil {
			return nil, fmt.Errorf("onboard record %s carries a destination", r.ID)
		}
		return Onboard{Account: r.Account, Currency: r.Currency, Amount: r.Amount}, nil
	case RecordKindTransfer:
		if r.DestAccount == nil || r.DestCurrency != nil {
			return nil, fmt.Errorf("transfer record %s has an invalid destination", r.ID)
		}
		return Transfer{From: r.Account, To: *r.DestAccount, Currency: r.Currency, Amount: r.Amount}, nil
	case RecordKindSwap:
		if r.DestCurrency == nil || r.DestAccount != nil {
			return nil, fmt.Errorf("swap record %s has an invalid destination", r.ID)
		}
		return Swap{Account: r.Account, From: r.Currency, To: *r.DestCurrency, Amount: r.Amount}, nil
	}
	return nil, fmt.Errorf("record %s has unknown kind %q", r.ID, r.Kind)
}

// Accounts returns the accounts the record references, source first.
func (r Record) Accounts() []string {
	if r.DestAccount != nil {
		return []string{r.Account, *r.DestAccount}
	}
	return []string{r.Account}
}

// Touches reports whether the record references account.
func (r Record) Touches(account string) bool {
	return r.Account == account || (r.DestAccount != nil && *r.DestAccount == account)
}

// References reports whether the record mentions currency on either side.
func (r Record) References(currency string) bool {
	return r.Currency == currency || (r.DestCurrency != nil && *r.DestCurrency == currency)
}

// IsOnboardOf reports whether r is the onboarding of currency on account.
func (r Record) IsOnboardOf(account, currency string) bool {
	return r.Kind == RecordKindOnboard && r.Account == account && r.Currency == currency
}
