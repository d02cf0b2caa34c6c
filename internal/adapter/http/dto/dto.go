package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"
)

// DateLayout is the wire format of account opening dates.
const DateLayout = "2006-01-02"

// Decimal accepts a JSON number or a JSON string and keeps the literal text,
// so precision is never lost to float64 and malformed input reaches the
// ledger's own amount check.
type Decimal string

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*d = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Decimal(s)
	default:
		*d = Decimal(b)
	}
	return nil
}

// AppendRecordRequest is the body of POST /api/v1/records. Which fields are
// required depends on kind and is checked by the ledger.
type AppendRecordRequest struct {
	Kind         string  `json:"kind"`
	Account      string  `json:"account"`
	DestAccount  string  `json:"dest_account,omitempty"`
	Currency     string  `json:"currency"`
	DestCurrency string  `json:"dest_currency,omitempty"`
	Amount       Decimal `json:"amount,omitempty"`
}

// CreateCurrencyRequest is the body of POST /api/v1/currencies.
type CreateCurrencyRequest struct {
	Code     string  `json:"code" binding:"required,currency_code"`
	USDPrice Decimal `json:"usd_price" binding:"required"`
}

// UpdatePriceRequest is the body of PUT /api/v1/currencies/:code.
type UpdatePriceRequest struct {
	USDPrice Decimal `json:"usd_price" binding:"required"`
}

// CreateAccountRequest is the body of POST /api/v1/accounts.
type CreateAccountRequest struct {
	Handle   string `json:"handle" binding:"required,handle"`
	OpenedAt string `json:"opened_at" binding:"required"` // YYYY-MM-DD
}

// RecordResponse is the wire form of a ledger record.
type RecordResponse struct {
	ID           string  `json:"id"`
	Seq          int64   `json:"seq"`
	Kind         string  `json:"kind"`
	Account      string  `json:"account"`
	DestAccount  *string `json:"dest_account,omitempty"`
	Currency     string  `json:"currency"`
	DestCurrency *string `json:"dest_currency,omitempty"`
	Amount       string  `json:"amount"`
	CreatedAt    string  `json:"created_at"`
}

// AppendRecordResponse carries the appended record and the onboard that was
// appended with it, if any.
type AppendRecordResponse struct {
	Record        RecordResponse  `json:"record"`
	AutoOnboarded *RecordResponse `json:"auto_onboarded,omitempty"`
}

// BalanceResponse is either the per-currency breakdown or a single total.
type BalanceResponse struct {
	Account  string            `json:"account"`
	Currency string            `json:"currency,omitempty"`
	Total    *string           `json:"total,omitempty"`
	Balances map[string]string `json:"balances,omitempty"`
}

type CurrencyResponse struct {
	Code      string `json:"code"`
	USDPrice  string `json:"usd_price"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type AccountResponse struct {
	Handle    string `json:"handle"`
	OpenedAt  string `json:"opened_at"`
	CreatedAt string `json:"created_at"`
}

// RecordListResponse wraps an account history.
type RecordListResponse struct {
	Items []RecordResponse `json:"items"`
	Total int              `json:"total"`
}

// ToRecordResponse converts a domain.Record to its wire form.
func ToRecordResponse(r domain.Record) RecordResponse {
	return RecordResponse{
		ID:           r.ID.String(),
		Seq:          r.Seq,
		Kind:         string(r.Kind),
		Account:      r.Account,
		DestAccount:  r.DestAccount,
		Currency:     r.Currency,
		DestCurrency: r.DestCurrency,
		Amount:       r.Amount.String(),
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func ToAppendRecordResponse(res *ports.AppendResult) AppendRecordResponse {
	out := AppendRecordResponse{Record: ToRecordResponse(res.Record)}
	if res.AutoOnboarded != nil {
		auto := ToRecordResponse(*res.AutoOnboarded)
		out.AutoOnboarded = &auto
	}
	return out
}

func ToRecordListResponse(records []domain.Record) RecordListResponse {
	items := make([]RecordResponse, 0, len(records))
	for _, r := range records {
		items = append(items, ToRecordResponse(r))
	}
	return RecordListResponse{Items: items, Total: len(items)}
}

func ToBalanceResponse(b *domain.BalanceReport) BalanceResponse {
	out := BalanceResponse{Account: b.Account, Currency: b.Currency}
	if b.Total != nil {
		s := b.Total.String()
		out.Total = &s
		return out
	}
	out.Balances = make(map[string]string, len(b.Balances))
	for code, amount := range b.Balances {
		out.Balances[code] = amount.String()
	}
	return out
}

func ToCurrencyResponse(c domain.Currency) CurrencyResponse {
	return CurrencyResponse{
		Code:      c.Code,
		USDPrice:  c.USDPrice.String(),
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ToAccountResponse(a domain.Account) AccountResponse {
	return AccountResponse{
		Handle:    a.Handle,
		OpenedAt:  a.OpenedAt.Format(DateLayout),
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
