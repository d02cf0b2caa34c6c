package ports

import (
	"context"
	"time"

	"currency-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// AuditService records audited actions without failing the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// LedgerService appends, retracts and projects ledger records.
type LedgerService interface {
	Append(ctx context.Context, req AppendRequest) (*AppendResult, error)
	Retract(ctx context.Context, id uuid.UUID, actor string) (*domain.Record, error)
	Balance(ctx context.Context, account, currency string) (*domain.BalanceReport, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	ListRecords(ctx context.Context, account string) ([]domain.Record, error)
}

// AppendRequest holds raw client input for a new record. Empty strings mean
// the field was not supplied.
type AppendRequest struct {
	Kind           string
	Account        string
	DestAccount    string
	Currency       string
	DestCurrency   string
	Amount         string
	IdempotencyKey string
	Actor          string
}

// AppendResult is the appended record plus the onboard appended with it, if any.
type AppendResult struct {
	Record        domain.Record  `json:"record"`
	AutoOnboarded *domain.Record `json:"auto_onboarded,omitempty"`
}

// CatalogService manages the currency and account catalogs.
type CatalogService interface {
	CreateCurrency(ctx context.Context, req CreateCurrencyRequest) (*domain.Currency, error)
	UpdateCurrencyPrice(ctx context.Context, code, usdPrice, actor string) (*domain.Currency, error)
	DeleteCurrency(ctx context.Context, code, actor string) error
	ListCurrencies(ctx context.Context) ([]domain.Currency, error)

	CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error)
	DeleteAccount(ctx context.Context, handle, actor string) error
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// CreateCurrencyRequest holds input for a new currency.
type CreateCurrencyRequest struct {
	Code     string
	USDPrice string
	Actor    string
}

// CreateAccountRequest holds input for a new account.
type CreateAccountRequest struct {
	Handle   string
	OpenedAt time.Time
	Actor    string
}
