package ports

import (
	"context"
	"errors"
	"time"

	"currency-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Store-level failures that the services translate into ledger error kinds.
var (
	// ErrDuplicate is returned when a write would violate a uniqueness rule,
	// including the one-onboard-per-(account, currency) rule.
	ErrDuplicate = errors.New("duplicate key")
	// ErrReferenced is returned when a write would leave a record pointing at
	// a missing account or currency, or a delete would orphan records.
	ErrReferenced = errors.New("referenced row missing or still in use")
	// ErrLockTimeout is returned when account locks could not be acquired in time.
	ErrLockTimeout = errors.New("lock wait timed out")
	// ErrOutOfRange is returned when a numeric value does not fit the column.
	ErrOutOfRange = errors.New("numeric value out of range")
	// ErrIdempotencyConflict is returned when another unit of work stored a
	// result under the same idempotency key first.
	ErrIdempotencyConflict = errors.New("idempotency key already recorded")
)

// CurrencyRepository defines persistence operations for the currency catalog.
type CurrencyRepository interface {
	Create(ctx context.Context, currency *domain.Currency) error
	// UpdatePrice returns nil, nil when the code does not exist.
	UpdatePrice(ctx context.Context, code string, price decimal.Decimal, updatedAt time.Time) (*domain.Currency, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, code string) (bool, error)
	GetByCode(ctx context.Context, code string) (*domain.Currency, error)
	// List reads through tx when it is non-nil.
	List(ctx context.Context, tx pgx.Tx) ([]domain.Currency, error)
}

// AccountRepository defines persistence operations for the account catalog.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, handle string) (bool, error)
	GetByHandle(ctx context.Context, handle string) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	// LockForUpdate takes row locks on the given handles for the lifetime of tx
	// and returns the handles that exist. Locks are acquired in handle order.
	LockForUpdate(ctx context.Context, tx pgx.Tx, handles []string) ([]string, error)
}

// RecordRepository defines persistence operations for ledger records.
// Methods accepting pgx.Tx read through the pool when tx is nil.
type RecordRepository interface {
	// Insert stores r and sets r.Seq.
	Insert(ctx context.Context, tx pgx.Tx, r *domain.Record) error
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Record, error)
	// ListByAccounts returns every record touching any of handles, in append order.
	ListByAccounts(ctx context.Context, tx pgx.Tx, handles []string) ([]domain.Record, error)
	// LatestByAccounts maps each handle to the id of its most recent record.
	// Handles without records are absent from the map.
	LatestByAccounts(ctx context.Context, tx pgx.Tx, handles []string) (map[string]uuid.UUID, error)
	ExistsForAccount(ctx context.Context, handle string) (bool, error)
	ExistsForCurrency(ctx context.Context, code string) (bool, error)
}

// IdempotencyRepository persists append results keyed by idempotency key.
type IdempotencyRepository interface {
	// Get reads through tx when it is non-nil. Returns nil, nil if the key is unknown.
	Get(ctx context.Context, tx pgx.Tx, key string) (*domain.IdempotencyLog, error)
	// Create stores log within tx. A key that is already stored yields
	// ErrIdempotencyConflict, at the latest when tx commits.
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
