package postgres

import (
	"context"
	"errors"
	"fmt"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `handle, opened_at, created_at`

// AccountRepo implements ports.AccountRepository using PostgreSQL.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

var _ ports.AccountRepository = (*AccountRepo)(nil)

func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (handle, opened_at, created_at) VALUES ($1, $2, $3)`,
		a.Handle, a.OpenedAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", mapPgError(err))
	}
	return nil
}

func (r *AccountRepo) Delete(ctx context.Context, handle string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE handle = $1`, handle)
	if err != nil {
		return false, fmt.Errorf("delete account: %w", mapPgError(err))
	}
	return tag.RowsAffected() > 0, nil
}

// GetByHandle retrieves an account. Returns nil, nil if not found.
func (r *AccountRepo) GetByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE handle = $1`, handle,
	).Scan(&a.Handle, &a.OpenedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY handle`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.Handle, &a.OpenedAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LockForUpdate takes row locks on the given accounts in handle order and
// returns the handles that exist. Locks are held until tx ends.
func (r *AccountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, handles []string) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	rows, err := tx.Query(ctx,
		`SELECT handle FROM accounts WHERE handle = ANY($1) ORDER BY handle FOR UPDATE`,
		handles,
	)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", mapPgError(err))
	}
	defer rows.Close()

	var locked []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan locked account: %w", err)
		}
		locked = append(locked, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock accounts: %w", mapPgError(err))
	}
	return locked, nil
}
