package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const currencyColumns = `code, usd_price::text, created_at, updated_at`

// CurrencyRepo implements ports.CurrencyRepository using PostgreSQL.
type CurrencyRepo struct {
	pool Pool
}

// NewCurrencyRepo creates a new CurrencyRepo.
func NewCurrencyRepo(pool Pool) *CurrencyRepo {
	return &CurrencyRepo{pool: pool}
}

var _ ports.CurrencyRepository = (*CurrencyRepo)(nil)

// Create inserts a currency. A taken code yields ports.ErrDuplicate.
func (r *CurrencyRepo) Create(ctx context.Context, c *domain.Currency) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO currencies (code, usd_price, created_at, updated_at)
		 VALUES ($1, $2::numeric, $3, $4)`,
		c.Code, c.USDPrice.String(), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert currency: %w", mapPgError(err))
	}
	return nil
}

// UpdatePrice sets the USD price and returns the updated row, or nil if the
// code is unknown.
func (r *CurrencyRepo) UpdatePrice(ctx context.Context, code string, price decimal.Decimal, updatedAt time.Time) (*domain.Currency, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE currencies SET usd_price = $2::numeric, updated_at = $3
		 WHERE code = $1
		 RETURNING `+currencyColumns,
		code, price.String(), updatedAt,
	)
	c, err := scanCurrency(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update currency price: %w", err)
	}
	return c, nil
}

// Delete removes a currency. Records still pointing at it yield
// ports.ErrReferenced.
func (r *CurrencyRepo) Delete(ctx context.Context, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM currencies WHERE code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("delete currency: %w", mapPgError(err))
	}
	return tag.RowsAffected() > 0, nil
}

// GetByCode retrieves a currency by code. Returns nil, nil if not found.
func (r *CurrencyRepo) GetByCode(ctx context.Context, code string) (*domain.Currency, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE code = $1`, code)
	c, err := scanCurrency(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get currency: %w", err)
	}
	return c, nil
}

// List returns every currency ordered by code, inside tx when given.
func (r *CurrencyRepo) List(ctx context.Context, tx pgx.Tx) ([]domain.Currency, error) {
	rows, err := on(r.pool, tx).Query(ctx, `SELECT `+currencyColumns+` FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []domain.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCurrency(row pgx.Row) (*domain.Currency, error) {
	var (
		c     domain.Currency
		price string
	)
	if err := row.Scan(&c.Code, &price, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("currency %s price %q: %w", c.Code, price, err)
	}
	c.USDPrice = p
	return &c, nil
}
