package postgres

import (
	"context"
	"errors"
	"fmt"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const recordColumns = `seq, id, kind, account, dest_account, currency, dest_currency, amount::text, created_at`

// RecordRepo implements ports.RecordRepository using PostgreSQL.
type RecordRepo struct {
	pool Pool
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(pool Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

var _ ports.RecordRepository = (*RecordRepo)(nil)

// Insert appends rec within tx and stores the assigned sequence on it.
func (r *RecordRepo) Insert(ctx context.Context, tx pgx.Tx, rec *domain.Record) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO records (id, kind, account, dest_account, currency, dest_currency, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)
		 RETURNING seq`,
		rec.ID, string(rec.Kind), rec.Account, rec.DestAccount,
		rec.Currency, rec.DestCurrency, rec.Amount.String(), rec.CreatedAt,
	).Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("insert record: %w", mapPgError(err))
	}
	return nil
}

// Delete removes a record within tx.
func (r *RecordRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete record %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

// GetByID retrieves a record. Returns nil, nil if not found.
func (r *RecordRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Record, error) {
	row := on(r.pool, tx).QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListByAccounts returns, in append order, every record referencing any of
// handles. A nil handles slice returns the full history.
func (r *RecordRepo) ListByAccounts(ctx context.Context, tx pgx.Tx, handles []string) ([]domain.Record, error) {
	q := on(r.pool, tx)

	var (
		rows pgx.Rows
		err  error
	)
	if handles == nil {
		rows, err = q.Query(ctx, `SELECT `+recordColumns+` FROM records ORDER BY seq`)
	} else {
		rows, err = q.Query(ctx,
			`SELECT `+recordColumns+` FROM records
			 WHERE account = ANY($1) OR dest_account = ANY($1)
			 ORDER BY seq`,
			handles,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// LatestByAccounts maps each handle with history to the id of its most
// recent record.
func (r *RecordRepo) LatestByAccounts(ctx context.Context, tx pgx.Tx, handles []string) (map[string]uuid.UUID, error) {
	rows, err := on(r.pool, tx).Query(ctx,
		`SELECT a.handle, latest.id
		 FROM unnest($1::text[]) AS a(handle)
		 CROSS JOIN LATERAL (
		     SELECT id FROM records
		     WHERE account = a.handle OR dest_account = a.handle
		     ORDER BY seq DESC
		     LIMIT 1
		 ) latest`,
		handles,
	)
	if err != nil {
		return nil, fmt.Errorf("latest records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID, len(handles))
	for rows.Next() {
		var (
			handle string
			id     uuid.UUID
		)
		if err := rows.Scan(&handle, &id); err != nil {
			return nil, fmt.Errorf("scan latest record: %w", err)
		}
		out[handle] = id
	}
	return out, rows.Err()
}

func (r *RecordRepo) ExistsForAccount(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM records WHERE account = $1 OR dest_account = $1)`, handle,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("records for account: %w", err)
	}
	return exists, nil
}

func (r *RecordRepo) ExistsForCurrency(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM records WHERE currency = $1 OR dest_currency = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("records for currency: %w", err)
	}
	return exists, nil
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	var (
		rec    domain.Record
		kind   string
		amount string
	)
	err := row.Scan(
		&rec.Seq, &rec.ID, &kind, &rec.Account, &rec.DestAccount,
		&rec.Currency, &rec.DestCurrency, &amount, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Kind = domain.RecordKind(kind)
	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("record %s amount %q: %w", rec.ID, amount, err)
	}
	return &rec, nil
}
