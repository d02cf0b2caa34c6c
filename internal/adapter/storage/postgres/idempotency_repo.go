package postgres

import (
	"context"
	"errors"
	"fmt"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

var _ ports.IdempotencyRepository = (*IdempotencyRepo)(nil)

// Create inserts an idempotency log within tx. The key is the primary key, so
// a concurrent writer of the same key waits for this transaction and then
// fails with a unique violation.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO idempotency_logs (key, record_id, response_json, created_at)
		 VALUES ($1, $2, $3, $4)`,
		log.Key, log.RecordID, log.ResponseJSON, log.CreatedAt,
	)
	if err == nil {
		return nil
	}
	mapped := mapPgError(err)
	if errors.Is(mapped, ports.ErrDuplicate) {
		return fmt.Errorf("idempotency key %s: %w: %w", log.Key, ports.ErrIdempotencyConflict, err)
	}
	return fmt.Errorf("insert idempotency log: %w", mapped)
}

// Get fetches an idempotency log by key. Returns nil, nil if not found.
func (r *IdempotencyRepo) Get(ctx context.Context, tx pgx.Tx, key string) (*domain.IdempotencyLog, error) {
	log := &domain.IdempotencyLog{}
	err := on(r.pool, tx).QueryRow(ctx,
		`SELECT key, record_id, response_json, created_at FROM idempotency_logs WHERE key = $1`, key,
	).Scan(&log.Key, &log.RecordID, &log.ResponseJSON, &log.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	return log, nil
}
