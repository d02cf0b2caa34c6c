package postgres

import (
	"context"
	"errors"
)

// ErrSchemaMissing is reported by the health check when the database answers
// but the ledger tables were never created.
var ErrSchemaMissing = errors.New("ledger schema missing, run ledgerctl migrate")

const schemaProbe = `SELECT to_regclass('records') IS NOT NULL`

// HealthCheck implements ports.HealthChecker for the PostgreSQL record store.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping succeeds once the database answers and the records table exists.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var migrated bool
	if err := h.pool.QueryRow(ctx, schemaProbe).Scan(&migrated); err != nil {
		return err
	}
	if !migrated {
		return ErrSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string { return "postgresql" }
