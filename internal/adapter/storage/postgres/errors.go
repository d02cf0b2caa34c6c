package postgres

import (
	"errors"
	"fmt"

	"currency-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgLockNotAvailable    = "55P03"
	pgNumericOutOfRange   = "22003"
)

// mapPgError tags constraint, range and lock failures with the matching ports
// sentinel, keeping the driver error in the chain.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %w", ports.ErrDuplicate, err)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %w", ports.ErrReferenced, err)
	case pgLockNotAvailable:
		return fmt.Errorf("%w: %w", ports.ErrLockTimeout, err)
	case pgNumericOutOfRange:
		return fmt.Errorf("%w: %w", ports.ErrOutOfRange, err)
	}
	return err
}
