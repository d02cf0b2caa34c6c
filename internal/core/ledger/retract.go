package ledger

import (
	"currency-ledger/internal/core/domain"
	"currency-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// CheckRetractable fails with NotLatestRecord unless rec is the most recent
// record of every account it references. latest maps each account to the id
// of its newest record.
func CheckRetractable(rec domain.Record, latest map[string]uuid.UUID) error {
	for _, account := range rec.Accounts() {
		if id, ok := latest[account]; !ok || id != rec.ID {
			return apperror.ErrNotLatestRecord()
		}
	}
	return nil
}

// CanRetract is the boolean form of CheckRetractable.
func CanRetract(rec domain.Record, latest map[string]uuid.UUID) bool {
	return CheckRetractable(rec, latest) == nil
}

// Latest derives, from records in append order, the newest record id of
// each of accounts.
func Latest(records []domain.Record, accounts ...string) map[string]uuid.UUID {
	latest := make(map[string]uuid.UUID, len(accounts))
	for _, r := range records {
		for _, a := range accounts {
			if r.Touches(a) {
				latest[a] = r.ID
			}
		}
	}
	return latest
}
