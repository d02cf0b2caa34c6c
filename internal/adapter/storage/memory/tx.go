package memory

import (
	"context"
	"fmt"
	"sort"

	"currency-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Tx stages record and idempotency writes and holds account locks until Commit or Rollback.
// It satisfies pgx.Tx so it can travel through the repository ports; the
// SQL methods are not available on it.
type Tx struct {
	pgx.Tx

	store     *Store
	held      map[string]struct{}
	inserts   []domain.Record
	deletes   map[uuid.UUID]struct{}
	idempLogs []domain.IdempotencyLog
	closed    bool
}

// Transactor implements ports.DBTransactor for the memory store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a new Transactor over store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin starts a new transaction.
func (t *Transactor) Begin(_ context.Context) (pgx.Tx, error) {
	return &Tx{
		store:   t.store,
		held:    make(map[string]struct{}),
		deletes: make(map[uuid.UUID]struct{}),
	}, nil
}

// Commit validates the staged writes against committed state and applies
// them atomically. Locks are released whether or not it succeeds.
func (tx *Tx) Commit(_ context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	defer tx.finish()

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Staged keys were unique among themselves when staged; only keys
	// committed since then can collide.
	for _, l := range tx.idempLogs {
		if err := s.checkIdempotencyKey(nil, l.Key); err != nil {
			return err
		}
	}

	kept := make([]domain.Record, 0, len(s.records)+len(tx.inserts))
	for _, r := range s.records {
		if _, gone := tx.deletes[r.ID]; !gone {
			kept = append(kept, r)
		}
	}
	for id := range tx.deletes {
		if s.findRecord(s.records, id) == nil {
			return fmt.Errorf("delete record %s: %w", id, pgx.ErrNoRows)
		}
	}
	for _, r := range tx.inserts {
		if err := s.checkInsert(kept, r); err != nil {
			return err
		}
		kept = append(kept, r)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Seq < kept[j].Seq })
	s.records = kept
	for _, l := range tx.idempLogs {
		s.idempotency[l.Key] = l
	}
	return nil
}

// Rollback discards staged writes and releases locks.
func (tx *Tx) Rollback(_ context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.finish()
	return nil
}

func (tx *Tx) finish() {
	tx.closed = true
	for h := range tx.held {
		tx.store.release(h)
	}
	tx.held = nil
	tx.inserts = nil
	tx.deletes = nil
	tx.idempLogs = nil
}

func (tx *Tx) lock(ctx context.Context, handles []string) error {
	for _, h := range handles {
		if _, ok := tx.held[h]; ok {
			continue
		}
		if err := tx.store.acquire(ctx, h); err != nil {
			return err
		}
		tx.held[h] = struct{}{}
	}
	return nil
}

// asTx unwraps a transaction handed to a repository. A nil tx reads
// committed state.
func asTx(tx pgx.Tx) (*Tx, error) {
	if tx == nil {
		return nil, nil
	}
	mtx, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("memory store: foreign transaction %T", tx)
	}
	if mtx.closed {
		return nil, pgx.ErrTxClosed
	}
	return mtx, nil
}
