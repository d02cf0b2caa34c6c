// Package memory is an in-process implementation of the storage ports. It
// keeps the guarantees the services rely on from PostgreSQL: writes made
// through a transaction become visible together at commit, and account locks
// are held until the transaction ends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// DefaultLockTimeout bounds the wait for an account lock when NewStore is
// given a non-positive timeout.
const DefaultLockTimeout = 5 * time.Second

// Store holds committed state.
type Store struct {
	mu          sync.RWMutex
	currencies  map[string]domain.Currency
	accounts    map[string]domain.Account
	records     []domain.Record // ordered by Seq
	idempotency map[string]domain.IdempotencyLog
	audit       []domain.AuditLog
	seq         int64

	lockMu      sync.Mutex
	locks       map[string]chan struct{}
	lockTimeout time.Duration
}

// NewStore creates an empty store. lockTimeout bounds the wait for an
// account lock; a non-positive value selects DefaultLockTimeout.
func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		currencies:  make(map[string]domain.Currency),
		accounts:    make(map[string]domain.Account),
		idempotency: make(map[string]domain.IdempotencyLog),
		locks:       make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

func (s *Store) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Store) lockChan(handle string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[handle]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[handle] = ch
	}
	return ch
}

// acquire blocks until the lock on handle is free, ctx ends or the lock
// timeout passes.
func (s *Store) acquire(ctx context.Context, handle string) error {
	ch := s.lockChan(handle)
	t := time.NewTimer(s.lockTimeout)
	defer t.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock account %s: %w", handle, ctx.Err())
	case <-t.C:
		return fmt.Errorf("lock account %s: %w", handle, ports.ErrLockTimeout)
	}
}

func (s *Store) release(handle string) {
	<-s.lockChan(handle)
}

// view returns committed records with the changes of tx applied, in seq order.
// The caller holds s.mu.
func (s *Store) view(tx *Tx) []domain.Record {
	if tx == nil || (len(tx.inserts) == 0 && len(tx.deletes) == 0) {
		return s.records
	}
	out := make([]domain.Record, 0, len(s.records)+len(tx.inserts))
	for _, r := range s.records {
		if _, gone := tx.deletes[r.ID]; !gone {
			out = append(out, r)
		}
	}
	out = append(out, tx.inserts...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// checkInsert applies the constraints the relational schema enforces on a new
// record. The caller holds s.mu.
func (s *Store) checkInsert(records []domain.Record, r domain.Record) error {
	for _, a := range r.Accounts() {
		if _, ok := s.accounts[a]; !ok {
			return fmt.Errorf("account %s: %w", a, ports.ErrReferenced)
		}
	}
	codes := []string{r.Currency}
	if r.DestCurrency != nil {
		codes = append(codes, *r.DestCurrency)
	}
	for _, c := range codes {
		if _, ok := s.currencies[c]; !ok {
			return fmt.Errorf("currency %s: %w", c, ports.ErrReferenced)
		}
	}
	for _, existing := range records {
		if existing.ID == r.ID {
			return fmt.Errorf("record %s: %w", r.ID, ports.ErrDuplicate)
		}
		if r.Kind == domain.RecordKindOnboard && existing.IsOnboardOf(r.Account, r.Currency) {
			return fmt.Errorf("onboard %s/%s: %w", r.Account, r.Currency, ports.ErrDuplicate)
		}
	}
	return nil
}

// checkIdempotencyKey rejects a key that is already committed or staged in
// tx. The caller holds s.mu.
func (s *Store) checkIdempotencyKey(tx *Tx, key string) error {
	_, taken := s.idempotency[key]
	if !taken && tx != nil {
		for _, staged := range tx.idempLogs {
			if staged.Key == key {
				taken = true
				break
			}
		}
	}
	if taken {
		return fmt.Errorf("idempotency key %s: %w", key, ports.ErrIdempotencyConflict)
	}
	return nil
}

func (s *Store) findRecord(records []domain.Record, id uuid.UUID) *domain.Record {
	for i := range records {
		if records[i].ID == id {
			r := records[i]
			return &r
		}
	}
	return nil
}

// AuditLogs returns a copy of the persisted audit entries.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLog(nil), s.audit...)
}
