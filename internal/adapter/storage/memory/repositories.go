package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ==================== Currencies ====================

// CurrencyRepo implements ports.CurrencyRepository.
type CurrencyRepo struct {
	store *Store
}

// NewCurrencyRepo creates a new CurrencyRepo.
func NewCurrencyRepo(store *Store) *CurrencyRepo {
	return &CurrencyRepo{store: store}
}

func (r *CurrencyRepo) Create(_ context.Context, c *domain.Currency) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.currencies[c.Code]; ok {
		return fmt.Errorf("currency %s: %w", c.Code, ports.ErrDuplicate)
	}
	s.currencies[c.Code] = *c
	return nil
}

func (r *CurrencyRepo) UpdatePrice(_ context.Context, code string, price decimal.Decimal, updatedAt time.Time) (*domain.Currency, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.currencies[code]
	if !ok {
		return nil, nil
	}
	c.USDPrice = price
	c.UpdatedAt = updatedAt
	s.currencies[code] = c
	return &c, nil
}

func (r *CurrencyRepo) Delete(_ context.Context, code string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.currencies[code]; !ok {
		return false, nil
	}
	for _, rec := range s.records {
		if rec.References(code) {
			return false, fmt.Errorf("currency %s: %w", code, ports.ErrReferenced)
		}
	}
	delete(s.currencies, code)
	return true, nil
}

func (r *CurrencyRepo) GetByCode(_ context.Context, code string) (*domain.Currency, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.currencies[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// List returns currencies ordered by code. Catalog writes are not
// transactional, so tx only has to be usable.
func (r *CurrencyRepo) List(_ context.Context, tx pgx.Tx) ([]domain.Currency, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ==================== Accounts ====================

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

func (r *AccountRepo) Create(_ context.Context, a *domain.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.Handle]; ok {
		return fmt.Errorf("account %s: %w", a.Handle, ports.ErrDuplicate)
	}
	s.accounts[a.Handle] = *a
	return nil
}

// Delete takes the account lock first so it cannot interleave with an
// append or retraction holding it.
func (r *AccountRepo) Delete(ctx context.Context, handle string) (bool, error) {
	s := r.store
	if err := s.acquire(ctx, handle); err != nil {
		return false, err
	}
	defer s.release(handle)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[handle]; !ok {
		return false, nil
	}
	for _, rec := range s.records {
		if rec.Touches(handle) {
			return false, fmt.Errorf("account %s: %w", handle, ports.ErrReferenced)
		}
	}
	delete(s.accounts, handle)
	return true, nil
}

func (r *AccountRepo) GetByHandle(_ context.Context, handle string) (*domain.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[handle]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AccountRepo) List(_ context.Context) ([]domain.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

// LockForUpdate locks handles in sorted order for the lifetime of tx and
// returns the ones that exist.
func (r *AccountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, handles []string) ([]string, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if mtx == nil {
		return nil, fmt.Errorf("lock accounts: transaction required")
	}

	sorted := uniqueSorted(handles)
	if err := mtx.lock(ctx, sorted); err != nil {
		return nil, err
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make([]string, 0, len(sorted))
	for _, h := range sorted {
		if _, ok := s.accounts[h]; ok {
			existing = append(existing, h)
		}
	}
	return existing, nil
}

func uniqueSorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}

// ==================== Records ====================

// RecordRepo implements ports.RecordRepository.
type RecordRepo struct {
	store *Store
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(store *Store) *RecordRepo {
	return &RecordRepo{store: store}
}

// Insert stages rec in tx and assigns its sequence number.
func (r *RecordRepo) Insert(_ context.Context, tx pgx.Tx, rec *domain.Record) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if mtx == nil {
		return fmt.Errorf("insert record: transaction required")
	}

	s := r.store
	s.mu.RLock()
	err = s.checkInsert(s.view(mtx), *rec)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	rec.Seq = s.nextSeq()
	mtx.inserts = append(mtx.inserts, *rec)
	return nil
}

func (r *RecordRepo) Delete(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if mtx == nil {
		return fmt.Errorf("delete record: transaction required")
	}

	s := r.store
	s.mu.RLock()
	found := s.findRecord(s.view(mtx), id)
	s.mu.RUnlock()
	if found == nil {
		return fmt.Errorf("delete record %s: %w", id, pgx.ErrNoRows)
	}

	for i, staged := range mtx.inserts {
		if staged.ID == id {
			mtx.inserts = append(mtx.inserts[:i], mtx.inserts[i+1:]...)
			return nil
		}
	}
	mtx.deletes[id] = struct{}{}
	return nil
}

func (r *RecordRepo) GetByID(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Record, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findRecord(s.view(mtx), id), nil
}

func (r *RecordRepo) ListByAccounts(_ context.Context, tx pgx.Tx, handles []string) ([]domain.Record, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for _, rec := range s.view(mtx) {
		for _, h := range handles {
			if rec.Touches(h) {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (r *RecordRepo) LatestByAccounts(_ context.Context, tx pgx.Tx, handles []string) (map[string]uuid.UUID, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[string]uuid.UUID, len(handles))
	for _, rec := range s.view(mtx) {
		for _, h := range handles {
			if rec.Touches(h) {
				latest[h] = rec.ID
			}
		}
	}
	return latest, nil
}

func (r *RecordRepo) ExistsForAccount(_ context.Context, handle string) (bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.Touches(handle) {
			return true, nil
		}
	}
	return false, nil
}

func (r *RecordRepo) ExistsForCurrency(_ context.Context, code string) (bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.References(code) {
			return true, nil
		}
	}
	return false, nil
}

// ==================== Idempotency ====================

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

// Get returns the log committed under key, or staged under it in tx.
func (r *IdempotencyRepo) Get(_ context.Context, tx pgx.Tx, key string) (*domain.IdempotencyLog, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if mtx != nil {
		for _, staged := range mtx.idempLogs {
			if staged.Key == key {
				return &staged, nil
			}
		}
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.idempotency[key]; ok {
		return &l, nil
	}
	return nil, nil
}

// Create stages log in tx. The key is checked again when tx commits.
func (r *IdempotencyRepo) Create(_ context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if mtx == nil {
		return fmt.Errorf("insert idempotency log: transaction required")
	}

	s := r.store
	s.mu.RLock()
	err = s.checkIdempotencyKey(mtx, log.Key)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	l := *log
	l.ResponseJSON = append([]byte(nil), log.ResponseJSON...)
	mtx.idempLogs = append(mtx.idempLogs, l)
	return nil
}

// ==================== Audit ====================

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *log)
	return nil
}

// HealthCheck implements ports.HealthChecker for the memory store.
type HealthCheck struct{}

// Ping always succeeds.
func (HealthCheck) Ping(context.Context) error { return nil }

// Name returns the dependency name.
func (HealthCheck) Name() string { return "memory" }
