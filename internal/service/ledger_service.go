package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ledger"
	"currency-ledger/internal/core/ports"
	"currency-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyKeyPrefix = "append:"

// LedgerServiceImpl implements ports.LedgerService. Every append and
// retraction runs in one unit of work that first locks the rows of the
// accounts involved, so validation and the write observe the same state.
type LedgerServiceImpl struct {
	records    ports.RecordRepository
	currencies ports.CurrencyRepository
	accounts   ports.AccountRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	audit      ports.AuditService
	transactor ports.DBTransactor
	idempTTL   time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. idempCache and audit may
// be nil; idempotency keys are then enforced by idempRepo alone, which is
// required.
func NewLedgerService(
	records ports.RecordRepository,
	currencies ports.CurrencyRepository,
	accounts ports.AccountRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	audit ports.AuditService,
	transactor ports.DBTransactor,
	idempTTL time.Duration,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		records:    records,
		currencies: currencies,
		accounts:   accounts,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		audit:      audit,
		transactor: transactor,
		idempTTL:   idempTTL,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// Append validates req against the locked state of its accounts and appends
// the resulting record, together with the destination onboard it needs.
//
// A request carrying an idempotency key is checked in two layers: the Redis
// cache, then the idempotency log, which is written in the same unit of work
// as the records. A repeated key replays the first result without appending.
func (s *LedgerServiceImpl) Append(ctx context.Context, req ports.AppendRequest) (*ports.AppendResult, error) {
	idempKey := ""
	if req.IdempotencyKey != "" {
		idempKey = idempotencyKey(req.Actor, req.IdempotencyKey)
		// Layer 1: Redis
		if cached := s.cachedAppend(ctx, idempKey); cached != nil {
			return cached, nil
		}
	}

	var (
		result   *ports.AppendResult
		replayed bool
	)
	err := s.withUnitOfWork(ctx, func(tx pgx.Tx) error {
		locked, err := s.accounts.LockForUpdate(ctx, tx, involvedAccounts(req))
		if err != nil {
			return storeError("lock accounts", err)
		}

		// Layer 2: idempotency log, read under the account locks so a
		// same-key request on the same accounts sees the committed result.
		if idempKey != "" {
			prior, err := s.storedAppend(ctx, tx, idempKey)
			if err != nil {
				return err
			}
			if prior != nil {
				result, replayed = prior, true
				return nil
			}
		}

		// Records before currencies: a currency referenced by a record
		// cannot disappear between the two reads.
		records, err := s.records.ListByAccounts(ctx, tx, locked)
		if err != nil {
			return storeError("list records", err)
		}
		currencies, err := s.currencies.List(ctx, tx)
		if err != nil {
			return storeError("list currencies", err)
		}

		plan, err := ledger.PlanAppend(ledger.Request{
			Kind:         req.Kind,
			Account:      req.Account,
			DestAccount:  req.DestAccount,
			Currency:     req.Currency,
			DestCurrency: req.DestCurrency,
			Amount:       req.Amount,
		}, ledger.NewSnapshot(currencies, locked, records))
		if err != nil {
			return err
		}

		now := s.now()
		result = &ports.AppendResult{}
		if plan.Dependent != nil {
			dep := domain.NewRecord(*plan.Dependent, now)
			if err := s.records.Insert(ctx, tx, &dep); err != nil {
				return apperror.ErrAutoOnboardFailed(err)
			}
			result.AutoOnboarded = &dep
		}

		rec := domain.NewRecord(plan.Primary, now)
		if err := s.records.Insert(ctx, tx, &rec); err != nil {
			return storeError("insert record", err)
		}
		result.Record = rec

		if idempKey != "" {
			respJSON, err := json.Marshal(result)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("marshal append result: %w", err))
			}
			if err := s.idempRepo.Create(ctx, tx, &domain.IdempotencyLog{
				Key:          idempKey,
				RecordID:     rec.ID,
				ResponseJSON: respJSON,
				CreatedAt:    now,
			}); err != nil {
				return storeError("insert idempotency log", err)
			}
		}
		return nil
	})
	if errors.Is(err, ports.ErrIdempotencyConflict) {
		// A concurrent request stored the key first and this unit of work
		// rolled back; answer with its result.
		result, err = s.storedAppend(ctx, nil, idempKey)
		if err == nil && result == nil {
			err = apperror.InternalError(fmt.Errorf("idempotency key %s conflicted but is not stored", idempKey))
		}
		replayed = true
	}
	if err != nil {
		return nil, err
	}

	if idempKey != "" {
		s.cacheAppend(ctx, idempKey, result)
	}
	if replayed {
		s.log.Info().
			Str("key", idempKey).
			Str("record_id", result.Record.ID.String()).
			Msg("idempotent append replayed")
		return result, nil
	}

	if result.AutoOnboarded != nil {
		s.auditRecord(ctx, domain.AuditActionAutoOnboard, req.Actor, result.AutoOnboarded)
	}
	s.auditRecord(ctx, domain.AuditActionAppend, req.Actor, &result.Record)

	s.log.Info().
		Str("record_id", result.Record.ID.String()).
		Int64("seq", result.Record.Seq).
		Str("kind", string(result.Record.Kind)).
		Strs("accounts", result.Record.Accounts()).
		Bool("auto_onboarded", result.AutoOnboarded != nil).
		Msg("record appended")

	return result, nil
}

// Retract deletes a record that is the newest for every account it references.
func (s *LedgerServiceImpl) Retract(ctx context.Context, id uuid.UUID, actor string) (*domain.Record, error) {
	var retracted *domain.Record
	err := s.withUnitOfWork(ctx, func(tx pgx.Tx) error {
		rec, err := s.records.GetByID(ctx, tx, id)
		if err != nil {
			return storeError("get record", err)
		}
		if rec == nil {
			return apperror.ErrNotFound("record")
		}

		if _, err := s.accounts.LockForUpdate(ctx, tx, rec.Accounts()); err != nil {
			return storeError("lock accounts", err)
		}

		// Re-read under the locks; a concurrent retraction may have won.
		rec, err = s.records.GetByID(ctx, tx, id)
		if err != nil {
			return storeError("get record", err)
		}
		if rec == nil {
			return apperror.ErrNotFound("record")
		}

		latest, err := s.records.LatestByAccounts(ctx, tx, rec.Accounts())
		if err != nil {
			return storeError("latest records", err)
		}
		if err := ledger.CheckRetractable(*rec, latest); err != nil {
			return err
		}

		if err := s.records.Delete(ctx, tx, id); err != nil {
			return storeError("delete record", err)
		}
		retracted = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditRecord(ctx, domain.AuditActionRetract, actor, retracted)
	s.log.Info().
		Str("record_id", retracted.ID.String()).
		Str("kind", string(retracted.Kind)).
		Strs("accounts", retracted.Accounts()).
		Msg("record retracted")

	return retracted, nil
}

// Balance projects the balance of account, optionally totalled in currency.
func (s *LedgerServiceImpl) Balance(ctx context.Context, account, currency string) (*domain.BalanceReport, error) {
	account = strings.TrimSpace(account)
	if err := s.requireAccount(ctx, account); err != nil {
		return nil, err
	}

	records, err := s.records.ListByAccounts(ctx, nil, []string{account})
	if err != nil {
		return nil, storeError("list records", err)
	}
	currencies, err := s.currencies.List(ctx, nil)
	if err != nil {
		return nil, storeError("list currencies", err)
	}

	return ledger.QueryBalance(records, ledger.NewPriceBook(currencies), account, domain.NormalizeCurrencyCode(currency))
}

// GetRecord fetches a single record.
func (s *LedgerServiceImpl) GetRecord(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	rec, err := s.records.GetByID(ctx, nil, id)
	if err != nil {
		return nil, storeError("get record", err)
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("record")
	}
	return rec, nil
}

// ListRecords returns the records touching account in append order.
func (s *LedgerServiceImpl) ListRecords(ctx context.Context, account string) ([]domain.Record, error) {
	account = strings.TrimSpace(account)
	if err := s.requireAccount(ctx, account); err != nil {
		return nil, err
	}
	records, err := s.records.ListByAccounts(ctx, nil, []string{account})
	if err != nil {
		return nil, storeError("list records", err)
	}
	return records, nil
}

func (s *LedgerServiceImpl) requireAccount(ctx context.Context, handle string) error {
	acct, err := s.accounts.GetByHandle(ctx, handle)
	if err != nil {
		return storeError("get account", err)
	}
	if acct == nil {
		return apperror.ErrNotFound("account")
	}
	return nil
}

// withUnitOfWork runs fn in a transaction and commits it if fn succeeds.
func (s *LedgerServiceImpl) withUnitOfWork(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return runInTx(ctx, s.transactor, fn)
}

func (s *LedgerServiceImpl) cachedAppend(ctx context.Context, key string) *ports.AppendResult {
	if s.idempCache == nil {
		return nil
	}
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, processing append")
		return nil
	}
	if cached == nil {
		return nil
	}
	var res ports.AppendResult
	if err := json.Unmarshal(cached, &res); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency entry")
		return nil
	}
	return &res
}

// cacheAppend stores res in Redis. Failures are logged only: the idempotency
// log still holds the result.
func (s *LedgerServiceImpl) cacheAppend(ctx context.Context, key string, res *ports.AppendResult) {
	if s.idempCache == nil {
		return
	}
	respJSON, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, respJSON, s.idempTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

// storedAppend reads the result logged under key through tx.
func (s *LedgerServiceImpl) storedAppend(ctx context.Context, tx pgx.Tx, key string) (*ports.AppendResult, error) {
	l, err := s.idempRepo.Get(ctx, tx, key)
	if err != nil {
		return nil, storeError("get idempotency log", err)
	}
	if l == nil {
		return nil, nil
	}
	var res ports.AppendResult
	if err := json.Unmarshal(l.ResponseJSON, &res); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decode idempotency log %s: %w", key, err))
	}
	return &res, nil
}

func (s *LedgerServiceImpl) auditRecord(ctx context.Context, action domain.AuditAction, actor string, rec *domain.Record) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(rec)
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        actor,
		Action:       action,
		ResourceType: "record",
		ResourceID:   rec.ID.String(),
		Details:      string(details),
		CreatedAt:    s.now(),
	})
}

// idempotencyKey scopes a client key to the actor that sent it, so two
// operators reusing a key never see each other's result.
func idempotencyKey(actor, key string) string {
	if actor == "" {
		return idempotencyKeyPrefix + key
	}
	return idempotencyKeyPrefix + actor + ":" + key
}

// involvedAccounts lists the distinct, non-empty account handles of req.
func involvedAccounts(req ports.AppendRequest) []string {
	var handles []string
	for _, h := range []string{req.Account, req.DestAccount} {
		h = strings.TrimSpace(h)
		if h == "" || (len(handles) > 0 && handles[0] == h) {
			continue
		}
		handles = append(handles, h)
	}
	return handles
}

// runInTx begins a transaction on transactor, runs fn and commits. The
// transaction is rolled back on every path that does not commit.
func runInTx(ctx context.Context, transactor ports.DBTransactor, fn func(tx pgx.Tx) error) error {
	tx, err := transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeError("commit tx", err)
	}
	return nil
}

// storeError translates a repository failure. Idempotency conflicts pass
// through for Append to replay. Other uniqueness violations can only come
// from the one-onboard-per-pair rule, and a numeric overflow means the amount
// does not fit the store. Everything else leaves the unit of work rolled back
// and is reported as the store being unavailable.
func storeError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ports.ErrIdempotencyConflict) {
		return err
	}
	if errors.Is(err, ports.ErrDuplicate) {
		return apperror.ErrDuplicateOnboard()
	}
	if errors.Is(err, ports.ErrOutOfRange) {
		return apperror.ErrNotANumber("amount")
	}
	return apperror.ErrStoreUnavailable(fmt.Errorf("%s: %w", op, err))
}
