package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"
	"currency-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CatalogServiceImpl implements ports.CatalogService.
type CatalogServiceImpl struct {
	currencies ports.CurrencyRepository
	accounts   ports.AccountRepository
	records    ports.RecordRepository
	audit      ports.AuditService
	now        func() time.Time
	log        zerolog.Logger
}

// NewCatalogService creates a new CatalogServiceImpl. audit may be nil.
func NewCatalogService(
	currencies ports.CurrencyRepository,
	accounts ports.AccountRepository,
	records ports.RecordRepository,
	audit ports.AuditService,
	log zerolog.Logger,
) *CatalogServiceImpl {
	return &CatalogServiceImpl{
		currencies: currencies,
		accounts:   accounts,
		records:    records,
		audit:      audit,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// ==================== Currencies ====================

func (s *CatalogServiceImpl) CreateCurrency(ctx context.Context, req ports.CreateCurrencyRequest) (*domain.Currency, error) {
	code := domain.NormalizeCurrencyCode(req.Code)
	if !domain.ValidCurrencyCode(code) {
		return nil, apperror.Validation("code must be 3 to 4 letters")
	}
	price, err := parsePrice(req.USDPrice)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &domain.Currency{Code: code, USDPrice: price, CreatedAt: now, UpdatedAt: now}
	if err := s.currencies.Create(ctx, c); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyExists("currency " + code)
		}
		return nil, priceStoreError("create currency", err)
	}

	s.auditCatalog(ctx, domain.AuditActionCurrencyCreate, req.Actor, "currency", code, price.String())
	s.log.Info().Str("code", code).Str("usd_price", price.String()).Msg("currency created")
	return c, nil
}

// UpdateCurrencyPrice replaces the current USD quote of code. Existing swaps
// are projected at the new price from now on.
func (s *CatalogServiceImpl) UpdateCurrencyPrice(ctx context.Context, code, usdPrice, actor string) (*domain.Currency, error) {
	code = domain.NormalizeCurrencyCode(code)
	price, err := parsePrice(usdPrice)
	if err != nil {
		return nil, err
	}

	c, err := s.currencies.UpdatePrice(ctx, code, price, s.now())
	if err != nil {
		return nil, priceStoreError("update currency price", err)
	}
	if c == nil {
		return nil, apperror.ErrNotFound("currency")
	}

	s.auditCatalog(ctx, domain.AuditActionCurrencyReprice, actor, "currency", code, price.String())
	return c, nil
}

// DeleteCurrency removes a currency no record references.
func (s *CatalogServiceImpl) DeleteCurrency(ctx context.Context, code, actor string) error {
	code = domain.NormalizeCurrencyCode(code)

	used, err := s.records.ExistsForCurrency(ctx, code)
	if err != nil {
		return storeError("check currency usage", err)
	}
	if used {
		return apperror.ErrInUse("currency " + code)
	}

	deleted, err := s.currencies.Delete(ctx, code)
	if err != nil {
		if errors.Is(err, ports.ErrReferenced) {
			return apperror.ErrInUse("currency " + code)
		}
		return storeError("delete currency", err)
	}
	if !deleted {
		return apperror.ErrNotFound("currency")
	}

	s.auditCatalog(ctx, domain.AuditActionCurrencyDelete, actor, "currency", code, "")
	return nil
}

func (s *CatalogServiceImpl) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	list, err := s.currencies.List(ctx, nil)
	if err != nil {
		return nil, storeError("list currencies", err)
	}
	return list, nil
}

// ==================== Accounts ====================

func (s *CatalogServiceImpl) CreateAccount(ctx context.Context, req ports.CreateAccountRequest) (*domain.Account, error) {
	handle := strings.TrimSpace(req.Handle)
	if !domain.ValidHandle(handle) {
		return nil, apperror.Validation(fmt.Sprintf("handle must be %d to %d characters", domain.HandleMinLen, domain.HandleMaxLen))
	}
	if req.OpenedAt.IsZero() {
		return nil, apperror.Validation("opened_at is required")
	}
	now := s.now()
	if !domain.OpenedLongEnoughAgo(req.OpenedAt, now) {
		return nil, apperror.Validation(fmt.Sprintf("account must have been opened at least %d years ago", domain.MinAccountAgeYears))
	}

	a := &domain.Account{Handle: handle, OpenedAt: req.OpenedAt.UTC(), CreatedAt: now}
	if err := s.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyExists("account " + handle)
		}
		return nil, storeError("create account", err)
	}

	s.auditCatalog(ctx, domain.AuditActionAccountCreate, req.Actor, "account", handle, "")
	s.log.Info().Str("handle", handle).Msg("account created")
	return a, nil
}

// DeleteAccount removes an account no record references.
func (s *CatalogServiceImpl) DeleteAccount(ctx context.Context, handle, actor string) error {
	handle = strings.TrimSpace(handle)

	used, err := s.records.ExistsForAccount(ctx, handle)
	if err != nil {
		return storeError("check account usage", err)
	}
	if used {
		return apperror.ErrInUse("account " + handle)
	}

	deleted, err := s.accounts.Delete(ctx, handle)
	if err != nil {
		if errors.Is(err, ports.ErrReferenced) {
			return apperror.ErrInUse("account " + handle)
		}
		return storeError("delete account", err)
	}
	if !deleted {
		return apperror.ErrNotFound("account")
	}

	s.auditCatalog(ctx, domain.AuditActionAccountDelete, actor, "account", handle, "")
	return nil
}

func (s *CatalogServiceImpl) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	list, err := s.accounts.List(ctx)
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	return list, nil
}

func (s *CatalogServiceImpl) auditCatalog(ctx context.Context, action domain.AuditAction, actor, resourceType, id, details string) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   id,
		CreatedAt:    s.now(),
	}
	if details != "" {
		entry.Details = fmt.Sprintf(`{"usd_price":%q}`, details)
	}
	s.audit.Log(ctx, entry)
}

// priceStoreError reports a price the store cannot represent as invalid input.
func priceStoreError(op string, err error) error {
	if errors.Is(err, ports.ErrOutOfRange) {
		return apperror.Validation("usd_price is out of range")
	}
	return storeError(op, err)
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !price.IsPositive() {
		return decimal.Zero, apperror.Validation("usd_price must be a positive decimal")
	}
	if !domain.WithinBounds(price) {
		return decimal.Zero, apperror.Validation(fmt.Sprintf(
			"usd_price allows at most %d integer and %d fractional digits", domain.MaxIntegerDigits, domain.MaxFractionDigits))
	}
	return price, nil
}
