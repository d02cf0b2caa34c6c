package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is, or wraps, an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// Error codes.
const (
	CodeNotFound          = "LDG_001"
	CodeNotANumber        = "LDG_002"
	CodeDuplicateOnboard  = "LDG_003"
	CodeNotOnboarded      = "LDG_004"
	CodeSameCurrency      = "LDG_005"
	CodeSameAccount       = "LDG_006"
	CodeAmountTooSmall    = "LDG_007"
	CodeInsufficientFunds = "LDG_008"
	CodeAutoOnboardFailed = "LDG_009"
	CodeNegativeBalance   = "LDG_010"
	CodeNoRecords         = "LDG_011"
	CodeNotLatestRecord   = "LDG_012"
	CodeUnknownCurrency   = "LDG_013"
	CodeFieldNotAllowed   = "LDG_014"
	CodeUnknownKind       = "LDG_015"
	CodeCorruptRecord     = "LDG_016"

	CodeInUse         = "CAT_001"
	CodeAlreadyExists = "CAT_002"
	CodeValidation    = "CAT_003"

	CodeStoreUnavailable = "SYS_001"
	CodeInternal         = "SYS_002"

	CodeInvalidToken      = "AUTH_001"
	CodeRateLimitExceeded = "RATE_001"
)

// ---- Ledger consistency (LDG) ----

// ErrNotFound reports a referenced id field that is absent from its catalog.
func ErrNotFound(field string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", field), http.StatusNotFound)
}

// ErrNotANumber reports an amount field that does not parse as a decimal.
// Id fields get a different wording so clients can tell the two apart.
func ErrNotANumber(field string) *AppError {
	if field == "amount" {
		return New(CodeNotANumber, "amount must be a decimal number", http.StatusBadRequest)
	}
	return New(CodeNotANumber, fmt.Sprintf("%s must be a valid id", field), http.StatusBadRequest)
}

func ErrDuplicateOnboard() *AppError {
	return New(CodeDuplicateOnboard, "currency already onboarded on account", http.StatusConflict)
}

func ErrNotOnboarded(what string) *AppError {
	return New(CodeNotOnboarded, fmt.Sprintf("%s is not onboarded", what), http.StatusUnprocessableEntity)
}

func ErrSameCurrency() *AppError {
	return New(CodeSameCurrency, "source and destination currency must differ", http.StatusBadRequest)
}

func ErrSameAccount() *AppError {
	return New(CodeSameAccount, "source and destination account must differ", http.StatusBadRequest)
}

func ErrAmountTooSmall(min string) *AppError {
	return New(CodeAmountTooSmall, fmt.Sprintf("amount must be at least %s", min), http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance", http.StatusUnprocessableEntity)
}

func ErrAutoOnboardFailed(err error) *AppError {
	return Wrap(CodeAutoOnboardFailed, "automatic onboarding of destination failed", http.StatusConflict, err)
}

func ErrNegativeBalance(account string) *AppError {
	return New(CodeNegativeBalance, fmt.Sprintf("account %s has a negative balance", account), http.StatusConflict)
}

func ErrNoRecords(account string) *AppError {
	return New(CodeNoRecords, fmt.Sprintf("account %s has no records", account), http.StatusNotFound)
}

func ErrNotLatestRecord() *AppError {
	return New(CodeNotLatestRecord, "record is not the latest for every account it references", http.StatusConflict)
}

func ErrUnknownCurrency(code string) *AppError {
	return New(CodeUnknownCurrency, fmt.Sprintf("unknown currency %s", code), http.StatusNotFound)
}

func ErrFieldNotAllowed(field string) *AppError {
	return New(CodeFieldNotAllowed, fmt.Sprintf("%s is not allowed for this record kind", field), http.StatusBadRequest)
}

func ErrUnknownKind(kind string) *AppError {
	return New(CodeUnknownKind, fmt.Sprintf("unknown record kind %q", kind), http.StatusBadRequest)
}

// ErrCorruptRecord reports a stored record the projector cannot interpret.
// position is 1-based within the replayed sequence.
func ErrCorruptRecord(position int, err error) *AppError {
	return Wrap(CodeCorruptRecord, fmt.Sprintf("record #%d cannot be replayed", position), http.StatusInternalServerError, err)
}

// ---- Catalog (CAT) ----

func ErrInUse(entity string) *AppError {
	return New(CodeInUse, fmt.Sprintf("%s is referenced by ledger records", entity), http.StatusConflict)
}

func ErrAlreadyExists(entity string) *AppError {
	return New(CodeAlreadyExists, fmt.Sprintf("%s already exists", entity), http.StatusConflict)
}

// Validation returns a CAT_003 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStoreUnavailable wraps a persistence failure. The unit of work that
// produced it has been rolled back.
func ErrStoreUnavailable(err error) *AppError {
	return Wrap(CodeStoreUnavailable, "Ledger store unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_002 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
