package handler

import (
	"time"

	"currency-ledger/internal/adapter/http/dto"
	"currency-ledger/internal/adapter/http/middleware"
	"currency-ledger/internal/core/ports"
	"currency-ledger/pkg/apperror"
	"currency-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles account catalog and per-account ledger views.
type AccountHandler struct {
	ledger  ports.LedgerService
	catalog ports.CatalogService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger ports.LedgerService, catalog ports.CatalogService) *AccountHandler {
	return &AccountHandler{ledger: ledger, catalog: catalog}
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	openedAt, err := time.Parse(dto.DateLayout, req.OpenedAt)
	if err != nil {
		response.Error(c, apperror.Validation("opened_at must be a date in YYYY-MM-DD form"))
		return
	}

	account, err := h.catalog.CreateAccount(c.Request.Context(), ports.CreateAccountRequest{
		Handle:   req.Handle,
		OpenedAt: openedAt,
		Actor:    middleware.Actor(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToAccountResponse(*account))
}

// List handles GET /api/v1/accounts.
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.catalog.ListAccounts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, dto.ToAccountResponse(a))
	}
	response.OK(c, items)
}

// Delete handles DELETE /api/v1/accounts/:handle.
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.catalog.DeleteAccount(c.Request.Context(), c.Param("handle"), middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Records handles GET /api/v1/accounts/:handle/records.
func (h *AccountHandler) Records(c *gin.Context) {
	records, err := h.ledger.ListRecords(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToRecordListResponse(records))
}

// Balance handles GET /api/v1/accounts/:handle/balance[?currency=CODE].
func (h *AccountHandler) Balance(c *gin.Context) {
	report, err := h.ledger.Balance(c.Request.Context(), c.Param("handle"), c.Query("currency"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToBalanceResponse(report))
}
