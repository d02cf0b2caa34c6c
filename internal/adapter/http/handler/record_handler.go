package handler

import (
	"strings"

	"currency-ledger/internal/adapter/http/dto"
	"currency-ledger/internal/adapter/http/middleware"
	"currency-ledger/internal/core/ports"
	"currency-ledger/pkg/apperror"
	"currency-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RecordHandler handles ledger record endpoints.
type RecordHandler struct {
	ledger ports.LedgerService
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(ledger ports.LedgerService) *RecordHandler {
	return &RecordHandler{ledger: ledger}
}

// Append handles POST /api/v1/records.
func (h *RecordHandler) Append(c *gin.Context) {
	var req dto.AppendRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.ledger.Append(c.Request.Context(), ports.AppendRequest{
		Kind:           req.Kind,
		Account:        req.Account,
		DestAccount:    req.DestAccount,
		Currency:       req.Currency,
		DestCurrency:   req.DestCurrency,
		Amount:         string(req.Amount),
		IdempotencyKey: strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)),
		Actor:          middleware.Actor(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToAppendRecordResponse(result))
}

// Get handles GET /api/v1/records/:id.
func (h *RecordHandler) Get(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	rec, err := h.ledger.GetRecord(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToRecordResponse(*rec))
}

// Retract handles DELETE /api/v1/records/:id and returns the removed record.
func (h *RecordHandler) Retract(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	rec, err := h.ledger.Retract(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToRecordResponse(*rec))
}

func recordID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotANumber("record_id"))
		return uuid.Nil, false
	}
	return id, true
}
