package handler

import (
	"currency-ledger/internal/adapter/http/dto"
	"currency-ledger/internal/adapter/http/middleware"
	"currency-ledger/internal/core/ports"
	"currency-ledger/pkg/apperror"
	"currency-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// CurrencyHandler handles currency catalog endpoints.
type CurrencyHandler struct {
	catalog ports.CatalogService
}

// NewCurrencyHandler creates a new CurrencyHandler.
func NewCurrencyHandler(catalog ports.CatalogService) *CurrencyHandler {
	return &CurrencyHandler{catalog: catalog}
}

// Create handles POST /api/v1/currencies.
func (h *CurrencyHandler) Create(c *gin.Context) {
	var req dto.CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	currency, err := h.catalog.CreateCurrency(c.Request.Context(), ports.CreateCurrencyRequest{
		Code:     req.Code,
		USDPrice: string(req.USDPrice),
		Actor:    middleware.Actor(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToCurrencyResponse(*currency))
}

// List handles GET /api/v1/currencies.
func (h *CurrencyHandler) List(c *gin.Context) {
	currencies, err := h.catalog.ListCurrencies(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.CurrencyResponse, 0, len(currencies))
	for _, cur := range currencies {
		items = append(items, dto.ToCurrencyResponse(cur))
	}
	response.OK(c, items)
}

// UpdatePrice handles PUT /api/v1/currencies/:code.
func (h *CurrencyHandler) UpdatePrice(c *gin.Context) {
	var req dto.UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	currency, err := h.catalog.UpdateCurrencyPrice(c.Request.Context(), c.Param("code"), string(req.USDPrice), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToCurrencyResponse(*currency))
}

// Delete handles DELETE /api/v1/currencies/:code.
func (h *CurrencyHandler) Delete(c *gin.Context) {
	if err := h.catalog.DeleteCurrency(c.Request.Context(), c.Param("code"), middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
