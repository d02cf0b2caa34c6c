package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"currency-ledger/internal/adapter/http/middleware"
	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"
	"currency-ledger/internal/core/ports/mocks"
	"currency-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var handlerNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type handlerDeps struct {
	ledger  *mocks.MockLedgerService
	catalog *mocks.MockCatalogService
	router  *gin.Engine
}

// newHandlerDeps routes every endpoint with the acting operator fixed to "ops".
func newHandlerDeps(t *testing.T) *handlerDeps {
	ctrl := gomock.NewController(t)
	d := &handlerDeps{
		ledger:  mocks.NewMockLedgerService(ctrl),
		catalog: mocks.NewMockCatalogService(ctrl),
	}

	records := NewRecordHandler(d.ledger)
	accounts := NewAccountHandler(d.ledger, d.catalog)
	currencies := NewCurrencyHandler(d.catalog)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxActor, "ops")
		c.Next()
	})
	r.POST("/records", records.Append)
	r.GET("/records/:id", records.Get)
	r.DELETE("/records/:id", records.Retract)
	r.GET("/accounts", accounts.List)
	r.POST("/accounts", accounts.Create)
	r.DELETE("/accounts/:handle", accounts.Delete)
	r.GET("/accounts/:handle/records", accounts.Records)
	r.GET("/accounts/:handle/balance", accounts.Balance)
	r.GET("/currencies", currencies.List)
	r.POST("/currencies", currencies.Create)
	r.PUT("/currencies/:code", currencies.UpdatePrice)
	r.DELETE("/currencies/:code", currencies.Delete)
	d.router = r
	return d
}

func (d *handlerDeps) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func transferRecord() domain.Record {
	rec := domain.NewRecord(domain.Transfer{From: "alice", To: "bobby", Currency: "USD", Amount: decimal.RequireFromString("12.5")}, handlerNow)
	rec.Seq = 3
	return rec
}

// ==================== Records ====================

func TestAppend_Success(t *testing.T) {
	d := newHandlerDeps(t)
	rec := transferRecord()
	auto := domain.NewRecord(domain.Onboard{Account: "bobby", Currency: "USD", Amount: decimal.Zero}, handlerNow)

	d.ledger.EXPECT().Append(gomock.Any(), ports.AppendRequest{
		Kind:           "transfer",
		Account:        "alice",
		DestAccount:    "bobby",
		Currency:       "USD",
		Amount:         "12.5",
		IdempotencyKey: "retry-1",
		Actor:          "ops",
	}).Return(&ports.AppendResult{Record: rec, AutoOnboarded: &auto}, nil)

	w := d.do(http.MethodPost, "/records",
		`{"kind":"transfer","account":" alice ","dest_account":"bobby","currency":"USD","amount":12.5}`,
		middleware.HeaderIdempotencyKey, "retry-1")

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	record := data["record"].(map[string]interface{})
	assert.Equal(t, rec.ID.String(), record["id"])
	assert.Equal(t, "TRANSFER", record["kind"])
	assert.Equal(t, "12.5", record["amount"])
	assert.Equal(t, "bobby", record["dest_account"])
	assert.NotContains(t, record, "dest_currency")
	assert.Equal(t, "ONBOARD", data["auto_onboarded"].(map[string]interface{})["kind"])
}

func TestAppend_StringAmountKeepsPrecision(t *testing.T) {
	d := newHandlerDeps(t)
	rec := transferRecord()

	d.ledger.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.AppendRequest) (*ports.AppendResult, error) {
			assert.Equal(t, "0.100000000000000000001", req.Amount)
			assert.Empty(t, req.IdempotencyKey)
			return &ports.AppendResult{Record: rec}, nil
		})

	w := d.do(http.MethodPost, "/records", `{"kind":"swap","account":"alice","currency":"USD","dest_currency":"EUR","amount":"0.100000000000000000001"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, decodeData(t, w), "auto_onboarded")
}

func TestAppend_MalformedJSON(t *testing.T) {
	d := newHandlerDeps(t)

	w := d.do(http.MethodPost, "/records", `{"kind":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeErrorCode(t, w))
}

func TestAppend_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient funds", apperror.ErrInsufficientFunds(), http.StatusUnprocessableEntity, apperror.CodeInsufficientFunds},
		{"not a number", apperror.ErrNotANumber("amount"), http.StatusBadRequest, apperror.CodeNotANumber},
		{"duplicate onboard", apperror.ErrDuplicateOnboard(), http.StatusConflict, apperror.CodeDuplicateOnboard},
		{"store down", apperror.ErrStoreUnavailable(errors.New("conn reset")), http.StatusServiceUnavailable, apperror.CodeStoreUnavailable},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "SYS_002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newHandlerDeps(t)
			d.ledger.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := d.do(http.MethodPost, "/records", `{"kind":"onboard","account":"alice","currency":"USD"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeErrorCode(t, w))
		})
	}
}

func TestGetRecord(t *testing.T) {
	d := newHandlerDeps(t)
	rec := transferRecord()

	d.ledger.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(&rec, nil)

	w := d.do(http.MethodGet, "/records/"+rec.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeData(t, w)["seq"])
}

func TestGetRecord_InvalidID(t *testing.T) {
	d := newHandlerDeps(t)

	w := d.do(http.MethodGet, "/records/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeNotANumber, decodeErrorCode(t, w))
}

func TestGetRecord_NotFound(t *testing.T) {
	d := newHandlerDeps(t)
	id := uuid.New()

	d.ledger.EXPECT().GetRecord(gomock.Any(), id).Return(nil, apperror.ErrNotFound("record_id"))

	w := d.do(http.MethodGet, "/records/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetract(t *testing.T) {
	d := newHandlerDeps(t)
	rec := transferRecord()

	d.ledger.EXPECT().Retract(gomock.Any(), rec.ID, "ops").Return(&rec, nil)

	w := d.do(http.MethodDelete, "/records/"+rec.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rec.ID.String(), decodeData(t, w)["id"])
}

func TestRetract_NotLatest(t *testing.T) {
	d := newHandlerDeps(t)
	id := uuid.New()

	d.ledger.EXPECT().Retract(gomock.Any(), id, "ops").Return(nil, apperror.ErrNotLatestRecord())

	w := d.do(http.MethodDelete, "/records/"+id.String(), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeNotLatestRecord, decodeErrorCode(t, w))
}

// ==================== Accounts ====================

func TestBalance_Breakdown(t *testing.T) {
	d := newHandlerDeps(t)

	d.ledger.EXPECT().Balance(gomock.Any(), "alice", "").Return(&domain.BalanceReport{
		Account: "alice",
		Balances: domain.Balance{
			"USD": decimal.RequireFromString("900"),
			"EUR": decimal.RequireFromString("50"),
		},
	}, nil)

	w := d.do(http.MethodGet, "/accounts/alice/balance", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, map[string]interface{}{"USD": "900", "EUR": "50"}, data["balances"])
	assert.NotContains(t, data, "total")
}

func TestBalance_Total(t *testing.T) {
	d := newHandlerDeps(t)
	total := decimal.RequireFromString("1000")

	d.ledger.EXPECT().Balance(gomock.Any(), "alice", "USD").Return(&domain.BalanceReport{
		Account:  "alice",
		Currency: "USD",
		Total:    &total,
	}, nil)

	w := d.do(http.MethodGet, "/accounts/alice/balance?currency=USD", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "1000", data["total"])
	assert.Equal(t, "USD", data["currency"])
	assert.NotContains(t, data, "balances")
}

func TestBalance_NoRecords(t *testing.T) {
	d := newHandlerDeps(t)

	d.ledger.EXPECT().Balance(gomock.Any(), "carol", "").Return(nil, apperror.ErrNoRecords("carol"))

	w := d.do(http.MethodGet, "/accounts/carol/balance", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNoRecords, decodeErrorCode(t, w))
}

func TestAccountRecords(t *testing.T) {
	d := newHandlerDeps(t)

	d.ledger.EXPECT().ListRecords(gomock.Any(), "alice").Return([]domain.Record{transferRecord()}, nil)

	w := d.do(http.MethodGet, "/accounts/alice/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["total"])
	assert.Len(t, data["items"], 1)
}

func TestAccountRecords_Empty(t *testing.T) {
	d := newHandlerDeps(t)

	d.ledger.EXPECT().ListRecords(gomock.Any(), "alice").Return(nil, nil)

	w := d.do(http.MethodGet, "/accounts/alice/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decodeData(t, w)["items"])
}

func TestCreateAccount(t *testing.T) {
	d := newHandlerDeps(t)
	opened := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)

	d.catalog.EXPECT().CreateAccount(gomock.Any(), ports.CreateAccountRequest{
		Handle:   "alice",
		OpenedAt: opened,
		Actor:    "ops",
	}).Return(&domain.Account{Handle: "alice", OpenedAt: opened, CreatedAt: handlerNow}, nil)

	w := d.do(http.MethodPost, "/accounts", `{"handle":"alice","opened_at":"1990-05-01"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "alice", data["handle"])
	assert.Equal(t, "1990-05-01", data["opened_at"])
}

func TestCreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"short handle", `{"handle":"bob","opened_at":"1990-05-01"}`},
		{"missing opened_at", `{"handle":"alice"}`},
		{"bad date", `{"handle":"alice","opened_at":"05/01/1990"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newHandlerDeps(t)
			w := d.do(http.MethodPost, "/accounts", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apperror.CodeValidation, decodeErrorCode(t, w))
		})
	}
}

func TestListAccounts(t *testing.T) {
	d := newHandlerDeps(t)

	d.catalog.EXPECT().ListAccounts(gomock.Any()).Return([]domain.Account{{Handle: "alice"}, {Handle: "bobby"}}, nil)

	w := d.do(http.MethodGet, "/accounts", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "bobby", resp.Data[1]["handle"])
}

func TestDeleteAccount(t *testing.T) {
	d := newHandlerDeps(t)

	d.catalog.EXPECT().DeleteAccount(gomock.Any(), "alice", "ops").Return(nil)
	d.catalog.EXPECT().DeleteAccount(gomock.Any(), "bobby", "ops").Return(apperror.ErrInUse("account"))

	assert.Equal(t, http.StatusNoContent, d.do(http.MethodDelete, "/accounts/alice", "").Code)

	w := d.do(http.MethodDelete, "/accounts/bobby", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeInUse, decodeErrorCode(t, w))
}

// ==================== Currencies ====================

func TestCreateCurrency(t *testing.T) {
	d := newHandlerDeps(t)

	d.catalog.EXPECT().CreateCurrency(gomock.Any(), ports.CreateCurrencyRequest{
		Code:     "eur",
		USDPrice: "1.08",
		Actor:    "ops",
	}).Return(&domain.Currency{Code: "EUR", USDPrice: decimal.RequireFromString("1.08"), CreatedAt: handlerNow, UpdatedAt: handlerNow}, nil)

	w := d.do(http.MethodPost, "/currencies", `{"code":"eur","usd_price":1.08}`)
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "EUR", data["code"])
	assert.Equal(t, "1.08", data["usd_price"])
}

func TestCreateCurrency_Validation(t *testing.T) {
	for _, body := range []string{`{"code":"EURO1","usd_price":"1"}`, `{"code":"EUR"}`, `{}`} {
		d := newHandlerDeps(t)
		w := d.do(http.MethodPost, "/currencies", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestCreateCurrency_Duplicate(t *testing.T) {
	d := newHandlerDeps(t)

	d.catalog.EXPECT().CreateCurrency(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrAlreadyExists("currency"))

	w := d.do(http.MethodPost, "/currencies", `{"code":"USD","usd_price":"1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeAlreadyExists, decodeErrorCode(t, w))
}

func TestUpdateCurrencyPrice(t *testing.T) {
	d := newHandlerDeps(t)

	d.catalog.EXPECT().UpdateCurrencyPrice(gomock.Any(), "EUR", "4", "ops").
		Return(&domain.Currency{Code: "EUR", USDPrice: decimal.NewFromInt(4)}, nil)

	w := d.do(http.MethodPut, "/currencies/EUR", `{"usd_price":"4"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", decodeData(t, w)["usd_price"])
}

func TestListAndDeleteCurrency(t *testing.T) {
	d := newHandlerDeps(t)

	d.catalog.EXPECT().ListCurrencies(gomock.Any()).Return([]domain.Currency{{Code: "USD", USDPrice: decimal.NewFromInt(1)}}, nil)
	d.catalog.EXPECT().DeleteCurrency(gomock.Any(), "GBP", "ops").Return(nil)
	d.catalog.EXPECT().DeleteCurrency(gomock.Any(), "XYZ", "ops").Return(apperror.ErrNotFound("currency"))

	assert.Equal(t, http.StatusOK, d.do(http.MethodGet, "/currencies", "").Code)
	assert.Equal(t, http.StatusNoContent, d.do(http.MethodDelete, "/currencies/GBP", "").Code)
	assert.Equal(t, http.StatusNotFound, d.do(http.MethodDelete, "/currencies/XYZ", "").Code)
}

// ==================== Health & docs ====================

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	rd := mocks.NewMockHealthChecker(ctrl)

	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rd.EXPECT().Name().Return("redis").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil).Times(2)
	rd.EXPECT().Ping(gomock.Any()).Return(nil)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	r := gin.New()
	r.GET("/health", HealthCheck(pg, rd))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestSwagger(t *testing.T) {
	r := gin.New()
	r.GET("/empty", SwaggerSpec(nil))
	r.GET("/spec", SwaggerSpec([]byte("openapi: 3.0.3\n")))
	r.GET("/ui", SwaggerUI)

	for path, want := range map[string]int{"/empty": 404, "/spec": 200, "/ui": 200} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}
