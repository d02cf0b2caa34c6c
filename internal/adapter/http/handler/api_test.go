package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	httpHandler "currency-ledger/internal/adapter/http/handler"
	"currency-ledger/internal/adapter/http/middleware"
	"currency-ledger/internal/adapter/storage/memory"
	redisStorage "currency-ledger/internal/adapter/storage/redis"
	"currency-ledger/internal/core/ports"
	"currency-ledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp runs the real router, services and memory store, with miniredis
// behind the idempotency cache and rate limiter.
type testApp struct {
	server *httptest.Server
	store  *memory.Store
	redis  *miniredis.Miniredis
	token  string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	store := memory.NewStore(5 * time.Second)
	currencies := memory.NewCurrencyRepo(store)
	accounts := memory.NewAccountRepo(store)
	records := memory.NewRecordRepo(store)
	auditSvc := service.NewAuditService(memory.NewAuditRepo(store), log)

	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", time.Hour, "test-ledger")
	token, _, err := tokenSvc.Generate("ops")
	require.NoError(t, err)

	ledgerSvc := service.NewLedgerService(
		records, currencies, accounts,
		memory.NewIdempotencyRepo(store),
		redisStorage.NewIdempotencyCache(rdb),
		auditSvc,
		memory.NewTransactor(store),
		time.Hour,
		log,
	)
	catalogSvc := service.NewCatalogService(currencies, accounts, records, auditSvc, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		CatalogSvc:     catalogSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		AuditSvc:       auditSvc,
		HealthCheckers: []ports.HealthChecker{memory.HealthCheck{}, redisStorage.NewHealthCheck(rdb)},
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{server: server, store: store, redis: mr, token: token}
}

type apiResponse struct {
	Status    int
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func (a *testApp) call(t *testing.T, method, path string, body interface{}, headers ...string) apiResponse {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := apiResponse{Status: resp.StatusCode}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return out
}

func (a *testApp) mustCall(t *testing.T, want int, method, path string, body interface{}, headers ...string) json.RawMessage {
	t.Helper()
	resp := a.call(t, method, path, body, headers...)
	require.Equalf(t, want, resp.Status, "%s %s -> %s", method, path, resp.ErrorCode)
	return resp.Data
}

// seed creates USD (1), EUR (2) and the accounts alice and bobby.
func (a *testApp) seed(t *testing.T) {
	t.Helper()
	a.mustCall(t, 201, "POST", "/api/v1/currencies", map[string]string{"code": "USD", "usd_price": "1"})
	a.mustCall(t, 201, "POST", "/api/v1/currencies", map[string]string{"code": "EUR", "usd_price": "2"})
	a.mustCall(t, 201, "POST", "/api/v1/accounts", map[string]string{"handle": "alice", "opened_at": "1990-01-01"})
	a.mustCall(t, 201, "POST", "/api/v1/accounts", map[string]string{"handle": "bobby", "opened_at": "1985-06-30"})
}

type recordView struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Amount string `json:"amount"`
}

type appendView struct {
	Record        recordView  `json:"record"`
	AutoOnboarded *recordView `json:"auto_onboarded"`
}

type balanceView struct {
	Total    *string           `json:"total"`
	Balances map[string]string `json:"balances"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestAPI_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestAPI_WritesRequireToken(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Post(app.server.URL+"/api/v1/currencies", "application/json",
		bytes.NewBufferString(`{"code":"USD","usd_price":"1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// reads stay open
	resp, err = http.Get(app.server.URL + "/api/v1/currencies")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Eventually(t, func() bool {
		return len(app.store.AuditLogs()) == 1
	}, time.Second, 10*time.Millisecond, "rejected write is audited")
}

func TestAPI_SwapScenario(t *testing.T) {
	app := newTestApp(t)
	app.seed(t)

	app.mustCall(t, 201, "POST", "/api/v1/records", map[string]string{"kind": "onboard", "account": "alice", "currency": "USD", "amount": "1000"})
	res := decode[appendView](t, app.mustCall(t, 201, "POST", "/api/v1/records",
		map[string]string{"kind": "swap", "account": "alice", "currency": "USD", "dest_currency": "EUR", "amount": "100"}))

	assert.Equal(t, "SWAP", res.Record.Kind)
	require.NotNil(t, res.AutoOnboarded, "EUR is onboarded with the swap")
	assert.Equal(t, "ONBOARD", res.AutoOnboarded.Kind)

	bal := decode[balanceView](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/alice/balance", nil))
	assert.Equal(t, map[string]string{"USD": "900", "EUR": "50"}, bal.Balances)

	total := decode[balanceView](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/alice/balance?currency=usd", nil))
	require.NotNil(t, total.Total)
	assert.Equal(t, "1000", *total.Total)

	// repricing EUR changes the replayed swap
	app.mustCall(t, 200, "PUT", "/api/v1/currencies/EUR", map[string]string{"usd_price": "4"})
	bal = decode[balanceView](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/alice/balance", nil))
	assert.Equal(t, "25", bal.Balances["EUR"])
}

func TestAPI_TransferAutoOnboardAndRetraction(t *testing.T) {
	app := newTestApp(t)
	app.seed(t)

	app.mustCall(t, 201, "POST", "/api/v1/records", map[string]string{"kind": "onboard", "account": "alice", "currency": "USD", "amount": "300"})
	res := decode[appendView](t, app.mustCall(t, 201, "POST", "/api/v1/records",
		map[string]interface{}{"kind": "transfer", "account": "alice", "dest_account": "bobby", "currency": "USD", "amount": 120.5}))
	require.NotNil(t, res.AutoOnboarded)

	bal := decode[balanceView](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/bobby/balance", nil))
	assert.Equal(t, "120.5", bal.Balances["USD"])

	// the auto-onboard is older than the transfer on bobby's history
	resp := app.call(t, "DELETE", "/api/v1/records/"+res.AutoOnboarded.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, "LDG_012", resp.ErrorCode)

	app.mustCall(t, 200, "DELETE", "/api/v1/records/"+res.Record.ID, nil)
	app.mustCall(t, 200, "DELETE", "/api/v1/records/"+res.AutoOnboarded.ID, nil)

	resp = app.call(t, "GET", "/api/v1/accounts/bobby/balance", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "LDG_011", resp.ErrorCode)

	bal = decode[balanceView](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/alice/balance", nil))
	assert.Equal(t, "300", bal.Balances["USD"])
}

func TestAPI_Rejections(t *testing.T) {
	app := newTestApp(t)
	app.seed(t)
	app.mustCall(t, 201, "POST", "/api/v1/records", map[string]string{"kind": "onboard", "account": "alice", "currency": "USD", "amount": "10"})

	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{"unknown kind", map[string]string{"kind": "mint", "account": "alice", "currency": "USD"}, "LDG_015"},
		{"duplicate onboard", map[string]string{"kind": "onboard", "account": "alice", "currency": "USD"}, "LDG_003"},
		{"unknown account", map[string]string{"kind": "onboard", "account": "nobody", "currency": "USD"}, "LDG_001"},
		{"bad amount", map[string]string{"kind": "transfer", "account": "alice", "dest_account": "bobby", "currency": "USD", "amount": "ten"}, "LDG_002"},
		{"amount out of bounds", map[string]string{"kind": "onboard", "account": "bobby", "currency": "EUR", "amount": "1e2000000000"}, "LDG_002"},
		{"too small", map[string]string{"kind": "transfer", "account": "alice", "dest_account": "bobby", "currency": "USD", "amount": "0.05"}, "LDG_007"},
		{"insufficient", map[string]string{"kind": "transfer", "account": "alice", "dest_account": "bobby", "currency": "USD", "amount": "10.01"}, "LDG_008"},
		{"same account", map[string]string{"kind": "transfer", "account": "alice", "dest_account": "alice", "currency": "USD", "amount": "1"}, "LDG_006"},
		{"same currency", map[string]string{"kind": "swap", "account": "alice", "currency": "USD", "dest_currency": "USD", "amount": "1"}, "LDG_005"},
		{"not onboarded", map[string]string{"kind": "swap", "account": "alice", "currency": "EUR", "dest_currency": "USD", "amount": "1"}, "LDG_004"},
		{"field not allowed", map[string]string{"kind": "onboard", "account": "alice", "currency": "EUR", "dest_account": "bobby"}, "LDG_014"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := app.call(t, "POST", "/api/v1/records", tt.body)
			assert.Equal(t, tt.code, resp.ErrorCode)
		})
	}

	records := decode[struct {
		Total int `json:"total"`
	}](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/alice/records", nil))
	assert.Equal(t, 1, records.Total, "rejected appends leave no records")
}

func TestAPI_IdempotentAppend(t *testing.T) {
	app := newTestApp(t)
	app.seed(t)

	body := map[string]string{"kind": "onboard", "account": "alice", "currency": "USD", "amount": "5"}
	first := decode[appendView](t, app.mustCall(t, 201, "POST", "/api/v1/records", body, middleware.HeaderIdempotencyKey, "req-1"))
	second := decode[appendView](t, app.mustCall(t, 201, "POST", "/api/v1/records", body, middleware.HeaderIdempotencyKey, "req-1"))

	assert.Equal(t, first.Record.ID, second.Record.ID)

	resp := app.call(t, "POST", "/api/v1/records", body, middleware.HeaderIdempotencyKey, "req-2")
	assert.Equal(t, "LDG_003", resp.ErrorCode)
}

func TestAPI_IdempotentAppendSurvivesRedisOutage(t *testing.T) {
	app := newTestApp(t)
	app.seed(t)
	app.mustCall(t, 201, "POST", "/api/v1/records", map[string]string{"kind": "onboard", "account": "alice", "currency": "USD", "amount": "100"})

	body := map[string]string{"kind": "transfer", "account": "alice", "dest_account": "bobby", "currency": "USD", "amount": "10"}
	app.redis.SetError("ERR simulated outage")
	first := decode[appendView](t, app.mustCall(t, 201, "POST", "/api/v1/records", body, middleware.HeaderIdempotencyKey, "req-3"))
	app.redis.SetError("")
	second := decode[appendView](t, app.mustCall(t, 201, "POST", "/api/v1/records", body, middleware.HeaderIdempotencyKey, "req-3"))

	assert.Equal(t, first.Record.ID, second.Record.ID)

	records := decode[struct {
		Total int `json:"total"`
	}](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/alice/records", nil))
	assert.Equal(t, 2, records.Total, "onboard plus a single transfer")
}

func TestAPI_CatalogReferences(t *testing.T) {
	app := newTestApp(t)
	app.seed(t)
	app.mustCall(t, 201, "POST", "/api/v1/records", map[string]string{"kind": "onboard", "account": "alice", "currency": "USD"})

	assert.Equal(t, "CAT_001", app.call(t, "DELETE", "/api/v1/currencies/USD", nil).ErrorCode)
	assert.Equal(t, "CAT_001", app.call(t, "DELETE", "/api/v1/accounts/alice", nil).ErrorCode)
	assert.Equal(t, "CAT_002", app.call(t, "POST", "/api/v1/currencies", map[string]string{"code": "USD", "usd_price": "1"}).ErrorCode)

	app.mustCall(t, 204, "DELETE", "/api/v1/currencies/EUR", nil)
	app.mustCall(t, 204, "DELETE", "/api/v1/accounts/bobby", nil)

	resp := app.call(t, "POST", "/api/v1/accounts", map[string]string{"handle": "young", "opened_at": time.Now().AddDate(-1, 0, 0).Format("2006-01-02")})
	assert.Equal(t, "CAT_003", resp.ErrorCode)
}

// TestAPI_ConcurrentTransfers fires more transfers than alice can fund at
// once. Per-account locking must admit exactly as many as the balance allows.
func TestAPI_ConcurrentTransfers(t *testing.T) {
	app := newTestApp(t)
	app.seed(t)

	app.mustCall(t, 201, "POST", "/api/v1/records", map[string]string{"kind": "onboard", "account": "alice", "currency": "USD", "amount": "1000"})
	app.mustCall(t, 201, "POST", "/api/v1/records", map[string]string{"kind": "onboard", "account": "bobby", "currency": "USD", "amount": "0"})

	const workers = 25
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		rejected  atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := app.call(t, "POST", "/api/v1/records", map[string]string{
				"kind": "transfer", "account": "alice", "dest_account": "bobby", "currency": "USD", "amount": "100",
			}, middleware.HeaderRequestID, fmt.Sprintf("transfer-%d", i))
			switch resp.Status {
			case http.StatusCreated:
				succeeded.Add(1)
			case http.StatusUnprocessableEntity:
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded.Load())
	assert.Equal(t, int64(workers-10), rejected.Load())

	alice := decode[balanceView](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/alice/balance", nil))
	bobby := decode[balanceView](t, app.mustCall(t, 200, "GET", "/api/v1/accounts/bobby/balance", nil))
	assert.Equal(t, "0", alice.Balances["USD"])
	assert.Equal(t, "1000", bobby.Balances["USD"])
}
