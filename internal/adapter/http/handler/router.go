package handler

import (
	"currency-ledger/internal/adapter/http/middleware"
	"currency-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	CatalogSvc     ports.CatalogService
	TokenSvc       ports.TokenService    // nil = mutating routes are open
	RateLimitStore ports.RateLimitStore  // nil = rate limiting disabled
	AuditSvc       ports.AuditService    // nil = rejected writes are not audited
	HealthCheckers []ports.HealthChecker
	OpenAPISpec    []byte
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditRejectedWrites(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec(deps.OpenAPISpec))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	auth := func(c *gin.Context) { c.Next() }
	if deps.TokenSvc != nil {
		auth = middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	}

	records := NewRecordHandler(deps.LedgerSvc)
	accounts := NewAccountHandler(deps.LedgerSvc, deps.CatalogSvc)
	currencies := NewCurrencyHandler(deps.CatalogSvc)

	v1 := r.Group("/api/v1")

	rec := v1.Group("/records")
	{
		rec.POST("", auth, rl("records_write"), records.Append)
		rec.GET("/:id", rl("read"), records.Get)
		rec.DELETE("/:id", auth, rl("records_write"), records.Retract)
	}

	acc := v1.Group("/accounts")
	{
		acc.GET("", rl("read"), accounts.List)
		acc.POST("", auth, rl("catalog_write"), accounts.Create)
		acc.DELETE("/:handle", auth, rl("catalog_write"), accounts.Delete)
		acc.GET("/:handle/records", rl("read"), accounts.Records)
		acc.GET("/:handle/balance", rl("read"), accounts.Balance)
	}

	cur := v1.Group("/currencies")
	{
		cur.GET("", rl("read"), currencies.List)
		cur.POST("", auth, rl("catalog_write"), currencies.Create)
		cur.PUT("/:code", auth, rl("catalog_write"), currencies.UpdatePrice)
		cur.DELETE("/:code", auth, rl("catalog_write"), currencies.Delete)
	}

	return r
}
