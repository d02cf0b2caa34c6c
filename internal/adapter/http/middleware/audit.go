package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditRejectedWrites records mutating requests turned away by
// authentication or rate limiting. Successful writes are audited by the
// services themselves.
func AuditRejectedWrites(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		status := c.Writer.Status()
		if status != http.StatusUnauthorized && status != http.StatusTooManyRequests {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"client_ip": c.ClientIP(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        Actor(c),
			Action:       domain.AuditActionWriteRejected,
			ResourceType: resourceType(c.FullPath()),
			ResourceID:   c.GetString(CtxRequestID),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func resourceType(route string) string {
	switch route {
	case "/api/v1/records", "/api/v1/records/:id":
		return "record"
	case "/api/v1/currencies", "/api/v1/currencies/:code":
		return "currency"
	case "/api/v1/accounts", "/api/v1/accounts/:handle":
		return "account"
	}
	return "request"
}
