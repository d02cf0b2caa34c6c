package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"currency-ledger/internal/core/domain"
	"currency-ledger/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func auditRouter(auditSvc *mocks.MockAuditService, status int) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AuditRejectedWrites(auditSvc))
	handler := func(c *gin.Context) { c.Status(status) }
	r.POST("/api/v1/records", handler)
	r.DELETE("/api/v1/currencies/:code", handler)
	r.GET("/api/v1/records/:id", handler)
	return r
}

func TestAuditRejectedWrites_Unauthorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, log *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionWriteRejected, log.Action)
		assert.Equal(t, "record", log.ResourceType)
		assert.Equal(t, "req-7", log.ResourceID)
		assert.Contains(t, log.Details, `"status":401`)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", nil)
	req.Header.Set(HeaderRequestID, "req-7")
	w := httptest.NewRecorder()
	auditRouter(mockAudit, http.StatusUnauthorized).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditRejectedWrites_RateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, log *domain.AuditLog) {
		assert.Equal(t, "currency", log.ResourceType)
	})

	w := httptest.NewRecorder()
	auditRouter(mockAudit, http.StatusTooManyRequests).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/currencies/EUR", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAuditRejectedWrites_SkipsOtherOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"successful write", http.MethodPost, "/api/v1/records", http.StatusCreated},
		{"domain rejection", http.MethodPost, "/api/v1/records", http.StatusUnprocessableEntity},
		{"unauthorized read", http.MethodGet, "/api/v1/records/abc", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockAudit := mocks.NewMockAuditService(ctrl)

			w := httptest.NewRecorder()
			auditRouter(mockAudit, tt.status).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
