package handler

import (
	"context"
	"net/http"
	"time"

	"currency-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// healthProbeTimeout bounds each dependency probe so a hung store cannot
// stall the health endpoint.
const healthProbeTimeout = 2 * time.Second

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck probes every dependency and answers 503 "degraded" when any of
// them fails.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]dependencyStatus, len(checkers))
		status, code := "healthy", http.StatusOK

		for _, checker := range checkers {
			if err := probe(c.Request.Context(), checker); err != nil {
				deps[checker.Name()] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			deps[checker.Name()] = dependencyStatus{Status: "healthy"}
		}

		c.JSON(code, gin.H{"status": status, "dependencies": deps})
	}
}

func probe(ctx context.Context, checker ports.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	return checker.Ping(ctx)
}
