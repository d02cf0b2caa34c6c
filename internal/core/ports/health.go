package ports

import "context"

// HealthChecker probes one backing dependency of the ledger: the record
// store or the Redis cache. Ping returns nil when the dependency can serve.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
