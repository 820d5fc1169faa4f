package ports

import "context"

// HealthChecker probes one dependency (database, cache) for the /health
// endpoint. A non-nil error means unhealthy.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
