package port

import "context"

// HealthChecker is implemented by backing services that can be probed for readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
