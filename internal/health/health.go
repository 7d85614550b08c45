// Package health reports readiness (database and policy engine) over HTTP and the
// standard grpc.health.v1 service.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusSkipped  = "skipped"

	checkTimeout = 2 * time.Second
)

// Pinger is used for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Report is the readiness result served on /healthz.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// OK reports whether every dependency passed.
func (r Report) OK() bool { return r.Status == StatusOK }

// Checker probes the service's dependencies. Either dependency may be nil; it is then reported as skipped.
type Checker struct {
	db     Pinger
	policy PolicyChecker
}

// NewChecker returns a Checker.
func NewChecker(db Pinger, policy PolicyChecker) *Checker {
	return &Checker{db: db, policy: policy}
}

// Check runs each probe with a short timeout.
func (c *Checker) Check(ctx context.Context) Report {
	r := Report{Status: StatusOK, Checks: map[string]string{}}
	probe := func(name string, fn func(context.Context) error) {
		if fn == nil {
			r.Checks[name] = StatusSkipped
			return
		}
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := fn(pctx); err != nil {
			zap.L().Warn("health: check failed", zap.String("check", name), zap.Error(err))
			r.Checks[name] = err.Error()
			r.Status = StatusDegraded
			return
		}
		r.Checks[name] = StatusOK
	}
	var dbFn, policyFn func(context.Context) error
	if c.db != nil {
		dbFn = c.db.PingContext
	}
	if c.policy != nil {
		policyFn = c.policy.HealthCheck
	}
	probe("database", dbFn)
	probe("policy", policyFn)
	return r
}

// Sync runs Check once and publishes the result on hs for the overall server ("") and each named service.
func (c *Checker) Sync(ctx context.Context, hs *health.Server, services ...string) Report {
	r := c.Check(ctx)
	st := healthpb.HealthCheckResponse_SERVING
	if !r.OK() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
	for _, svc := range services {
		hs.SetServingStatus(svc, st)
	}
	return r
}

// Run calls Sync every interval until ctx is done.
func (c *Checker) Run(ctx context.Context, hs *health.Server, interval time.Duration, services ...string) {
	c.Sync(ctx, hs, services...)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sync(ctx, hs, services...)
		}
	}
}
