package tenant

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
)

// HeaderTenantID names the explicit tenant header.
const HeaderTenantID = "X-Tenant-ID"

// Method records which resolution step produced a tenant.
type Method string

const (
	MethodClaim     Method = "claim"
	MethodSubdomain Method = "subdomain"
	MethodHeader    Method = "header"
	MethodDefault   Method = "default"
)

// ResolverConfig configures the subdomain and default-tenant steps.
type ResolverConfig struct {
	// BaseDomain is the parent domain under which tenant subdomains live, e.g. "console.example.com".
	BaseDomain     string
	DefaultEnabled bool
	DefaultID      int64
}

// Resolver identifies the tenant a request targets.
type Resolver struct {
	repo Repository
	cfg  ResolverConfig
}

// NewResolver creates a tenant resolver.
func NewResolver(repo Repository, cfg ResolverConfig) *Resolver {
	cfg.BaseDomain = strings.Trim(strings.ToLower(cfg.BaseDomain), ".")
	return &Resolver{repo: repo, cfg: cfg}
}

// Identify returns the tenant id for req. claimTenantID is the tenant from an already
// verified token, or 0. Steps run in order (claim, subdomain, x-tenant-id header, default)
// and the first that yields a tenant wins. Returns ok=false when no step matched; errors
// only for storage failures.
func (r *Resolver) Identify(ctx context.Context, req client.Request, claimTenantID int64) (int64, bool, error) {
	id, m, err := r.identify(ctx, req, claimTenantID)
	if err != nil || m == "" {
		return 0, false, err
	}
	zap.L().Debug("tenant identified", zap.Int64("tenant_id", id), zap.String("method", string(m)))
	return id, true, nil
}

// IdentifyMethod is Identify that also reports which step matched.
func (r *Resolver) IdentifyMethod(ctx context.Context, req client.Request, claimTenantID int64) (int64, Method, error) {
	return r.identify(ctx, req, claimTenantID)
}

func (r *Resolver) identify(ctx context.Context, req client.Request, claimTenantID int64) (int64, Method, error) {
	if claimTenantID > 0 {
		return claimTenantID, MethodClaim, nil
	}
	if sub := r.subdomain(req.Host); sub != "" {
		t, err := r.repo.GetBySubdomain(ctx, sub)
		if err != nil {
			return 0, "", fmt.Errorf("resolve subdomain %q: %w", sub, err)
		}
		if t != nil {
			return t.ID, MethodSubdomain, nil
		}
	}
	if raw := strings.TrimSpace(req.Get(HeaderTenantID)); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			t, err := r.repo.GetByID(ctx, id)
			if err != nil {
				return 0, "", fmt.Errorf("resolve tenant header %d: %w", id, err)
			}
			if t != nil {
				return t.ID, MethodHeader, nil
			}
		}
	}
	if r.cfg.DefaultEnabled && r.cfg.DefaultID > 0 {
		return r.cfg.DefaultID, MethodDefault, nil
	}
	return 0, "", nil
}

// subdomain returns the left-most label of host when host sits directly under BaseDomain.
func (r *Resolver) subdomain(host string) string {
	if r.cfg.BaseDomain == "" {
		return ""
	}
	h := strings.ToLower(strings.TrimSpace(stripPort(host)))
	suffix := "." + r.cfg.BaseDomain
	if !strings.HasSuffix(h, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(h, suffix)
	if sub == "" || sub == "www" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

func stripPort(host string) string {
	if strings.Contains(host, ":") {
		h, _, err := net.SplitHostPort(host)
		if err == nil {
			return h
		}
	}
	return host
}
