// Package tenant threads the current tenant through a call chain on context.Context.
//
// The current tenant is a stack of frames stored on the context. Entering a tenant
// derives a child context with a new frame on top; the caller's context is never
// mutated, so leaving the callback (by return, error or panic) restores the caller's
// tenant without any cleanup step. Tenant-scoped queries take a Scope, and the only
// way to obtain a non-zero Scope is Require.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/tenant/domain"
)

var (
	// ErrTenantRequired means a tenant-scoped operation ran with no tenant in scope.
	ErrTenantRequired = errors.New("tenant context required")
	// ErrTenantNotFound means the requested tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrTenantInactive means the requested tenant exists but is not active.
	ErrTenantInactive = errors.New("tenant is not active")
)

// Repository is the minimal tenant lookup needed by Manager and Resolver.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
}

type frameKey struct{}

type frame struct {
	tenant *domain.Tenant
	parent *frame
	depth  int
}

// Scope is proof that a tenant was in scope. Repositories filtering by tenant accept a
// Scope instead of a bare id.
type Scope struct {
	id     int64
	tenant *domain.Tenant
}

// ID returns the scoped tenant id.
func (s Scope) ID() int64 { return s.id }

// Tenant returns the tenant record the scope was built from.
func (s Scope) Tenant() *domain.Tenant { return s.tenant }

// IsZero reports whether s was not obtained from Require.
func (s Scope) IsZero() bool { return s.id == 0 }

// Check returns ErrTenantRequired for a zero Scope.
func (s Scope) Check() error {
	if s.IsZero() {
		return ErrTenantRequired
	}
	return nil
}

// Require returns the current tenant scope or ErrTenantRequired.
func Require(ctx context.Context) (Scope, error) {
	f := top(ctx)
	if f == nil {
		return Scope{}, ErrTenantRequired
	}
	return Scope{id: f.tenant.ID, tenant: f.tenant}, nil
}

// Current returns the current tenant, if any.
func Current(ctx context.Context) (*domain.Tenant, bool) {
	f := top(ctx)
	if f == nil {
		return nil, false
	}
	return f.tenant, true
}

// CurrentID returns the current tenant id, or 0 when none is set.
func CurrentID(ctx context.Context) int64 {
	if t, ok := Current(ctx); ok {
		return t.ID
	}
	return 0
}

// Depth returns the number of tenant frames on ctx.
func Depth(ctx context.Context) int {
	if f := top(ctx); f != nil {
		return f.depth
	}
	return 0
}

// Parent returns the tenant that was current before the top frame was pushed.
func Parent(ctx context.Context) (*domain.Tenant, bool) {
	f := top(ctx)
	if f == nil || f.parent == nil {
		return nil, false
	}
	return f.parent.tenant, true
}

// Push returns a child of ctx whose current tenant is t. t must already be validated;
// Manager.SetCurrent is the checked entry point.
func Push(ctx context.Context, t *domain.Tenant) context.Context {
	parent := top(ctx)
	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	return context.WithValue(ctx, frameKey{}, &frame{tenant: t, parent: parent, depth: depth})
}

func top(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// Manager validates tenants before they are entered.
type Manager struct {
	repo Repository
}

// NewManager returns a Manager that loads tenants from repo.
func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

// Load returns the tenant for id if it exists and is active.
func (m *Manager) Load(ctx context.Context, id int64) (*domain.Tenant, error) {
	if id <= 0 {
		return nil, ErrTenantNotFound
	}
	t, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load tenant %d: %w", id, err)
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	if !t.IsActive() {
		return nil, ErrTenantInactive
	}
	return t, nil
}

// SetCurrent loads and validates tenantID and returns a child context with it as the
// current tenant. On error ctx is returned unchanged.
func (m *Manager) SetCurrent(ctx context.Context, tenantID int64) (context.Context, error) {
	t, err := m.Load(ctx, tenantID)
	if err != nil {
		return ctx, err
	}
	return Push(ctx, t), nil
}

// WithTenant runs fn with tenantID as the current tenant. fn's context carries the new
// frame; the caller's ctx keeps its own tenant whatever fn does.
func (m *Manager) WithTenant(ctx context.Context, tenantID int64, fn func(ctx context.Context) error) error {
	_, err := Within(ctx, m, tenantID, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Within is WithTenant for callbacks returning a value.
func Within[T any](ctx context.Context, m *Manager, tenantID int64, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	inner, err := m.SetCurrent(ctx, tenantID)
	if err != nil {
		return zero, err
	}
	zap.L().Debug("entering tenant",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("caller_tenant_id", CurrentID(ctx)),
		zap.Int("depth", Depth(inner)))
	return fn(inner)
}
