package engine

import "context"

// ScopeInput describes one resource access that already passed the permission check.
type ScopeInput struct {
	UserID       int64
	TenantID     int64
	RoleID       int64
	IsSuperAdmin bool
	Permission   string
	ResourceID   string
	ClientType   string
}

// ScopeEvaluator decides whether the caller may touch a specific resource.
type ScopeEvaluator interface {
	AllowResource(ctx context.Context, in ScopeInput) (bool, error)
}
