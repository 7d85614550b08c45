package repository

import (
	"context"

	"github.com/hugo617/healthcare-admin-sub001/internal/permission/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

// Repository defines read access to role grants. Grant lookups are always tenant-filtered.
type Repository interface {
	// ListCodesByRole returns the active permission codes granted to roleID within scope.
	ListCodesByRole(ctx context.Context, scope tenant.Scope, roleID int64) ([]string, error)
	// HasCode reports whether roleID holds the active permission code within scope.
	HasCode(ctx context.Context, scope tenant.Scope, roleID int64, code string) (bool, error)
	// ListAllCodes returns every active permission code known to the system.
	ListAllCodes(ctx context.Context) ([]string, error)
	Create(ctx context.Context, p *domain.Permission) error
	Grant(ctx context.Context, g domain.RolePermission) error
}
