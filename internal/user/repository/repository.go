package repository

import (
	"context"
	"time"

	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
	"github.com/hugo617/healthcare-admin-sub001/internal/user/domain"
)

// Repository defines persistence for users. Tenant-filtered lookups take a tenant.Scope
// and fail with tenant.ErrTenantRequired when it is zero.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// GetByAccount returns the user in scope whose email or username equals account.
	GetByAccount(ctx context.Context, scope tenant.Scope, account string) (*domain.User, error)
	// GetSuperAdminByAccount looks up a super admin by email or username across tenants.
	GetSuperAdminByAccount(ctx context.Context, account string) (*domain.User, error)
	// GetRoleID returns the role of userID within scope. ok is false when the user is not in that tenant.
	GetRoleID(ctx context.Context, scope tenant.Scope, userID int64) (roleID int64, ok bool, err error)
	Create(ctx context.Context, u *domain.User) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}
