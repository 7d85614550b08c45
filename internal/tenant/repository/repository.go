package repository

import (
	"context"

	"github.com/hugo617/healthcare-admin-sub001/internal/tenant/domain"
)

// Repository defines persistence for tenants. Lookups return (nil, nil) when the tenant does not exist.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
	Create(ctx context.Context, t *domain.Tenant) error
}
