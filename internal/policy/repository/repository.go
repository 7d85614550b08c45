package repository

import (
	"context"

	"github.com/hugo617/healthcare-admin-sub001/internal/policy/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

// Repository defines persistence for policies.
type Repository interface {
	// ListEnabledByTenant returns the enabled policies of the scoped tenant.
	ListEnabledByTenant(ctx context.Context, scope tenant.Scope) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
}
