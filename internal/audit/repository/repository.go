package repository

import (
	"context"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

// Repository persists audit log entries. Entries are append-only.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByTenant(ctx context.Context, scope tenant.Scope, limit, offset int) ([]*domain.AuditLog, error)
}
