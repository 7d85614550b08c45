package repository

import (
	"context"
	"database/sql"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The entry must have ID set; zero tenant and user ids are stored as NULL.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO audit_logs
		(id, tenant_id, user_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, nullInt64(a.TenantID), nullInt64(a.UserID), a.Action, a.Resource, a.IP,
		sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}, a.CreatedAt,
	)
	return err
}

// ListByTenant returns the scoped tenant's audit logs, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByTenant(ctx context.Context, scope tenant.Scope, limit, offset int) ([]*domain.AuditLog, error) {
	if err := scope.Check(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, tenant_id, user_id, action, resource, ip, metadata, created_at
		FROM audit_logs WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		scope.ID(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a        domain.AuditLog
			tid, uid sql.NullInt64
			meta     sql.NullString
		)
		if err := rows.Scan(&a.ID, &tid, &uid, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.TenantID, a.UserID, a.Metadata = tid.Int64, uid.Int64, meta.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
