package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hugo617/healthcare-admin-sub001/internal/policy/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

const policyColumns = `id, tenant_id, rules, enabled, created_at`

// PostgresRepository is the Postgres-backed Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListEnabledByTenant returns the scoped tenant's enabled policies in creation order.
func (r *PostgresRepository) ListEnabledByTenant(ctx context.Context, scope tenant.Scope) ([]*domain.Policy, error) {
	if err := scope.Check(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+policyColumns+` FROM policies
		WHERE tenant_id = $1 AND enabled = TRUE ORDER BY created_at`, scope.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Create persists the policy. The policy must have ID set; a zero CreatedAt is stamped now.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO policies (`+policyColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TenantID, p.Rules, p.Enabled, p.CreatedAt)
	return err
}
