package repository

import (
	"context"
	"database/sql"

	"github.com/hugo617/healthcare-admin-sub001/internal/permission/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a permission repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListCodesByRole returns the role's active permission codes in the scoped tenant, sorted.
func (r *PostgresRepository) ListCodesByRole(ctx context.Context, scope tenant.Scope, roleID int64) ([]string, error) {
	if err := scope.Check(); err != nil {
		return nil, err
	}
	return r.codes(ctx, `SELECT p.code FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND rp.tenant_id = $2 AND p.status = 'active'
		ORDER BY p.code`, roleID, scope.ID())
}

// HasCode reports whether the role holds code in the scoped tenant.
func (r *PostgresRepository) HasCode(ctx context.Context, scope tenant.Scope, roleID int64, code string) (bool, error) {
	if err := scope.Check(); err != nil {
		return false, err
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND rp.tenant_id = $2 AND p.code = $3 AND p.status = 'active')`,
		roleID, scope.ID(), code).Scan(&exists)
	return exists, err
}

// ListAllCodes returns every active permission code, sorted.
func (r *PostgresRepository) ListAllCodes(ctx context.Context) ([]string, error) {
	return r.codes(ctx, `SELECT code FROM permissions WHERE status = 'active' ORDER BY code`)
}

// Create inserts a permission, or returns the existing row's id when the code is already defined.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Permission) error {
	if p.Status == "" {
		p.Status = domain.PermissionStatusActive
	}
	return r.db.QueryRowContext(ctx, `INSERT INTO permissions (code, name, status) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, p.Code, p.Name, string(p.Status)).Scan(&p.ID)
}

// Grant inserts a role grant; granting twice is a no-op.
func (r *PostgresRepository) Grant(ctx context.Context, g domain.RolePermission) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO role_permissions (role_id, permission_id, tenant_id)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, g.RoleID, g.PermissionID, g.TenantID)
	return err
}

func (r *PostgresRepository) codes(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}
