package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/hugo617/healthcare-admin-sub001/internal/tenant/domain"
)

const tenantColumns = `id, name, code, subdomain, status, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a tenant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the tenant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

// GetBySubdomain returns the tenant owning subdomain (case-insensitive), or nil if not found.
func (r *PostgresRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE lower(subdomain) = $1`,
		strings.ToLower(subdomain)))
}

// Create persists the tenant and sets its generated ID.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, `INSERT INTO tenants (name, code, subdomain, status, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		t.Name, t.Code, sql.NullString{String: t.Subdomain, Valid: t.Subdomain != ""}, string(t.Status), t.CreatedAt,
	).Scan(&t.ID)
}

func scanTenant(row *sql.Row) (*domain.Tenant, error) {
	var (
		t         domain.Tenant
		subdomain sql.NullString
		status    string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Code, &subdomain, &status, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Subdomain = subdomain.String
	t.Status = domain.TenantStatus(status)
	return &t, nil
}
