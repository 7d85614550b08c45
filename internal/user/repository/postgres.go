package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
	"github.com/hugo617/healthcare-admin-sub001/internal/user/domain"
)

const userColumns = `id, tenant_id, email, username, phone, avatar, role_id, is_super_admin,
	password_hash, status, last_login_at, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByAccount returns the user of the scoped tenant with the given email or username, or nil if not found.
func (r *PostgresRepository) GetByAccount(ctx context.Context, scope tenant.Scope, account string) (*domain.User, error) {
	if err := scope.Check(); err != nil {
		return nil, err
	}
	account = strings.TrimSpace(account)
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users
		WHERE tenant_id = $1 AND (lower(email) = lower($2) OR username = $2)
		ORDER BY id LIMIT 1`, scope.ID(), account))
}

// GetSuperAdminByAccount returns the super admin with the given email or username, or nil if not found.
func (r *PostgresRepository) GetSuperAdminByAccount(ctx context.Context, account string) (*domain.User, error) {
	account = strings.TrimSpace(account)
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users
		WHERE is_super_admin = TRUE AND (lower(email) = lower($1) OR username = $1)
		ORDER BY id LIMIT 1`, account))
}

// GetRoleID returns the user's role id inside the scoped tenant.
func (r *PostgresRepository) GetRoleID(ctx context.Context, scope tenant.Scope, userID int64) (int64, bool, error) {
	if err := scope.Check(); err != nil {
		return 0, false, err
	}
	var roleID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT role_id FROM users WHERE id = $1 AND tenant_id = $2`,
		userID, scope.ID()).Scan(&roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !roleID.Valid {
		return 0, false, nil
	}
	return roleID.Int64, true, nil
}

// Create persists the user and sets its generated ID.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, `INSERT INTO users
		(tenant_id, email, username, phone, avatar, role_id, is_super_admin, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		nullInt64(u.TenantID), nullString(u.Email), nullString(u.Username), nullString(u.Phone), nullString(u.Avatar),
		nullInt64(u.RoleID), u.IsSuperAdmin, u.PasswordHash, string(u.Status), u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
}

// UpdateLastLogin records a successful login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                              domain.User
		tenantID, roleID               sql.NullInt64
		email, username, phone, avatar sql.NullString
		status                         string
		lastLogin                      sql.NullTime
	)
	err := row.Scan(&u.ID, &tenantID, &email, &username, &phone, &avatar, &roleID, &u.IsSuperAdmin,
		&u.PasswordHash, &status, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.TenantID = tenantID.Int64
	u.RoleID = roleID.Int64
	u.Email = email.String
	u.Username = username.String
	u.Phone = phone.String
	u.Avatar = avatar.String
	u.Status = domain.UserStatus(status)
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
