package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/session/domain"
)

const sessionColumns = `id, user_id, token_hash, device_type, device_id, device_name, platform,
	ip_address, user_agent, created_at, last_accessed_at, expires_at, is_active`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session. The session must have ID and TokenHash set; token_hash is unique.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.UserID, s.TokenHash, string(s.DeviceType),
		nullString(s.DeviceID), nullString(s.DeviceName), nullString(s.Platform),
		nullString(s.IPAddress), nullString(s.UserAgent),
		s.CreatedAt, s.LastAccessedAt, s.ExpiresAt, s.IsActive,
	)
	return err
}

// GetActive returns the active session matching id and tokenHash, or nil if not found.
func (r *PostgresRepository) GetActive(ctx context.Context, id, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE id = $1 AND token_hash = $2 AND is_active = TRUE`, id, tokenHash)
	return scanOne(row)
}

// GetActiveByTokenHash returns the active session bound to tokenHash, or nil if not found.
func (r *PostgresRepository) GetActiveByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE token_hash = $1 AND is_active = TRUE`, tokenHash)
	return scanOne(row)
}

// ListActiveByUser returns the user's usable sessions ordered by last access, newest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY last_accessed_at DESC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Deactivate marks the session inactive. Returns false when it was already inactive or missing.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE
		WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeactivateByUser marks the user's active sessions inactive, optionally filtered by device type
// and sparing exceptID.
func (r *PostgresRepository) DeactivateByUser(ctx context.Context, userID int64, deviceTypes []client.DeviceType, exceptID string) (int64, error) {
	q := `UPDATE sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`
	args := []any{userID}
	if len(deviceTypes) > 0 {
		types := make([]string, len(deviceTypes))
		for i, d := range deviceTypes {
			types[i] = string(d)
		}
		args = append(args, types)
		q += ` AND device_type = ANY($2)`
	}
	if exceptID != "" {
		args = append(args, exceptID)
		q += ` AND id <> $` + strconv.Itoa(len(args))
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateLastAccessed sets the session's last-accessed timestamp.
func (r *PostgresRepository) UpdateLastAccessed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_accessed_at = $2 WHERE id = $1`, id, at)
	return err
}

// DeleteStale purges expired sessions and inactive sessions created before inactiveBefore.
func (r *PostgresRepository) DeleteStale(ctx context.Context, now, inactiveBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions
		WHERE expires_at < $1 OR (is_active = FALSE AND created_at < $2)`, now, inactiveBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*domain.Session, error) {
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSession(sc scanner) (*domain.Session, error) {
	var (
		s                                                 domain.Session
		deviceType                                        string
		deviceID, deviceName, platform, ipAddr, userAgent sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.UserID, &s.TokenHash, &deviceType, &deviceID, &deviceName, &platform,
		&ipAddr, &userAgent, &s.CreatedAt, &s.LastAccessedAt, &s.ExpiresAt, &s.IsActive); err != nil {
		return nil, err
	}
	s.DeviceType = client.DeviceType(deviceType)
	s.DeviceID = deviceID.String
	s.DeviceName = deviceName.String
	s.Platform = platform.String
	s.IPAddress = ipAddr.String
	s.UserAgent = userAgent.String
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
