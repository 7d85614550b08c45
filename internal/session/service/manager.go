// Package service implements the session lifecycle: creation on login, verification
// bound to the exact bearer token, throttled activity tracking, revocation and cleanup.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
	"github.com/hugo617/healthcare-admin-sub001/internal/session/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/session/repository"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultLongTTL       = 30 * 24 * time.Hour
	DefaultTouchInterval = 5 * time.Minute
	DefaultRetentionDays = 30
)

// Config holds session lifetimes. Zero values fall back to the defaults above.
type Config struct {
	TTL           time.Duration
	LongTTL       time.Duration
	TouchInterval time.Duration
}

// CreateParams describes the login that is opening a session.
type CreateParams struct {
	UserID     int64
	ClientType client.ClientType
	Token      string
	IPAddress  string
	UserAgent  string
	DeviceID   string
	DeviceName string
	// LongLived selects the long TTL; it should match the token's own lifetime.
	LongLived bool
}

// Manager owns session state transitions. It is safe for concurrent use; all
// mutations are single-row or predicate-scoped updates on the repository.
type Manager struct {
	repo          repository.Repository
	ttl           time.Duration
	longTTL       time.Duration
	touchInterval time.Duration
	nowF          func() time.Time

	created metric.Int64Counter
	revoked metric.Int64Counter
	expired metric.Int64Counter
}

// NewManager returns a Manager persisting through repo.
func NewManager(repo repository.Repository, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.LongTTL <= 0 {
		cfg.LongTTL = DefaultLongTTL
	}
	if cfg.TouchInterval <= 0 {
		cfg.TouchInterval = DefaultTouchInterval
	}
	m := &Manager{
		repo:          repo,
		ttl:           cfg.TTL,
		longTTL:       cfg.LongTTL,
		touchInterval: cfg.TouchInterval,
		nowF:          time.Now,
	}
	meter := otel.Meter("healthcare-admin/session")
	m.created, _ = meter.Int64Counter("sessions.created", metric.WithDescription("Sessions opened by login"))
	m.revoked, _ = meter.Int64Counter("sessions.revoked", metric.WithDescription("Sessions deactivated by revocation"))
	m.expired, _ = meter.Int64Counter("sessions.expired", metric.WithDescription("Sessions deactivated on expiry during verify"))
	return m
}

// SetClock replaces the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.nowF = now
}

// ShouldTouch reports whether lastAccessed is old enough, relative to now, to warrant a write.
func ShouldTouch(now, lastAccessed time.Time, interval time.Duration) bool {
	return now.Sub(lastAccessed) > interval
}

// ShouldTouch applies the manager's configured touch interval.
func (m *Manager) ShouldTouch(now, lastAccessed time.Time) bool {
	return ShouldTouch(now, lastAccessed, m.touchInterval)
}

// CreateSession inserts an active session bound to p.Token.
func (m *Manager) CreateSession(ctx context.Context, p CreateParams) (*domain.Session, error) {
	now := m.nowF().UTC()
	ttl := m.ttl
	if p.LongLived {
		ttl = m.longTTL
	}
	s := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		TokenHash:      security.HashToken(p.Token),
		DeviceType:     deviceTypeFor(p.ClientType, p.UserAgent),
		DeviceID:       p.DeviceID,
		DeviceName:     p.DeviceName,
		Platform:       client.PlatformFromUserAgent(p.UserAgent),
		IPAddress:      p.IPAddress,
		UserAgent:      p.UserAgent,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(ttl),
		IsActive:       true,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("device_type", string(s.DeviceType))))
	return s, nil
}

// VerifySession returns the active session identified by sessionID and bound to token,
// or nil when there is no such session or it has expired.
func (m *Manager) VerifySession(ctx context.Context, sessionID, token string) (*domain.Session, error) {
	if sessionID == "" || token == "" {
		return nil, nil
	}
	s, err := m.repo.GetActive(ctx, sessionID, security.HashToken(token))
	if err != nil || s == nil {
		return nil, err
	}
	return m.check(ctx, s, token)
}

// VerifyToken returns the active session bound to token, or nil.
func (m *Manager) VerifyToken(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	s, err := m.repo.GetActiveByTokenHash(ctx, security.HashToken(token))
	if err != nil || s == nil {
		return nil, err
	}
	return m.check(ctx, s, token)
}

func (m *Manager) check(ctx context.Context, s *domain.Session, token string) (*domain.Session, error) {
	if !security.TokenHashEqual(token, s.TokenHash) {
		return nil, nil
	}
	now := m.nowF().UTC()
	if !now.Before(s.ExpiresAt) {
		if _, err := m.repo.Deactivate(ctx, s.ID); err != nil {
			return nil, err
		}
		m.expired.Add(ctx, 1)
		zap.L().Debug("session expired on verify", zap.String("session_id", s.ID), zap.Int64("user_id", s.UserID))
		return nil, nil
	}
	if m.ShouldTouch(now, s.LastAccessedAt) {
		// Advisory; a failed touch does not fail authentication.
		if err := m.repo.UpdateLastAccessed(ctx, s.ID, now); err != nil {
			zap.L().Warn("session touch failed", zap.String("session_id", s.ID), zap.Error(err))
		} else {
			s.LastAccessedAt = now
		}
	}
	return s, nil
}

// RevokeSession deactivates sessionID. It reports false when the session was already inactive or unknown.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	ok, err := m.repo.Deactivate(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if ok {
		m.revoked.Add(ctx, 1)
	}
	return ok, nil
}

// RevokeAllUserSessions deactivates every active session of userID. A non-empty clientType
// restricts the sweep to that client's device types.
func (m *Manager) RevokeAllUserSessions(ctx context.Context, userID int64, clientType client.ClientType) (int64, error) {
	return m.revokeByUser(ctx, userID, clientType, "")
}

// RevokeOtherSessions is RevokeAllUserSessions sparing currentSessionID.
func (m *Manager) RevokeOtherSessions(ctx context.Context, userID int64, currentSessionID string, clientType client.ClientType) (int64, error) {
	return m.revokeByUser(ctx, userID, clientType, currentSessionID)
}

func (m *Manager) revokeByUser(ctx context.Context, userID int64, clientType client.ClientType, exceptID string) (int64, error) {
	n, err := m.repo.DeactivateByUser(ctx, userID, client.DeviceTypesFor(clientType), exceptID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.revoked.Add(ctx, n)
	}
	return n, nil
}

// CleanupExpiredSessions deletes hard-expired sessions and inactive sessions created more than
// daysToKeep days ago. Non-positive daysToKeep uses DefaultRetentionDays.
func (m *Manager) CleanupExpiredSessions(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}
	now := m.nowF().UTC()
	n, err := m.repo.DeleteStale(ctx, now, now.AddDate(0, 0, -daysToKeep))
	if err != nil {
		return 0, err
	}
	zap.L().Info("session cleanup", zap.Int64("deleted", n), zap.Int("days_to_keep", daysToKeep))
	return n, nil
}

// GetUserSessions lists the user's usable sessions, most recently accessed first,
// flagging the one whose id equals currentSessionID.
func (m *Manager) GetUserSessions(ctx context.Context, userID int64, currentSessionID string) ([]domain.ListItem, error) {
	list, err := m.repo.ListActiveByUser(ctx, userID, m.nowF().UTC())
	if err != nil {
		return nil, err
	}
	out := make([]domain.ListItem, 0, len(list))
	for _, s := range list {
		out = append(out, domain.ListItem{
			ID:             s.ID,
			DeviceType:     s.DeviceType,
			DeviceID:       s.DeviceID,
			DeviceName:     s.DeviceName,
			Platform:       s.Platform,
			IPAddress:      s.IPAddress,
			UserAgent:      s.UserAgent,
			CreatedAt:      s.CreatedAt,
			LastAccessedAt: s.LastAccessedAt,
			ExpiresAt:      s.ExpiresAt,
			IsCurrent:      currentSessionID != "" && s.ID == currentSessionID,
		})
	}
	return out, nil
}

// deviceTypeFor classifies a new session: h5 logins are always mobile, then mobile
// User-Agent tokens, then a desktop OS (or desktop wrapper), else web.
func deviceTypeFor(ct client.ClientType, ua string) client.DeviceType {
	if ct == client.ClientH5 {
		return client.DeviceMobile
	}
	if d := client.DeviceTypeFromUserAgent(ua); d != client.DeviceWeb {
		return d
	}
	switch client.PlatformFromUserAgent(ua) {
	case "Windows", "macOS", "Linux":
		return client.DeviceDesktop
	}
	return client.DeviceWeb
}
