// Package service implements console login, logout and tenant switching on top of
// the token codec, the session manager and the tenant context.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit"
	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
	sessiondomain "github.com/hugo617/healthcare-admin-sub001/internal/session/domain"
	sessionservice "github.com/hugo617/healthcare-admin-sub001/internal/session/service"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
	tenantdomain "github.com/hugo617/healthcare-admin-sub001/internal/tenant/domain"
	userdomain "github.com/hugo617/healthcare-admin-sub001/internal/user/domain"
)

// Sentinel errors for auth service; transports map them to 401.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id int64) (*userdomain.User, error)
	GetByAccount(ctx context.Context, scope tenant.Scope, account string) (*userdomain.User, error)
	GetSuperAdminByAccount(ctx context.Context, account string) (*userdomain.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// TokenIssuer issues and verifies bearer tokens.
type TokenIssuer interface {
	Issue(user security.AuthUser, longLived bool) (string, error)
	Verify(token string) (*security.AuthUser, error)
}

// SessionStore is the part of the session manager the auth service drives.
type SessionStore interface {
	CreateSession(ctx context.Context, p sessionservice.CreateParams) (*sessiondomain.Session, error)
	VerifyToken(ctx context.Context, token string) (*sessiondomain.Session, error)
	RevokeSession(ctx context.Context, sessionID string) (bool, error)
}

// TenantResolver identifies the tenant a request targets.
type TenantResolver interface {
	Identify(ctx context.Context, req client.Request, claimTenantID int64) (int64, bool, error)
}

// TenantSetter validates a tenant and enters it on a child context.
type TenantSetter interface {
	SetCurrent(ctx context.Context, tenantID int64) (context.Context, error)
}

// SessionMeta describes the device opening a session.
type SessionMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceID   string
	DeviceName string
	LongLived  bool
}

// LoginInput is a login attempt. Request is the inbound call, used for client-type
// detection and tenant resolution.
type LoginInput struct {
	Account  string
	Password string
	Request  client.Request
	SessionMeta
}

// AuthResult holds the outcome of Login or SwitchTenant.
type AuthResult struct {
	Token      string
	SessionID  string
	ExpiresAt  time.Time
	User       security.AuthUser
	Tenant     *tenantdomain.Tenant
	ClientType client.ClientType
}

// AuthService implements password login, logout and super-admin tenant switching.
type AuthService struct {
	users    UserRepo
	hasher   security.PasswordHasher
	tokens   TokenIssuer
	sessions SessionStore
	resolver TenantResolver
	tenants  TenantSetter
	audit    audit.AuditLogger
	nowF     func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. auditLogger may be nil.
func NewAuthService(
	users UserRepo,
	hasher security.PasswordHasher,
	tokens TokenIssuer,
	sessions SessionStore,
	resolver TenantResolver,
	tenants TenantSetter,
	auditLogger audit.AuditLogger,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		resolver: resolver,
		tenants:  tenants,
		audit:    auditLogger,
		nowF:     time.Now,
	}
}

// Login authenticates account/password inside the tenant the request targets and opens a session.
// Super admins may log in when no tenant is resolved. Unknown accounts, wrong passwords and
// disabled users all return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	account := strings.TrimSpace(in.Account)
	if account == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}
	ct := client.Detect(in.Request)

	tenantID, ok, err := s.resolver.Identify(ctx, in.Request, 0)
	if err != nil {
		return nil, err
	}
	var (
		user *userdomain.User
		t    *tenantdomain.Tenant
	)
	if ok {
		tctx, err := s.tenants.SetCurrent(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		scope, err := tenant.Require(tctx)
		if err != nil {
			return nil, err
		}
		t = scope.Tenant()
		if user, err = s.users.GetByAccount(tctx, scope, account); err != nil {
			return nil, err
		}
	}
	if user == nil {
		if user, err = s.users.GetSuperAdminByAccount(ctx, account); err != nil {
			return nil, err
		}
	}

	var digest string
	if user != nil {
		digest = user.PasswordHash
	}
	if !s.hasher.Verify(in.Password, digest) || user == nil || user.Status != userdomain.UserStatusActive {
		s.logEvent(ctx, tenantID, 0, audit.ActionLoginFailure, audit.ResourceAuth,
			audit.Metadata(map[string]any{"clientType": ct}))
		return nil, ErrInvalidCredentials
	}

	tokenTenant := user.TenantID
	if ok {
		tokenTenant = tenantID
	}
	res, err := s.open(ctx, user.AuthUser(tokenTenant), ct, in.SessionMeta)
	if err != nil {
		return nil, err
	}
	res.Tenant = t
	if err := s.users.UpdateLastLogin(ctx, user.ID, s.nowF().UTC()); err != nil {
		zap.L().Warn("auth: update last login failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	s.logEvent(ctx, tokenTenant, user.ID, audit.ActionLogin, audit.ResourceAuth,
		audit.Metadata(map[string]any{"clientType": ct, "sessionId": res.SessionID}))
	return res, nil
}

// Logout revokes sessionID. It is idempotent; revoking an unknown or already revoked session is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	revoked, err := s.sessions.RevokeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if revoked {
		var tenantID, userID int64
		if p, ok := authctx.GetPrincipal(ctx); ok {
			tenantID, userID = p.User.TenantID, p.User.ID
		}
		s.logEvent(ctx, tenantID, userID, audit.ActionLogout, audit.ResourceAuth,
			audit.Metadata(map[string]any{"sessionId": sessionID}))
	}
	return nil
}

// SwitchTenant re-issues a super admin's token for tenantID: a new session is opened for the
// new token and the caller's session is revoked. Tenant validation errors are returned unchanged
// and leave the caller's session untouched.
func (s *AuthService) SwitchTenant(ctx context.Context, p *authctx.Principal, tenantID int64, meta SessionMeta) (*AuthResult, error) {
	if p == nil {
		return nil, rbac.ErrUnauthorized
	}
	if !p.User.IsSuperAdmin {
		return nil, rbac.ErrForbidden
	}
	tctx, err := s.tenants.SetCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	t, _ := tenant.Current(tctx)

	user, err := s.users.GetByID(ctx, p.User.ID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, rbac.ErrUnauthorized
	}
	res, err := s.open(ctx, user.AuthUser(tenantID), p.ClientType, meta)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.RevokeSession(ctx, p.SessionID); err != nil {
		if _, rerr := s.sessions.RevokeSession(ctx, res.SessionID); rerr != nil {
			zap.L().Warn("auth: rollback of switched session failed", zap.String("session_id", res.SessionID), zap.Error(rerr))
		}
		return nil, err
	}
	res.Tenant = t
	s.logEvent(ctx, tenantID, user.ID, audit.ActionTenantSwitch, audit.ResourceTenant,
		audit.Metadata(map[string]any{"fromTenantId": p.User.TenantID, "toTenantId": tenantID, "sessionId": res.SessionID}))
	return res, nil
}

// open issues a token for user and binds a new session to it.
func (s *AuthService) open(ctx context.Context, user security.AuthUser, ct client.ClientType, meta SessionMeta) (*AuthResult, error) {
	token, err := s.tokens.Issue(user, meta.LongLived)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.CreateSession(ctx, sessionservice.CreateParams{
		UserID:     user.ID,
		ClientType: ct,
		Token:      token,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		DeviceID:   meta.DeviceID,
		DeviceName: meta.DeviceName,
		LongLived:  meta.LongLived,
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:      token,
		SessionID:  sess.ID,
		ExpiresAt:  sess.ExpiresAt,
		User:       user,
		ClientType: ct,
	}, nil
}

func (s *AuthService) logEvent(ctx context.Context, tenantID, userID int64, action, resource, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, tenantID, userID, action, resource, metadata)
	}
}
