// Package rbac enforces tenant-scoped, permission-code based access control.
package rbac

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/policy/engine"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
	sessiondomain "github.com/hugo617/healthcare-admin-sub001/internal/session/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
	userdomain "github.com/hugo617/healthcare-admin-sub001/internal/user/domain"
)

var (
	// ErrUnauthorized means there is no valid principal; the client should log in again.
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden means the principal lacks the permission. It never names the permission.
	ErrForbidden = errors.New("insufficient permission")
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*security.AuthUser, error)
}

// SessionVerifier confirms that a token is still bound to an active session.
type SessionVerifier interface {
	VerifyToken(ctx context.Context, token string) (*sessiondomain.Session, error)
}

// UserGetter is the minimal user repository needed by Guard.
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*userdomain.User, error)
	GetRoleID(ctx context.Context, scope tenant.Scope, userID int64) (int64, bool, error)
}

// PermissionGetter is the minimal permission repository needed by Guard.
type PermissionGetter interface {
	HasCode(ctx context.Context, scope tenant.Scope, roleID int64, code string) (bool, error)
	ListCodesByRole(ctx context.Context, scope tenant.Scope, roleID int64) ([]string, error)
	ListAllCodes(ctx context.Context) ([]string, error)
}

// Guard checks permissions for the acting principal inside the current tenant.
type Guard struct {
	tokens   TokenVerifier
	sessions SessionVerifier
	users    UserGetter
	perms    PermissionGetter
	scope    engine.ScopeEvaluator
}

// NewGuard returns a Guard. sessions and scope may be nil: without sessions a request
// token is trusted on its signature alone; without scope every resource is in scope.
func NewGuard(tokens TokenVerifier, sessions SessionVerifier, users UserGetter, perms PermissionGetter, scope engine.ScopeEvaluator) *Guard {
	return &Guard{tokens: tokens, sessions: sessions, users: users, perms: perms, scope: scope}
}

// RequirePermission returns nil when the acting user holds code in the current tenant.
// The principal comes from req's bearer token when req is non-nil, otherwise from ctx.
// Super admins always pass. When resourceID is non-empty the scope evaluator also has
// to allow the resource.
func (g *Guard) RequirePermission(ctx context.Context, code, resourceID string, req *client.Request) error {
	user, ct, err := g.principal(ctx, req)
	if err != nil {
		return err
	}
	if user.IsSuperAdmin {
		return nil
	}
	scope, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	roleID, ok, err := g.users.GetRoleID(ctx, scope, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		zap.L().Debug("permission denied: user not in tenant", zap.Int64("user_id", user.ID), zap.Int64("tenant_id", scope.ID()))
		return ErrForbidden
	}
	has, err := g.perms.HasCode(ctx, scope, roleID, code)
	if err != nil {
		return err
	}
	if !has {
		zap.L().Debug("permission denied", zap.Int64("user_id", user.ID), zap.Int64("role_id", roleID),
			zap.Int64("tenant_id", scope.ID()), zap.String("permission", code))
		return ErrForbidden
	}
	if resourceID == "" || g.scope == nil {
		return nil
	}
	allowed, err := g.scope.AllowResource(ctx, engine.ScopeInput{
		UserID:     user.ID,
		TenantID:   scope.ID(),
		RoleID:     roleID,
		Permission: code,
		ResourceID: resourceID,
		ClientType: string(ct),
	})
	if err != nil {
		zap.L().Error("scope policy evaluation failed", zap.String("resource_id", resourceID), zap.Error(err))
		return ErrForbidden
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// IsSuperAdmin reports whether userID is a super admin according to the user table.
func (g *Guard) IsSuperAdmin(ctx context.Context, userID int64) (bool, error) {
	u, err := g.users.GetByID(ctx, userID)
	if err != nil || u == nil {
		return false, err
	}
	return u.IsSuperAdmin, nil
}

// GetUserPermissions returns the codes userID holds in the current tenant. Super admins
// get every code known to the system regardless of tenant.
func (g *Guard) GetUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	if u.IsSuperAdmin {
		return g.perms.ListAllCodes(ctx)
	}
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	roleID, ok, err := g.users.GetRoleID(ctx, scope, userID)
	if err != nil || !ok {
		return nil, err
	}
	return g.perms.ListCodesByRole(ctx, scope, roleID)
}

func (g *Guard) principal(ctx context.Context, req *client.Request) (*security.AuthUser, client.ClientType, error) {
	if req == nil {
		p, ok := authctx.GetPrincipal(ctx)
		if !ok {
			return nil, "", ErrUnauthorized
		}
		u := p.User
		return &u, p.ClientType, nil
	}
	token := client.ExtractToken(*req)
	if token == "" || g.tokens == nil {
		return nil, "", ErrUnauthorized
	}
	user, err := g.tokens.Verify(token)
	if err != nil {
		return nil, "", ErrUnauthorized
	}
	if g.sessions != nil {
		s, err := g.sessions.VerifyToken(ctx, token)
		if err != nil {
			return nil, "", err
		}
		if s == nil {
			return nil, "", ErrUnauthorized
		}
	}
	return user, client.Detect(*req), nil
}

// Status converts a guard error into a gRPC status error.
func Status(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnauthorized):
		return status.Error(codes.Unauthenticated, ErrUnauthorized.Error())
	case errors.Is(err, ErrForbidden):
		return status.Error(codes.PermissionDenied, ErrForbidden.Error())
	case errors.Is(err, tenant.ErrTenantRequired):
		return status.Error(codes.FailedPrecondition, tenant.ErrTenantRequired.Error())
	case errors.Is(err, tenant.ErrTenantNotFound):
		return status.Error(codes.NotFound, tenant.ErrTenantNotFound.Error())
	case errors.Is(err, tenant.ErrTenantInactive):
		return status.Error(codes.FailedPrecondition, tenant.ErrTenantInactive.Error())
	}
	return status.Error(codes.Internal, "failed to check permission")
}
