package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
)

// Authenticator is the verification chain shared by the HTTP middleware and the gRPC
// interceptor: detect client, extract token, verify it, verify its session, enter the tenant.
type Authenticator struct {
	tokens   TokenIssuer
	sessions SessionStore
	resolver TenantResolver
	tenants  TenantSetter
}

// NewAuthenticator returns an Authenticator.
func NewAuthenticator(tokens TokenIssuer, sessions SessionStore, resolver TenantResolver, tenants TenantSetter) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, resolver: resolver, tenants: tenants}
}

// Authenticate verifies req and returns a context carrying the principal, client type,
// client ip and, when one resolves, the current tenant. A missing, invalid or unbound token
// returns rbac.ErrUnauthorized with a nil principal. When the session verifies but the tenant
// cannot be entered, the tenant error is returned together with the verified principal so
// callers such as logout can still act on the session; the principal is not stored on ctx.
func (a *Authenticator) Authenticate(ctx context.Context, req client.Request, ip string) (context.Context, *authctx.Principal, error) {
	ct := client.Detect(req)
	ctx = authctx.WithClientType(ctx, ct)
	if ip != "" {
		ctx = authctx.WithClientIP(ctx, ip)
	}

	token := client.ExtractToken(req)
	if token == "" {
		return ctx, nil, rbac.ErrUnauthorized
	}
	user, err := a.tokens.Verify(token)
	if err != nil {
		zap.L().Debug("auth: token rejected", zap.String("client_type", string(ct)), zap.Error(err))
		return ctx, nil, rbac.ErrUnauthorized
	}
	sess, err := a.sessions.VerifyToken(ctx, token)
	if err != nil {
		return ctx, nil, err
	}
	if sess == nil || sess.UserID != user.ID {
		zap.L().Debug("auth: no active session for token", zap.Int64("user_id", user.ID))
		return ctx, nil, rbac.ErrUnauthorized
	}

	p := &authctx.Principal{User: *user, SessionID: sess.ID, Token: token, ClientType: ct}

	tenantID, ok, err := a.resolver.Identify(ctx, req, user.TenantID)
	if err != nil {
		return ctx, p, err
	}
	if ok {
		tctx, err := a.tenants.SetCurrent(ctx, tenantID)
		if err != nil {
			return ctx, p, err
		}
		ctx = tctx
	}
	return authctx.WithPrincipal(ctx, p), p, nil
}
