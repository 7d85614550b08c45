// Package authctx carries the authenticated principal on a context.Context.
package authctx

import (
	"context"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
)

type contextKey struct{ name string }

var (
	principalKey  = contextKey{"principal"}
	clientTypeKey = contextKey{"client_type"}
	clientIPKey   = contextKey{"client_ip"}
)

// Principal is the verified caller of a request: the token's identity snapshot plus the
// session the token is bound to.
type Principal struct {
	User       security.AuthUser
	SessionID  string
	Token      string
	ClientType client.ClientType
}

// WithPrincipal returns a context carrying p. The principal's client type is also
// recorded so GetClientType works for authenticated requests.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	if p != nil && p.ClientType != "" {
		ctx = WithClientType(ctx, p.ClientType)
	}
	return ctx
}

// GetPrincipal returns the principal from context and true if set; otherwise nil, false.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// GetUserID returns the principal's user id and true if set; otherwise 0, false.
func GetUserID(ctx context.Context) (int64, bool) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return 0, false
	}
	return p.User.ID, true
}

// GetSessionID returns the principal's session id and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	p, ok := GetPrincipal(ctx)
	if !ok || p.SessionID == "" {
		return "", false
	}
	return p.SessionID, true
}

// WithClientType records the detected client type, including for anonymous requests.
func WithClientType(ctx context.Context, ct client.ClientType) context.Context {
	return context.WithValue(ctx, clientTypeKey, ct)
}

// GetClientType returns the detected client type, defaulting to admin.
func GetClientType(ctx context.Context) client.ClientType {
	if ct, ok := ctx.Value(clientTypeKey).(client.ClientType); ok && ct != "" {
		return ct
	}
	return client.ClientAdmin
}

// WithClientIP records the caller's address as seen by the transport.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the recorded caller address, or "" when none was set.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
