package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	identityservice "github.com/hugo617/healthcare-admin-sub001/internal/identity/service"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
	tenantdomain "github.com/hugo617/healthcare-admin-sub001/internal/tenant/domain"
)

// AuthAPI is the identity service used by the auth routes.
type AuthAPI interface {
	Login(ctx context.Context, in identityservice.LoginInput) (*identityservice.AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	SwitchTenant(ctx context.Context, p *authctx.Principal, tenantID int64, meta identityservice.SessionMeta) (*identityservice.AuthResult, error)
}

// TokenInspector reports token lifetimes for client-side expiry hints.
type TokenInspector interface {
	RemainingSeconds(token string) int64
}

// PermissionChecker is the guard used by the protected routes.
type PermissionChecker interface {
	RequirePermission(ctx context.Context, code, resourceID string, req *client.Request) error
	GetUserPermissions(ctx context.Context, userID int64) ([]string, error)
}

// CookieConfig controls the auth cookie written on login and tenant switch.
type CookieConfig struct {
	Secure bool
}

type loginRequest struct {
	Account    string `json:"account"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

type switchTenantRequest struct {
	TenantID   int64  `json:"tenantId"`
	RememberMe bool   `json:"rememberMe"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

type tenantView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Subdomain string `json:"subdomain,omitempty"`
	Status    string `json:"status"`
}

type authResponse struct {
	Token      string            `json:"token"`
	SessionID  string            `json:"sessionId"`
	ExpiresAt  time.Time         `json:"expiresAt"`
	User       security.AuthUser `json:"user"`
	Tenant     *tenantView       `json:"tenant,omitempty"`
	ClientType client.ClientType `json:"clientType"`
}

type meResponse struct {
	User        security.AuthUser `json:"user"`
	SessionID   string            `json:"sessionId"`
	ClientType  client.ClientType `json:"clientType"`
	Tenant      *tenantView       `json:"tenant,omitempty"`
	Permissions []string          `json:"permissions"`
}

// AuthHandler serves /auth routes.
type AuthHandler struct {
	svc    AuthAPI
	tokens TokenInspector
	guard  PermissionChecker
	cookie CookieConfig
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(svc AuthAPI, tokens TokenInspector, guard PermissionChecker, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens, guard: guard, cookie: cookie}
}

// Login authenticates account and password and sets the auth cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Account == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "account and password are required")
		return
	}
	res, err := h.svc.Login(r.Context(), identityservice.LoginInput{
		Account:  req.Account,
		Password: req.Password,
		Request:  client.FromHTTP(r),
		SessionMeta: identityservice.SessionMeta{
			IPAddress:  ClientIP(r),
			UserAgent:  r.UserAgent(),
			DeviceID:   req.DeviceID,
			DeviceName: req.DeviceName,
			LongLived:  req.RememberMe,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Logout revokes the caller's session when one is present and always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid, ok := authctx.GetSessionID(r.Context()); ok {
		if err := h.svc.Logout(r.Context(), sid); err != nil {
			writeError(w, r, err)
			return
		}
	}
	h.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the caller's identity, current tenant and permission codes.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := authctx.GetPrincipal(r.Context())
	if !ok {
		writeError(w, r, rbac.ErrUnauthorized)
		return
	}
	perms, err := h.guard.GetUserPermissions(r.Context(), p.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if perms == nil {
		perms = []string{}
	}
	t, _ := tenant.Current(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		User:        p.User,
		SessionID:   p.SessionID,
		ClientType:  p.ClientType,
		Tenant:      toTenantView(t),
		Permissions: perms,
	})
}

// Token returns the seconds left on the caller's token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	p, ok := authctx.GetPrincipal(r.Context())
	if !ok {
		writeError(w, r, rbac.ErrUnauthorized)
		return
	}
	remaining := h.tokens.RemainingSeconds(p.Token)
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, map[string]int64{"remainingSeconds": remaining})
}

// SwitchTenant re-issues a super admin's token for another tenant and replaces the cookie.
func (h *AuthHandler) SwitchTenant(w http.ResponseWriter, r *http.Request) {
	p, ok := authctx.GetPrincipal(r.Context())
	if !ok {
		writeError(w, r, rbac.ErrUnauthorized)
		return
	}
	var req switchTenantRequest
	if err := decodeJSON(r, &req); err != nil || req.TenantID <= 0 {
		writeMessage(w, http.StatusBadRequest, "tenantId is required")
		return
	}
	res, err := h.svc.SwitchTenant(r.Context(), p, req.TenantID, identityservice.SessionMeta{
		IPAddress:  ClientIP(r),
		UserAgent:  r.UserAgent(),
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		LongLived:  req.RememberMe,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     client.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	for _, name := range []string{client.CookieName, client.LegacyCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   h.cookie.Secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

func toAuthResponse(res *identityservice.AuthResult) authResponse {
	return authResponse{
		Token:      res.Token,
		SessionID:  res.SessionID,
		ExpiresAt:  res.ExpiresAt,
		User:       res.User,
		Tenant:     toTenantView(res.Tenant),
		ClientType: res.ClientType,
	}
}

func toTenantView(t *tenantdomain.Tenant) *tenantView {
	if t == nil {
		return nil
	}
	return &tenantView{ID: t.ID, Name: t.Name, Code: t.Code, Subdomain: t.Subdomain, Status: string(t.Status)}
}
