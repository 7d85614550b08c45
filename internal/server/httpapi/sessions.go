package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit"
	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	permdomain "github.com/hugo617/healthcare-admin-sub001/internal/permission/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
	sessiondomain "github.com/hugo617/healthcare-admin-sub001/internal/session/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

// SessionAPI is the session manager used by the session routes.
type SessionAPI interface {
	GetUserSessions(ctx context.Context, userID int64, currentSessionID string) ([]sessiondomain.ListItem, error)
	RevokeSession(ctx context.Context, sessionID string) (bool, error)
	RevokeAllUserSessions(ctx context.Context, userID int64, clientType client.ClientType) (int64, error)
	RevokeOtherSessions(ctx context.Context, userID int64, currentSessionID string, clientType client.ClientType) (int64, error)
	CleanupExpiredSessions(ctx context.Context, daysToKeep int) (int64, error)
}

type revokeRequest struct {
	ClientType string `json:"clientType"`
}

type cleanupRequest struct {
	DaysToKeep int `json:"daysToKeep"`
}

// SessionHandler serves the caller's own session list and revocation, plus the admin cleanup sweep.
type SessionHandler struct {
	sessions      SessionAPI
	guard         PermissionChecker
	audit         audit.AuditLogger
	auth          *AuthHandler
	retentionDays int
}

// NewSessionHandler returns a SessionHandler. auditLogger may be nil. auth is used to clear
// the cookie when the caller revokes its own session.
func NewSessionHandler(sessions SessionAPI, guard PermissionChecker, auditLogger audit.AuditLogger, auth *AuthHandler, retentionDays int) *SessionHandler {
	return &SessionHandler{sessions: sessions, guard: guard, audit: auditLogger, auth: auth, retentionDays: retentionDays}
}

// List returns the caller's active sessions, the current one flagged.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := authctx.GetPrincipal(r.Context())
	if !ok {
		writeError(w, r, rbac.ErrUnauthorized)
		return
	}
	items, err := h.sessions.GetUserSessions(r.Context(), p.User.ID, p.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []sessiondomain.ListItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": items})
}

// Delete revokes one of the caller's own sessions. Sessions of other users are reported as not found.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := authctx.GetPrincipal(r.Context())
	if !ok {
		writeError(w, r, rbac.ErrUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	items, err := h.sessions.GetUserSessions(r.Context(), p.User.ID, p.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	owned := false
	for _, it := range items {
		if it.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeMessage(w, http.StatusNotFound, "session not found")
		return
	}
	revoked, err := h.sessions.RevokeSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if revoked {
		h.logEvent(r.Context(), p, audit.ActionSessionRevoke, audit.Metadata(map[string]any{"sessionId": id}))
	}
	if id == p.SessionID && h.auth != nil {
		h.auth.clearCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

// RevokeOthers revokes every session of the caller except the current one, optionally
// limited to one client type.
func (h *SessionHandler) RevokeOthers(w http.ResponseWriter, r *http.Request) {
	p, ct, ok := h.revokeInput(w, r)
	if !ok {
		return
	}
	n, err := h.sessions.RevokeOtherSessions(r.Context(), p.User.ID, p.SessionID, ct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.logEvent(r.Context(), p, audit.ActionSessionRevokeOthers,
		audit.Metadata(map[string]any{"clientType": ct, "revoked": n}))
	writeJSON(w, http.StatusOK, map[string]int64{"revoked": n})
}

// RevokeAll revokes every session of the caller, optionally limited to one client type.
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	p, ct, ok := h.revokeInput(w, r)
	if !ok {
		return
	}
	n, err := h.sessions.RevokeAllUserSessions(r.Context(), p.User.ID, ct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.logEvent(r.Context(), p, audit.ActionSessionRevokeAll,
		audit.Metadata(map[string]any{"clientType": ct, "revoked": n}))
	if (ct == "" || ct == p.ClientType) && h.auth != nil {
		h.auth.clearCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"revoked": n})
}

// Cleanup deletes expired and long-inactive sessions. Requires session:cleanup.
func (h *SessionHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.RequirePermission(r.Context(), permdomain.CodeSessionCleanup, "", nil); err != nil {
		writeError(w, r, err)
		return
	}
	var req cleanupRequest
	if err := decodeJSON(r, &req); err != nil || req.DaysToKeep < 0 {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	days := req.DaysToKeep
	if days == 0 {
		days = h.retentionDays
	}
	n, err := h.sessions.CleanupExpiredSessions(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, _ := authctx.GetPrincipal(r.Context())
	h.logEvent(r.Context(), p, audit.ActionSessionCleanup,
		audit.Metadata(map[string]any{"daysToKeep": days, "deleted": n}))
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *SessionHandler) revokeInput(w http.ResponseWriter, r *http.Request) (*authctx.Principal, client.ClientType, bool) {
	p, ok := authctx.GetPrincipal(r.Context())
	if !ok {
		writeError(w, r, rbac.ErrUnauthorized)
		return nil, "", false
	}
	var req revokeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return nil, "", false
	}
	if req.ClientType == "" {
		return p, "", true
	}
	ct, ok := client.ParseClientType(req.ClientType)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "clientType must be admin or h5")
		return nil, "", false
	}
	return p, ct, true
}

func (h *SessionHandler) logEvent(ctx context.Context, p *authctx.Principal, action, metadata string) {
	if h.audit == nil {
		return
	}
	var tenantID, userID int64
	if p != nil {
		tenantID, userID = p.User.TenantID, p.User.ID
	}
	if id := tenant.CurrentID(ctx); id != 0 {
		tenantID = id
	}
	h.audit.LogEvent(ctx, tenantID, userID, action, audit.ResourceSession, metadata)
}
