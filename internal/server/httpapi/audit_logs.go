package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	auditdomain "github.com/hugo617/healthcare-admin-sub001/internal/audit/domain"
	permdomain "github.com/hugo617/healthcare-admin-sub001/internal/permission/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditLister reads a tenant's audit trail.
type AuditLister interface {
	ListByTenant(ctx context.Context, scope tenant.Scope, limit, offset int) ([]*auditdomain.AuditLog, error)
}

type auditLogView struct {
	ID        string          `json:"id"`
	TenantID  int64           `json:"tenantId,omitempty"`
	UserID    int64           `json:"userId,omitempty"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	IP        string          `json:"ip"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AuditHandler serves the current tenant's audit trail.
type AuditHandler struct {
	logs  AuditLister
	guard PermissionChecker
}

// NewAuditHandler returns an AuditHandler.
func NewAuditHandler(logs AuditLister, guard PermissionChecker) *AuditHandler {
	return &AuditHandler{logs: logs, guard: guard}
}

// List returns audit entries of the current tenant, newest first. Requires audit:read.
// Query parameters limit (default 50, max 200) and offset page through the trail.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.RequirePermission(r.Context(), permdomain.CodeAuditRead, "", nil); err != nil {
		writeError(w, r, err)
		return
	}
	scope, err := tenant.Require(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, offset, ok := pageParams(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid limit or offset")
		return
	}
	logs, err := h.logs.ListByTenant(r.Context(), scope, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]auditLogView, 0, len(logs))
	for _, l := range logs {
		v := auditLogView{
			ID: l.ID, TenantID: l.TenantID, UserID: l.UserID,
			Action: l.Action, Resource: l.Resource, IP: l.IP, CreatedAt: l.CreatedAt,
		}
		if json.Valid([]byte(l.Metadata)) {
			v.Metadata = json.RawMessage(l.Metadata)
		}
		items = append(items, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
}

func pageParams(r *http.Request) (limit, offset int, ok bool) {
	limit, offset = defaultAuditPageSize, 0
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		limit = min(n, maxAuditPageSize)
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
