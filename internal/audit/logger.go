package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit/domain"
	auditrepo "github.com/hugo617/healthcare-admin-sub001/internal/audit/repository"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/telemetry"
	telemetrydomain "github.com/hugo617/healthcare-admin-sub001/internal/telemetry/domain"
)

// Actions recorded by the auth and session code paths.
const (
	ActionLogin               = "login"
	ActionLoginFailure        = "login_failure"
	ActionLogout              = "logout"
	ActionSessionRevoke       = "session_revoke"
	ActionSessionRevokeAll    = "session_revoke_all"
	ActionSessionRevokeOthers = "session_revoke_others"
	ActionTenantSwitch        = "tenant_switch"
	ActionSessionCleanup      = "session_cleanup"
)

// Resources named on audit entries.
const (
	ResourceAuth    = "auth"
	ResourceSession = "session"
	ResourceTenant  = "tenant"
)

// Source is the telemetry source recorded on emitted audit events.
const Source = "audit"

// writeTimeout bounds the audit row insert so a slow database cannot stall the caller.
const writeTimeout = 3 * time.Second

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by auth and session code paths.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, tenantID, userID int64, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository, an optional event emitter and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	emitter     telemetry.EventEmitter
	ipExtractor IPExtractor
	nowF        func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and emits to emitter.
// Either may be nil. ipExtractor may be nil; then the address recorded by the transport
// (authctx.GetClientIP) is used, and "unknown" when none was recorded.
func NewLogger(repo auditrepo.Repository, emitter telemetry.EventEmitter, ipExtractor IPExtractor) *Logger {
	if ipExtractor == nil {
		ipExtractor = authctx.GetClientIP
	}
	return &Logger{repo: repo, emitter: emitter, ipExtractor: ipExtractor, nowF: time.Now}
}

// LogEvent writes one audit log entry and emits it asynchronously. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, tenantID, userID int64, action, resource, metadata string) {
	if l == nil || (l.repo == nil && l.emitter == nil) {
		return
	}
	ip := l.ipExtractor(ctx)
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.nowF().UTC(),
	}
	if l.repo != nil {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		err := l.repo.Create(writeCtx, entry)
		cancel()
		if err != nil {
			zap.L().Warn("audit: failed to log event",
				zap.String("action", action), zap.String("resource", resource), zap.Error(err))
		}
	}
	if l.emitter != nil {
		sessionID, _ := authctx.GetSessionID(ctx)
		telemetry.EmitAsync(l.emitter, ctx, toEvent(entry, sessionID))
	}
}

func toEvent(entry *domain.AuditLog, sessionID string) *telemetrydomain.Event {
	return &telemetrydomain.Event{
		ID:        entry.ID,
		TenantID:  entry.TenantID,
		UserID:    entry.UserID,
		SessionID: sessionID,
		EventType: entry.Action,
		Source:    Source,
		Metadata:  metadataJSON(entry),
		CreatedAt: entry.CreatedAt,
	}
}

// metadataJSON wraps the entry's resource, ip and free-form metadata as a JSON object.
func metadataJSON(entry *domain.AuditLog) json.RawMessage {
	body := map[string]any{"resource": entry.Resource, "ip": entry.IP}
	if entry.Metadata != "" {
		if json.Valid([]byte(entry.Metadata)) {
			body["detail"] = json.RawMessage(entry.Metadata)
		} else {
			body["detail"] = entry.Metadata
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return b
}

// Metadata encodes kv as a JSON object for LogEvent. It returns "" for an empty map.
func Metadata(kv map[string]any) string {
	if len(kv) == 0 {
		return ""
	}
	b, err := json.Marshal(kv)
	if err != nil {
		return ""
	}
	return string(b)
}
