package domain

import (
	"encoding/json"
	"time"
)

// Event is a telemetry or audit event. Tenant, user and session are optional.
type Event struct {
	ID        string          `json:"id"`
	TenantID  int64           `json:"tenant_id,omitempty"`
	UserID    int64           `json:"user_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
