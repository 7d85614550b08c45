package domain

import "time"

// AuditLog represents an audit event. TenantID and UserID are 0 for system
// events such as a failed login before the account is known.
type AuditLog struct {
	ID        string
	TenantID  int64
	UserID    int64
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
