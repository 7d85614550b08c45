package domain

import (
	"time"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
)

// Session is one authenticated device or browser of a user, bound to exactly one bearer token.
type Session struct {
	ID             string
	UserID         int64
	TokenHash      string // SHA-256 hex of the bearer token that created the session
	DeviceType     client.DeviceType
	DeviceID       string
	DeviceName     string
	Platform       string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time
	IsActive       bool
}

// Usable reports whether the session may authenticate a request at now.
func (s *Session) Usable(now time.Time) bool {
	return s != nil && s.IsActive && now.Before(s.ExpiresAt)
}

// ListItem is a session as shown to its owner, flagged when it belongs to the caller's own token.
type ListItem struct {
	ID             string            `json:"sessionId"`
	DeviceType     client.DeviceType `json:"deviceType"`
	DeviceID       string            `json:"deviceId,omitempty"`
	DeviceName     string            `json:"deviceName,omitempty"`
	Platform       string            `json:"platform,omitempty"`
	IPAddress      string            `json:"ipAddress,omitempty"`
	UserAgent      string            `json:"userAgent,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastAccessedAt time.Time         `json:"lastAccessedAt"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	IsCurrent      bool              `json:"isCurrent"`
}
