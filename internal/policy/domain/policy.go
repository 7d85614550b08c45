package domain

import "time"

// Policy is a tenant-level Rego module that overrides the default resource-scope policy.
type Policy struct {
	ID        string
	TenantID  int64
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
