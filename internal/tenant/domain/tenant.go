package domain

import (
	"errors"
	"time"
)

// Tenant is an isolated customer of the console. Users, roles and permission grants all belong to one tenant.
type Tenant struct {
	ID        int64
	Name      string
	Code      string
	Subdomain string
	Status    TenantStatus
	CreatedAt time.Time
}

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended"
)

// IsActive reports whether the tenant may be entered.
func (t *Tenant) IsActive() bool {
	return t != nil && t.Status == TenantStatusActive
}

// Validate validates the tenant for persistence. Returns an error describing the first validation failure.
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if t.Code == "" {
		return errors.New("code is required")
	}
	if t.Status == "" {
		t.Status = TenantStatusActive
	}
	return nil
}
