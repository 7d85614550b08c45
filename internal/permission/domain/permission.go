package domain

// Permission is a named capability such as "user:create" or "session:cleanup".
type Permission struct {
	ID     int64
	Code   string
	Name   string
	Status PermissionStatus
}

type PermissionStatus string

const (
	PermissionStatusActive   PermissionStatus = "active"
	PermissionStatusDisabled PermissionStatus = "disabled"
)

// RolePermission grants a permission to a role inside one tenant. Role ids are only
// unique per tenant, so TenantID is part of the grant.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
	TenantID     int64
}

// Well-known permission codes checked by the console's own endpoints.
const (
	CodeAuditRead      = "audit:read"
	CodeSessionCleanup = "session:cleanup"
	CodeSessionRevoke  = "session:revoke"
	CodeTenantSwitch   = "tenant:switch"
)
