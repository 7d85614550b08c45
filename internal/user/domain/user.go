package domain

import (
	"errors"
	"time"

	"github.com/hugo617/healthcare-admin-sub001/internal/security"
)

// User is the core user entity. Every user belongs to one tenant; super admins may
// operate across tenants.
type User struct {
	ID           int64
	TenantID     int64
	Email        string
	Username     string
	Phone        string // optional
	Avatar       string
	RoleID       int64
	IsSuperAdmin bool
	PasswordHash string
	Status       UserStatus
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" && u.Username == "" {
		return errors.New("email or username is required")
	}
	if u.TenantID == 0 && !u.IsSuperAdmin {
		return errors.New("tenant is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// AuthUser returns the identity snapshot embedded in tokens issued for u while
// tenantID is current.
func (u *User) AuthUser(tenantID int64) security.AuthUser {
	return security.AuthUser{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		Phone:        u.Phone,
		Avatar:       u.Avatar,
		RoleID:       u.RoleID,
		TenantID:     tenantID,
		IsSuperAdmin: u.IsSuperAdmin,
	}
}
