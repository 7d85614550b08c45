package repository

import (
	"context"
	"time"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) when no row matches;
// errors are reserved for storage failures.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetActive returns the active session with the given id and token hash.
	GetActive(ctx context.Context, id, tokenHash string) (*domain.Session, error)
	// GetActiveByTokenHash returns the active session bound to tokenHash.
	GetActiveByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// ListActiveByUser returns active sessions of userID that expire after now, most recently accessed first.
	ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]*domain.Session, error)
	// Deactivate flips an active session to inactive and reports whether a row changed.
	Deactivate(ctx context.Context, id string) (bool, error)
	// DeactivateByUser deactivates the active sessions of userID, restricted to deviceTypes when
	// non-empty and skipping exceptID when non-empty. Returns the number of rows changed.
	DeactivateByUser(ctx context.Context, userID int64, deviceTypes []client.DeviceType, exceptID string) (int64, error)
	UpdateLastAccessed(ctx context.Context, id string, at time.Time) error
	// DeleteStale removes rows that expired before now, and inactive rows created before inactiveBefore.
	DeleteStale(ctx context.Context, now, inactiveBefore time.Time) (int64, error)
}
