package security

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the opaque hash/verify primitive used by login.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// Hasher implements PasswordHasher with bcrypt. Plaintext secrets are never logged or stored.
type Hasher struct {
	Cost int
	// dummy is compared against when the account does not exist so that
	// unknown and known accounts take the same time to reject.
	dummy []byte
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to [bcrypt.MinCost, bcrypt.MaxCost].
// A non-positive cost selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("healthcare-console-dummy"), cost)
	return &Hasher{Cost: cost, dummy: dummy}
}

// Hash returns the bcrypt digest of secret.
func (h *Hasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether secret matches digest. An empty digest always fails,
// after spending the same bcrypt work as a real comparison.
func (h *Hasher) Verify(secret, digest string) bool {
	if digest == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
