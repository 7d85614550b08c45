package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HMAC secret size accepted by NewTokenCodec.
const MinSecretLength = 32

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, or expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakSecret is returned by NewTokenCodec when the signing secret is too short.
	ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")
)

// AuthUser is the identity snapshot embedded in every bearer token.
// It is immutable once issued; changes to the user row only show up after re-issuance.
type AuthUser struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Phone        string `json:"phone,omitempty"`
	Avatar       string `json:"avatar"`
	RoleID       int64  `json:"roleId"`
	TenantID     int64  `json:"tenantId"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// UserClaims holds JWT claims for a console bearer token.
type UserClaims struct {
	AuthUser
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 bearer tokens carrying an AuthUser.
type TokenCodec struct {
	secret  []byte
	ttl     time.Duration
	longTTL time.Duration
	nowF    func() time.Time
}

// NewTokenCodec returns a TokenCodec signing with secret. ttl is the normal token lifetime,
// longTTL the "remember me" lifetime. Non-positive TTLs fall back to 24h and 30d.
func NewTokenCodec(secret []byte, ttl, longTTL time.Duration) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if longTTL <= 0 {
		longTTL = 30 * 24 * time.Hour
	}
	return &TokenCodec{secret: secret, ttl: ttl, longTTL: longTTL, nowF: time.Now}, nil
}

// Issue signs a token for user. longLived selects the persistent-login TTL.
// Every call embeds a fresh jti, so two tokens for the same user never collide.
func (c *TokenCodec) Issue(user AuthUser, longLived bool) (string, error) {
	now := c.nowF().UTC()
	ttl := c.ttl
	if longLived {
		ttl = c.longTTL
	}
	claims := UserClaims{
		AuthUser: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify parses and validates tokenString (signature, algorithm, exp).
// Any failure is reported as ErrInvalidToken; callers treat it as "not authenticated".
func (c *TokenCodec) Verify(tokenString string) (*AuthUser, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return nil, err
	}
	u := claims.AuthUser
	return &u, nil
}

// RemainingSeconds returns the seconds until tokenString expires, or a value <= 0
// when it is invalid or already expired. Intended for client-side expiry hints only.
func (c *TokenCodec) RemainingSeconds(tokenString string) int64 {
	claims, err := c.parse(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return int64(claims.ExpiresAt.Time.Sub(c.nowF()).Seconds())
}

func (c *TokenCodec) parse(tokenString string) (*UserClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowF),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid || claims.AuthUser.ID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
