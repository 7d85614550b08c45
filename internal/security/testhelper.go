package security

import "time"

// testSecret is a fixed HMAC secret for unit tests only. Do not use in production.
const testSecret = "test-secret-0123456789abcdef0123456789abcdef"

// NewTestTokenCodec returns a TokenCodec with a fixed secret and the default TTLs.
// For unit tests only.
func NewTestTokenCodec() *TokenCodec {
	c, err := NewTokenCodec([]byte(testSecret), 24*time.Hour, 30*24*time.Hour)
	if err != nil {
		panic(err)
	}
	return c
}

// NewTestTokenCodecAt is like NewTestTokenCodec but reads the current time from now.
// For unit tests that need to move the clock past expiry.
func NewTestTokenCodecAt(now func() time.Time) *TokenCodec {
	c := NewTestTokenCodec()
	c.nowF = now
	return c
}
