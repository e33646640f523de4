package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for session tokens. Sessions
// are invalidated only by expiry (no server-side revocation list), so
// the window doubles as the maximum idle time.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Claims are the session-token claims. Keep changes additive to avoid
// invalidating tokens already held by browsers.
type Claims struct {
	jwt.RegisteredClaims

	// Email is the normalized address the session was issued for.
	Email string `json:"email,omitempty"`

	// Role is the single role string carried by the session.
	Role string `json:"role,omitempty"`

	// Name is the display name shown by the dashboard.
	Name string `json:"name,omitempty"`
}

// NewSessionClaims builds minimally-correct session claims with sub set
// to the identity id.
func NewSessionClaims(
	subject, email, role, name string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email: email,
		Role:  role,
		Name:  name,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't being
// used before it is valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}

// ValidateIssuer checks the issuer claim against the expected value.
// An empty expected value enforces nothing.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}
