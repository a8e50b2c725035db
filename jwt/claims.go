package jwt

import (
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Registered claim names used by the signer and verifier.
const (
	ClaimSubject   = "sub"
	ClaimRole      = "role"
	ClaimSessionID = "sid"
	ClaimType      = "type"
	ClaimExpiry    = "exp"
	ClaimTokenID   = "jti"
)

// TokenType is the value of the type claim.
type TokenType string

const (
	// TypeAccess marks short-lived tokens that authorize requests.
	TypeAccess TokenType = "access"
	// TypeRefresh marks long-lived tokens that can only mint new pairs.
	TypeRefresh TokenType = "refresh"
)

// Claims is the claim set carried by a token, keyed by claim name.
//
// Values decoded from a verified token follow encoding/json rules, so numbers
// come back as float64.
type Claims map[string]any

// Clone returns a shallow copy of c.
func (c Claims) Clone() Claims {
	if c == nil {
		return nil
	}
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Subject returns the sub claim, or "" when absent or not a string.
func (c Claims) Subject() string { return c.str(ClaimSubject) }

// Role returns the role claim, or "" when absent or not a string.
func (c Claims) Role() string { return c.str(ClaimRole) }

// SessionID returns the sid claim, or "" when absent or not a string.
func (c Claims) SessionID() string { return c.str(ClaimSessionID) }

// Type returns the type claim.
func (c Claims) Type() TokenType { return TokenType(c.str(ClaimType)) }

// ExpiresAt returns the exp claim. The zero time is returned when exp is
// absent or not numeric.
func (c Claims) ExpiresAt() time.Time {
	exp, err := gjwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (c Claims) str(name string) string {
	v, _ := c[name].(string)
	return v
}
