package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// Claims is the claim set carried by access and refresh tokens.
type Claims = jwt.Claims

// Claim names set or required by the signer.
const (
	ClaimSubject   = jwt.ClaimSubject
	ClaimRole      = jwt.ClaimRole
	ClaimSessionID = jwt.ClaimSessionID
	ClaimType      = jwt.ClaimType
	ClaimExpiry    = jwt.ClaimExpiry
	ClaimTokenID   = jwt.ClaimTokenID
)

// Identity is an authenticated principal handed to IssuePair by login
// infrastructure. The core never produces Subject or Role itself.
type Identity struct {
	Subject string
	Role    string
	// SessionID binds the token pair to one login session. A random UUID is
	// generated when empty.
	SessionID string
	// Extra claims copied into the access token. Reserved names are ignored.
	Extra map[string]any
}

// TokenPair is the result of IssuePair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	SessionID        string    `json:"-"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SecurityReport summarizes the active security posture. It never contains
// key material.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	AsymmetricKeys   bool
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ClockSkew        time.Duration
	PasswordCost     int
	AuditEnabled     bool
	MetricsEnabled   bool
	// Warnings lists weak settings by stable code, e.g. "low_password_cost".
	Warnings []string
}
