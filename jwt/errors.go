package jwt

import "errors"

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("jwt: invalid configuration")
	// ErrMissingClaim is matched by every *ClaimError.
	ErrMissingClaim = errors.New("jwt: required claim missing")
)

// ConfigError reports unusable Manager configuration. It is raised once, by
// NewManager, and is meant to stop process startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "jwt: invalid " + e.Field + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// ClaimError reports a claim set rejected before signing.
type ClaimError struct {
	Claim string
}

func (e *ClaimError) Error() string {
	return "jwt: claim " + e.Claim + " is required and must be a non-empty string"
}

func (e *ClaimError) Unwrap() error { return ErrMissingClaim }
