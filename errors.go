package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
)

var (
	// ErrConfiguration matches every error returned by Builder.Build and
	// LoadConfig. It is fatal: the process should not start.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrMissingClaim matches claim validation failures raised at sign time.
	ErrMissingClaim = jwt.ErrMissingClaim
	// ErrSecretTooLong is returned when a secret exceeds the hasher input limit.
	ErrSecretTooLong = password.ErrSecretTooLong
	// ErrEmptySecret is returned when an empty password or token is hashed.
	ErrEmptySecret = errors.New("secret must not be empty")
	// ErrSessionNotFound is returned when a gateway session does not exist.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrRefreshInvalid is returned for any rejected refresh attempt.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrAPITokenInvalid is returned for any rejected API token.
	ErrAPITokenInvalid = errors.New("invalid api token")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
