package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	// APITokenPrefix marks opaque API tokens so they are recognizable in logs
	// and secret scanners.
	APITokenPrefix = "act_"

	stateSize     = 32
	apiSecretSize = 32
)

var errMalformedAPIToken = errors.New("malformed api token")

// NewState returns a random base64url value for the OAuth state parameter.
func NewState() (string, error) {
	return randomString(stateSize)
}

// NewAPISecret returns the random secret half of an API token.
func NewAPISecret() (string, error) {
	return randomString(apiSecretSize)
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint is the SHA-256 digest of a high-entropy token. It is what
// server-side stores keep instead of the token itself.
func Fingerprint(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// EncodeAPIToken joins an identifier and a secret into act_<id>_<secret>.
func EncodeAPIToken(id, secret string) string {
	return APITokenPrefix + id + "_" + secret
}

// DecodeAPIToken splits a token produced by EncodeAPIToken. The secret is
// base64url and may itself contain underscores, so only the first separator
// after the prefix is significant.
func DecodeAPIToken(token string) (id, secret string, err error) {
	rest, ok := strings.CutPrefix(token, APITokenPrefix)
	if !ok {
		return "", "", errMalformedAPIToken
	}
	id, secret, ok = strings.Cut(rest, "_")
	if !ok || id == "" || secret == "" {
		return "", "", errMalformedAPIToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(secret)
	if err != nil || len(raw) != apiSecretSize {
		return "", "", errMalformedAPIToken
	}
	return id, secret, nil
}
