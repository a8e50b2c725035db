package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt work factor used when Config.Cost is zero
	// (2^12 rounds).
	DefaultCost = 12
	// MaxSecretBytes is the longest input bcrypt consumes.
	MaxSecretBytes = 72
)

// ErrSecretTooLong is returned by Hash for inputs bcrypt would truncate.
var ErrSecretTooLong = errors.New("password: secret exceeds 72 bytes")

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Cost is the bcrypt work factor. Zero selects DefaultCost.
	Cost int
}

// Bcrypt hashes and verifies secrets at one fixed cost.
//
// Bcrypt instances are safe for concurrent use.
type Bcrypt struct {
	cost  int
	dummy []byte
}

// NewBcrypt validates cfg and prepares the reference hash that malformed
// inputs are compared against.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	seed := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, err
	}
	dummy, err := bcrypt.GenerateFromPassword(seed, cost)
	if err != nil {
		return nil, err
	}

	return &Bcrypt{cost: cost, dummy: dummy}, nil
}

// Cost returns the work factor new hashes are produced with.
func (b *Bcrypt) Cost() int { return b.cost }

// Hash returns the bcrypt encoding of secret. Each call draws a fresh salt,
// so equal inputs produce different outputs.
func (b *Bcrypt) Hash(secret string) (string, error) {
	// Raw string bytes are hashed exactly as provided (no Unicode normalization).
	if len(secret) > MaxSecretBytes {
		return "", ErrSecretTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// HashOpaqueToken hashes a bearer token for storage. It is the same transform
// as Hash.
func (b *Bcrypt) HashOpaqueToken(token string) (string, error) {
	return b.Hash(token)
}

// Verify reports whether secret matches encoded.
//
// A malformed encoding or an oversize secret still pays for one comparison at
// the configured cost before false is returned, so callers observe the same
// result and roughly the same latency as for a wrong secret.
func (b *Bcrypt) Verify(secret, encoded string) bool {
	if len(secret) > MaxSecretBytes {
		b.burn(secret)
		return false
	}
	if _, err := bcrypt.Cost([]byte(encoded)); err != nil {
		b.burn(secret)
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
	switch {
	case err == nil:
		return true
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false
	default:
		// Header parsed but salt or digest did not decode.
		b.burn(secret)
		return false
	}
}

// NeedsRehash reports whether encoded was produced with a lower cost than the
// current one, or cannot be parsed at all.
func (b *Bcrypt) NeedsRehash(encoded string) bool {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return true
	}
	return cost < b.cost
}

// burn runs a comparison against the reference hash. Its result is discarded.
func (b *Bcrypt) burn(secret string) {
	s := []byte(secret)
	if len(s) > MaxSecretBytes {
		s = s[:MaxSecretBytes]
	}
	_ = bcrypt.CompareHashAndPassword(b.dummy, s)
}

// Equal compares two secrets in constant time with respect to their contents.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
