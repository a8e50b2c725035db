package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Algorithm names a JWS signing algorithm accepted by the Manager.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
	RS256 Algorithm = "RS256"
	RS384 Algorithm = "RS384"
	RS512 Algorithm = "RS512"
)

// Symmetric reports whether a belongs to the HMAC family.
func (a Algorithm) Symmetric() bool {
	return strings.HasPrefix(string(a), "HS")
}

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Algorithm Algorithm

	// Secret is the HMAC key. Required for the HS family, ignored otherwise.
	Secret []byte
	// PrivateKey and PublicKey are PEM encoded RSA keys. Both are required
	// for the RS family.
	PrivateKey []byte
	PublicKey  []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Leeway is added to exp when verifying. It never applies at signing.
	Leeway time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager signs and verifies access and refresh tokens with one fixed key
// configuration. It holds no mutable state and is safe for concurrent use.
type Manager struct {
	alg        Algorithm
	method     gjwt.SigningMethod
	signKey    any
	verifyKey  any
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
	parser     *gjwt.Parser
}

var (
	errWrongType  = errors.New("token type mismatch")
	errBadClaims  = errors.New("token claims invalid")
	errWrongAlg   = errors.New("unexpected signing algorithm")
	errNotYetUsed = errors.New("token not valid yet")
	accessClaims  = []string{ClaimSubject, ClaimRole, ClaimSessionID}
	refreshClaims = []string{ClaimSubject, ClaimSessionID}
)

// NewManager validates cfg and loads its key material. Any problem is
// reported as a *ConfigError.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, &ConfigError{Field: "AccessTTL", Reason: "must be > 0"}
	}
	if cfg.RefreshTTL <= 0 {
		return nil, &ConfigError{Field: "RefreshTTL", Reason: "must be > 0"}
	}
	if cfg.Leeway < 0 {
		return nil, &ConfigError{Field: "Leeway", Reason: "must be >= 0"}
	}

	method := gjwt.GetSigningMethod(string(cfg.Algorithm))
	if method == nil {
		return nil, &ConfigError{Field: "Algorithm", Reason: fmt.Sprintf("unsupported algorithm %q", cfg.Algorithm)}
	}

	m := &Manager{
		alg:        cfg.Algorithm,
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		leeway:     cfg.Leeway,
		now:        cfg.Now,
	}
	if m.now == nil {
		m.now = time.Now
	}

	switch {
	case cfg.Algorithm.Symmetric():
		if len(cfg.Secret) == 0 {
			return nil, &ConfigError{Field: "Secret", Reason: string(cfg.Algorithm) + " requires a secret"}
		}
		secret := make([]byte, len(cfg.Secret))
		copy(secret, cfg.Secret)
		m.signKey, m.verifyKey = secret, secret
	case strings.HasPrefix(string(cfg.Algorithm), "RS"):
		priv, pub, err := loadRSAPair(cfg.Algorithm, cfg.PrivateKey, cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.signKey, m.verifyKey = priv, pub
	default:
		return nil, &ConfigError{Field: "Algorithm", Reason: fmt.Sprintf("unsupported algorithm %q", cfg.Algorithm)}
	}

	m.parser = gjwt.NewParser(
		gjwt.WithValidMethods([]string{m.method.Alg()}),
		gjwt.WithExpirationRequired(),
		gjwt.WithLeeway(m.leeway),
		gjwt.WithTimeFunc(m.now),
	)

	return m, nil
}

func loadRSAPair(alg Algorithm, privPEM, pubPEM []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if len(privPEM) == 0 || len(pubPEM) == 0 {
		return nil, nil, &ConfigError{Field: "PrivateKey/PublicKey", Reason: string(alg) + " requires both private and public keys"}
	}
	priv, err := gjwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, nil, &ConfigError{Field: "PrivateKey", Reason: "not a PEM encoded RSA private key"}
	}
	pub, err := gjwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, nil, &ConfigError{Field: "PublicKey", Reason: "not a PEM encoded RSA public key"}
	}
	if !priv.PublicKey.Equal(pub) {
		return nil, nil, &ConfigError{Field: "PublicKey", Reason: "does not match PrivateKey"}
	}
	return priv, pub, nil
}

// Algorithm returns the configured signing algorithm.
func (m *Manager) Algorithm() Algorithm { return m.alg }

// AccessTTL returns the lifetime given to access tokens.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the lifetime given to refresh tokens.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// Leeway returns the clock skew tolerated on exp.
func (m *Manager) Leeway() time.Duration { return m.leeway }

// SignAccess signs claims as an access token. sub, role and sid are required;
// exp and type are set by the signer. claims is not modified.
func (m *Manager) SignAccess(claims Claims) (string, error) {
	if err := requireClaims(claims, accessClaims); err != nil {
		return "", err
	}
	return m.sign(claims, TypeAccess, m.accessTTL)
}

// SignRefresh signs claims as a refresh token. sub and sid are required;
// role is optional.
func (m *Manager) SignRefresh(claims Claims) (string, error) {
	if err := requireClaims(claims, refreshClaims); err != nil {
		return "", err
	}
	return m.sign(claims, TypeRefresh, m.refreshTTL)
}

// VerifyAccess returns the claims of a valid access token. ok is false for
// any rejected token, whatever the reason.
func (m *Manager) VerifyAccess(token string) (claims Claims, ok bool) {
	return m.verify(token, TypeAccess)
}

// VerifyRefresh returns the claims of a valid refresh token. ok is false for
// any rejected token, whatever the reason.
func (m *Manager) VerifyRefresh(token string) (claims Claims, ok bool) {
	return m.verify(token, TypeRefresh)
}

func (m *Manager) sign(claims Claims, typ TokenType, ttl time.Duration) (string, error) {
	payload := make(gjwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	payload[ClaimExpiry] = gjwt.NewNumericDate(m.now().Add(ttl))
	payload[ClaimType] = string(typ)

	return gjwt.NewWithClaims(m.method, payload).SignedString(m.signKey)
}

func (m *Manager) verify(token string, want TokenType) (Claims, bool) {
	claims, err := m.parse(token, want)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (m *Manager) parse(tokenStr string, want TokenType) (Claims, error) {
	payload := gjwt.MapClaims{}
	token, err := m.parser.ParseWithClaims(tokenStr, payload, m.keyFunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, gjwt.ErrTokenInvalidClaims
	}

	// The parser's leeway also widens nbf. Only exp gets the skew.
	nbf, err := payload.GetNotBefore()
	if err != nil {
		return nil, err
	}
	if nbf != nil && m.now().Before(nbf.Time) {
		return nil, errNotYetUsed
	}

	claims := Claims(payload)
	if claims.Type() != want {
		return nil, errWrongType
	}
	required := refreshClaims
	if want == TypeAccess {
		required = accessClaims
	}
	if requireClaims(claims, required) != nil {
		return nil, errBadClaims
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *gjwt.Token) (any, error) {
	if t.Method == nil || t.Method.Alg() != m.method.Alg() {
		return nil, errWrongAlg
	}
	return m.verifyKey, nil
}

// requireClaims checks presence. sub and sid key sessions, so they must also
// be non-empty strings; role may be any non-null value.
func requireClaims(claims Claims, names []string) error {
	for _, name := range names {
		v, present := claims[name]
		if !present || v == nil {
			return &ClaimError{Claim: name}
		}
		if name == ClaimSubject || name == ClaimSessionID {
			if s, _ := v.(string); s == "" {
				return &ClaimError{Claim: name}
			}
		}
	}
	return nil
}
