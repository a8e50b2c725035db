package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/MrEthical07/authcore/password"
)

var errIDToken = errors.New("id token rejected")

// Claims that describe the token itself rather than the user. They are not
// copied into the session profile.
var nonProfileClaims = map[string]struct{}{
	"iss": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {}, "jti": {},
	"nonce": {}, "at_hash": {}, "c_hash": {}, "azp": {}, "auth_time": {}, "sid": {},
}

// IDToken is a verified provider identity.
type IDToken struct {
	Subject string
	Profile map[string]any
	token   jwt.Token
}

// Claim returns a raw claim value.
func (t *IDToken) Claim(name string) (any, bool) {
	if t == nil || t.token == nil {
		return nil, false
	}
	return t.token.Get(name)
}

// IDTokenVerifier checks ID tokens against the provider JWKS, which is
// cached and refreshed in the background.
type IDTokenVerifier struct {
	cache    *jwk.Cache
	jwksURI  string
	issuer   string
	audience string
	skew     time.Duration
	now      func() time.Time
}

// NewIDTokenVerifier registers the JWKS of meta and fetches it once. The
// cache refresh goroutine stops when ctx is done.
func NewIDTokenVerifier(
	ctx context.Context,
	meta *Metadata,
	clientID string,
	skew time.Duration,
	client *http.Client,
	now func() time.Time,
) (*IDTokenVerifier, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if now == nil {
		now = time.Now
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(
		meta.JWKSURI,
		jwk.WithHTTPClient(client),
		jwk.WithMinRefreshInterval(15*time.Minute),
	); err != nil {
		return nil, fmt.Errorf("register jwks: %w", err)
	}
	if _, err := cache.Refresh(ctx, meta.JWKSURI); err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	return &IDTokenVerifier{
		cache:    cache,
		jwksURI:  meta.JWKSURI,
		issuer:   meta.Issuer,
		audience: clientID,
		skew:     skew,
		now:      now,
	}, nil
}

// Verify checks signature, issuer, audience, expiry with skew and nonce.
func (v *IDTokenVerifier) Verify(ctx context.Context, raw, nonce string) (*IDToken, error) {
	set, err := v.cache.Get(ctx, v.jwksURI)
	if err != nil {
		return nil, fmt.Errorf("%w: jwks unavailable: %w", errIDToken, err)
	}

	tok, err := jwt.Parse([]byte(raw), jwt.WithKeySet(set), jwt.WithValidate(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errIDToken, err)
	}

	err = jwt.Validate(tok,
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errIDToken, err)
	}

	if tok.Subject() == "" {
		return nil, fmt.Errorf("%w: missing sub", errIDToken)
	}
	got, _ := tok.Get("nonce")
	gotNonce, _ := got.(string)
	if nonce == "" || !password.Equal(gotNonce, nonce) {
		return nil, fmt.Errorf("%w: nonce mismatch", errIDToken)
	}

	all, err := tok.AsMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errIDToken, err)
	}
	profile := make(map[string]any, len(all))
	for k, val := range all {
		if _, skip := nonProfileClaims[k]; skip {
			continue
		}
		profile[k] = val
	}

	return &IDToken{Subject: tok.Subject(), Profile: profile, token: tok}, nil
}

// roleFrom reads claim as a string or the first string of an array. def is
// returned when the claim is absent or unusable.
func roleFrom(id *IDToken, claim, def string) string {
	if claim == "" {
		return def
	}
	v, ok := id.Claim(claim)
	if !ok {
		return def
	}
	switch r := v.(type) {
	case string:
		if r != "" {
			return r
		}
	case []any:
		for _, item := range r {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	case []string:
		if len(r) > 0 && r[0] != "" {
			return r[0]
		}
	}
	return def
}
