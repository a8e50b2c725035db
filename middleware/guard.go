package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/apitoken"
	"github.com/MrEthical07/authcore/internal"
)

// Verifier is satisfied by *authcore.Engine.
type Verifier interface {
	VerifyAccess(token string) (authcore.Claims, bool)
}

// Authenticator is satisfied by *apitoken.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (apitoken.Record, bool)
}

type claimsContextKey struct{}
type apiTokenContextKey struct{}

// ClaimsFromContext returns the access token claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (authcore.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(authcore.Claims)
	return claims, ok
}

// APITokenFromContext returns the record stored by APIToken.
func APITokenFromContext(ctx context.Context) (apitoken.Record, bool) {
	rec, ok := ctx.Value(apiTokenContextKey{}).(apitoken.Record)
	return rec, ok
}

// Guard rejects requests without a valid access token with a uniform 401.
func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return Bearer(verifier, nil)
}

// APIToken rejects requests without a valid API token with a uniform 401.
func APIToken(auth Authenticator) func(http.Handler) http.Handler {
	return Bearer(nil, auth)
}

// Bearer accepts an access token or an API token. A nil verifier or
// authenticator disables that kind of credential.
func Bearer(verifier Verifier, auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			ctx := r.Context()
			if strings.HasPrefix(token, internal.APITokenPrefix) {
				if auth == nil {
					unauthorized(w)
					return
				}
				rec, ok := auth.Authenticate(ctx, token)
				if !ok {
					unauthorized(w)
					return
				}
				ctx = context.WithValue(ctx, apiTokenContextKey{}, rec)
			} else {
				if verifier == nil {
					unauthorized(w)
					return
				}
				claims, ok := verifier.VerifyAccess(token)
				if !ok {
					unauthorized(w)
					return
				}
				ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run behind a guard. It answers 403 when the caller's role
// is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := roleFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if _, ok := allowed[role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientInfo copies the remote IP and User-Agent into the request context
// for audit events and per-IP rate limits. Proxy headers are not trusted.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		ctx := authcore.WithClientIP(r.Context(), ip)
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessCookie lets browser clients present the access token as the named
// cookie. An Authorization header, when present, wins.
func AccessCookie(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				if c, err := r.Cookie(name); err == nil && c.Value != "" {
					r = r.Clone(r.Context())
					r.Header.Set("Authorization", "Bearer "+c.Value)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func roleFromContext(ctx context.Context) (string, bool) {
	if claims, ok := ClaimsFromContext(ctx); ok {
		// Verified but roleless or non-string role is forbidden, not anonymous.
		role, _ := claims[authcore.ClaimRole].(string)
		return role, true
	}
	if rec, ok := APITokenFromContext(ctx); ok {
		return rec.Role, true
	}
	return "", false
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
