package authcore

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Session   SessionConfig
	Gateway   GatewayConfig
	APIToken  APITokenConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by authcore APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	// Algorithm is one of HS256, HS384, HS512, RS256, RS384, RS512.
	Algorithm string
	// Secret is the HMAC key for the HS family.
	Secret []byte
	// PrivateKey and PublicKey are PEM encoded and both required for the RS family.
	PrivateKey []byte
	PublicKey  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// ClockSkew is the leeway applied to exp at verification.
	ClockSkew time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	// Cost is the bcrypt work factor.
	Cost int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis-backed gateway session and its cookie.
type SessionConfig struct {
	RedisPrefix  string
	CookieName   string
	CookieSecure bool
	SameSite     http.SameSite
}

// GatewayConfig describes the external identity provider used by the
// login, callback and logout handlers. It is only validated when the gateway
// is constructed.
type GatewayConfig struct {
	// Issuer is the provider base URL, e.g. https://tenant.auth0.com/.
	Issuer       string
	ClientID     string
	ClientSecret string
	// BaseURL is the public URL of this application. The callback is served
	// at BaseURL + "/callback".
	BaseURL string
	Scopes  []string
	// RoleClaim names the ID token claim that carries the role.
	RoleClaim   string
	DefaultRole string
	StateTTL    time.Duration
}

// APITokenConfig controls opaque API token storage.
type APITokenConfig struct {
	RedisPrefix string
	DefaultTTL  time.Duration
}

// RateLimitConfig bounds gateway and API token attempts per fixed window.
// A zero maximum disables that limit.
type RateLimitConfig struct {
	Enabled     bool
	RedisPrefix string
	Window      time.Duration
	// MaxLoginAttempts is per client IP.
	MaxLoginAttempts int
	// MaxRefreshAttempts is per session.
	MaxRefreshAttempts int
	// MaxAPITokenFailures is per client IP; only failed authentications count.
	MaxAPITokenFailures int
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig defines a public type used by authcore APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when no option is set.
// Key material has no default.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Algorithm:  string(jwt.HS256),
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			ClockSkew:  30 * time.Second,
		},
		Password: PasswordConfig{
			Cost: password.DefaultCost,
		},
		Session: SessionConfig{
			RedisPrefix:  "acs",
			CookieName:   "authcore_sid",
			CookieSecure: true,
			SameSite:     http.SameSiteLaxMode,
		},
		Gateway: GatewayConfig{
			Scopes:      []string{"openid", "profile", "email"},
			DefaultRole: "user",
			StateTTL:    10 * time.Minute,
		},
		APIToken: APITokenConfig{
			RedisPrefix: "act",
			DefaultTTL:  90 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:             true,
			RedisPrefix:         "acr",
			Window:              time.Minute,
			MaxLoginAttempts:    30,
			MaxRefreshAttempts:  10,
			MaxAPITokenFailures: 10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.Gateway.Scopes != nil {
		out.Gateway.Scopes = append([]string(nil), cfg.Gateway.Scopes...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with.
// Key material itself is parsed later by Builder.Build.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.ClockSkew < 0 {
		return errors.New("JWT ClockSkew must be >= 0")
	}

	alg := jwt.Algorithm(c.JWT.Algorithm)
	switch alg {
	case jwt.HS256, jwt.HS384, jwt.HS512:
		if len(c.JWT.Secret) == 0 {
			return errors.New(c.JWT.Algorithm + " requires Secret")
		}
	case jwt.RS256, jwt.RS384, jwt.RS512:
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New(c.JWT.Algorithm + " requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New(c.JWT.Algorithm + " requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT algorithm")
	}

	// Password
	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return errors.New("Password Cost must be between 4 and 31")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.CookieName == "" {
		return errors.New("Session CookieName must not be empty")
	}

	// API tokens
	if c.APIToken.RedisPrefix == "" {
		return errors.New("APIToken RedisPrefix must not be empty")
	}
	if c.APIToken.DefaultTTL <= 0 {
		return errors.New("APIToken DefaultTTL must be > 0")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		if c.RateLimit.RedisPrefix == "" {
			return errors.New("RateLimit RedisPrefix must not be empty")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.MaxLoginAttempts < 0 || c.RateLimit.MaxRefreshAttempts < 0 || c.RateLimit.MaxAPITokenFailures < 0 {
			return errors.New("RateLimit maximums must be >= 0")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.JWT.ClockSkew > 2*time.Minute {
			return errors.New("ProductionMode requires JWT ClockSkew <= 2m")
		}
		if alg.Symmetric() && len(c.JWT.Secret) < 32 {
			return errors.New("ProductionMode requires HMAC secret length >= 256 bits")
		}
		if c.Password.Cost < password.DefaultCost {
			return errors.New("ProductionMode requires Password Cost >= 12")
		}
		if !c.Session.CookieSecure {
			return errors.New("ProductionMode requires Session CookieSecure")
		}
	}

	return nil
}

// Validate checks the gateway section. It is called by the gateway
// constructor, not by Config.Validate, so the engine can run without an
// identity provider.
func (g GatewayConfig) Validate() error {
	if g.Issuer == "" {
		return errors.New("Gateway Issuer is required")
	}
	if u, err := url.Parse(g.Issuer); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Gateway Issuer must be an absolute URL")
	}
	if g.ClientID == "" {
		return errors.New("Gateway ClientID is required")
	}
	if g.ClientSecret == "" {
		return errors.New("Gateway ClientSecret is required")
	}
	if u, err := url.Parse(g.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Gateway BaseURL must be an absolute URL")
	}
	if !containsScope(g.Scopes, "openid") {
		return errors.New("Gateway Scopes must include openid")
	}
	if g.DefaultRole == "" && g.RoleClaim == "" {
		return errors.New("Gateway requires DefaultRole or RoleClaim")
	}
	if g.StateTTL <= 0 {
		return errors.New("Gateway StateTTL must be > 0")
	}
	return nil
}

// CallbackURL returns the redirect URI registered with the provider.
func (g GatewayConfig) CallbackURL() string {
	return strings.TrimRight(g.BaseURL, "/") + "/callback"
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
