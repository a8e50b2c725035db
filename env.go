package authcore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables recognized by LoadConfig.
const (
	EnvJWTAlgorithm      = "AUTHCORE_JWT_ALGORITHM"
	EnvJWTSecret         = "AUTHCORE_JWT_SECRET_KEY"
	EnvJWTPrivateKey     = "AUTHCORE_JWT_PRIVATE_KEY"
	EnvJWTPublicKey      = "AUTHCORE_JWT_PUBLIC_KEY"
	EnvJWTAccessTTL      = "AUTHCORE_JWT_ACCESS_TOKEN_TTL"
	EnvJWTRefreshTTL     = "AUTHCORE_JWT_REFRESH_TOKEN_TTL"
	EnvJWTClockSkew      = "AUTHCORE_JWT_CLOCK_SKEW_SECONDS"
	EnvPasswordCost      = "AUTHCORE_PASSWORD_COST"
	EnvProductionMode    = "AUTHCORE_PRODUCTION_MODE"
	EnvSessionPrefix     = "AUTHCORE_SESSION_REDIS_PREFIX"
	EnvSessionCookie     = "AUTHCORE_SESSION_COOKIE_NAME"
	EnvCookieSecure      = "AUTHCORE_SESSION_COOKIE_SECURE"
	EnvAuth0Domain       = "AUTHCORE_AUTH0_DOMAIN"
	EnvOIDCIssuer        = "AUTHCORE_OIDC_ISSUER"
	EnvClientID          = "AUTHCORE_CLIENT_ID"
	EnvClientSecret      = "AUTHCORE_CLIENT_SECRET"
	EnvBaseURL           = "AUTHCORE_BASE_URL"
	EnvRoleClaim         = "AUTHCORE_ROLE_CLAIM"
	EnvDefaultRole       = "AUTHCORE_DEFAULT_ROLE"
	EnvAPITokenTTL       = "AUTHCORE_API_TOKEN_TTL"
	EnvRateLimitEnabled  = "AUTHCORE_RATE_LIMIT_ENABLED"
	EnvRateLimitWindow   = "AUTHCORE_RATE_LIMIT_WINDOW"
	EnvAuditEnabled      = "AUTHCORE_AUDIT_ENABLED"
	EnvAuditBuffer       = "AUTHCORE_AUDIT_BUFFER_SIZE"
	EnvMetricsEnabled    = "AUTHCORE_METRICS_ENABLED"
	EnvLatencyHistograms = "AUTHCORE_METRICS_LATENCY_HISTOGRAMS"

	fileSuffix = "_FILE"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadConfigFromEnv is LoadConfig over the process environment.
func LoadConfigFromEnv() (Config, error) {
	return LoadConfig(os.LookupEnv)
}

// LoadConfig starts from DefaultConfig and applies every AUTHCORE_* variable
// that lookup reports. Key material may be given inline or through a
// companion *_FILE variable holding a path. Unparsable values are errors
// matching ErrConfiguration; the result is not validated.
func LoadConfig(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r := envReader{lookup: lookup}
	cfg := DefaultConfig()

	cfg.JWT.Algorithm = strings.ToUpper(r.String(EnvJWTAlgorithm, cfg.JWT.Algorithm))
	cfg.JWT.Secret = r.Bytes(EnvJWTSecret)
	cfg.JWT.PrivateKey = r.Bytes(EnvJWTPrivateKey)
	cfg.JWT.PublicKey = r.Bytes(EnvJWTPublicKey)
	cfg.JWT.AccessTTL = r.Duration(EnvJWTAccessTTL, cfg.JWT.AccessTTL)
	cfg.JWT.RefreshTTL = r.Duration(EnvJWTRefreshTTL, cfg.JWT.RefreshTTL)
	cfg.JWT.ClockSkew = time.Duration(r.Int(EnvJWTClockSkew, int(cfg.JWT.ClockSkew/time.Second))) * time.Second

	cfg.Password.Cost = r.Int(EnvPasswordCost, cfg.Password.Cost)
	cfg.Security.ProductionMode = r.Bool(EnvProductionMode, cfg.Security.ProductionMode)

	cfg.Session.RedisPrefix = r.String(EnvSessionPrefix, cfg.Session.RedisPrefix)
	cfg.Session.CookieName = r.String(EnvSessionCookie, cfg.Session.CookieName)
	cfg.Session.CookieSecure = r.Bool(EnvCookieSecure, cfg.Session.CookieSecure)

	if domain := r.String(EnvAuth0Domain, ""); domain != "" {
		cfg.Gateway.Issuer = "https://" + strings.Trim(domain, "/") + "/"
	}
	cfg.Gateway.Issuer = r.String(EnvOIDCIssuer, cfg.Gateway.Issuer)
	cfg.Gateway.ClientID = r.String(EnvClientID, "")
	cfg.Gateway.ClientSecret = r.String(EnvClientSecret, "")
	cfg.Gateway.BaseURL = r.String(EnvBaseURL, "")
	cfg.Gateway.RoleClaim = r.String(EnvRoleClaim, "")
	cfg.Gateway.DefaultRole = r.String(EnvDefaultRole, cfg.Gateway.DefaultRole)

	cfg.APIToken.DefaultTTL = r.Duration(EnvAPITokenTTL, cfg.APIToken.DefaultTTL)
	cfg.RateLimit.Enabled = r.Bool(EnvRateLimitEnabled, cfg.RateLimit.Enabled)
	cfg.RateLimit.Window = r.Duration(EnvRateLimitWindow, cfg.RateLimit.Window)

	cfg.Audit.Enabled = r.Bool(EnvAuditEnabled, cfg.Audit.Enabled)
	cfg.Audit.BufferSize = r.Int(EnvAuditBuffer, cfg.Audit.BufferSize)
	cfg.Metrics.Enabled = r.Bool(EnvMetricsEnabled, cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = r.Bool(EnvLatencyHistograms, cfg.Metrics.EnableLatencyHistograms)

	if r.err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, r.err)
	}
	return cfg, nil
}

// envReader keeps the first parse error so call sites stay linear.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (r *envReader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) fail(key, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s=%q: %w", key, v, err)
	}
}

func (r *envReader) String(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *envReader) Bool(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *envReader) Int(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	if n < 0 {
		r.fail(key, v, fmt.Errorf("must be >= 0"))
		return def
	}
	return n
}

func (r *envReader) Duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	if d <= 0 {
		r.fail(key, v, fmt.Errorf("must be > 0"))
		return def
	}
	return d
}

// Bytes reads key inline, or the file named by key_FILE. Setting both is an
// error. Values are not trimmed so PEM blocks survive intact.
func (r *envReader) Bytes(key string) []byte {
	inline, hasInline := r.lookup(key)
	path, hasFile := r.raw(key + fileSuffix)
	hasInline = hasInline && strings.TrimSpace(inline) != ""

	switch {
	case hasInline && hasFile:
		r.fail(key, "<redacted>", fmt.Errorf("set either %s or %s%s, not both", key, key, fileSuffix))
		return nil
	case hasFile:
		b, err := os.ReadFile(path)
		if err != nil {
			r.fail(key+fileSuffix, path, err)
			return nil
		}
		return b
	case hasInline:
		// Inline PEM often arrives with escaped newlines.
		if strings.Contains(inline, "-----BEGIN") {
			inline = strings.ReplaceAll(inline, `\n`, "\n")
		}
		return []byte(inline)
	}
	return nil
}
