package authcore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(lookupFrom(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := DefaultConfig()
	if cfg.JWT.AccessTTL != def.JWT.AccessTTL || cfg.Password.Cost != def.Password.Cost {
		t.Fatalf("defaults not kept: %+v", cfg.JWT)
	}
	if cfg.Gateway.Issuer != "" || cfg.JWT.Secret != nil {
		t.Fatal("unexpected values without environment")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(lookupFrom(map[string]string{
		EnvJWTAlgorithm:     "hs384",
		EnvJWTSecret:        "0123456789abcdef0123456789abcdef",
		EnvJWTAccessTTL:     "5m",
		EnvJWTRefreshTTL:    "48h",
		EnvJWTClockSkew:     "10",
		EnvPasswordCost:     "13",
		EnvProductionMode:   "true",
		EnvCookieSecure:     "false",
		EnvAuth0Domain:      "tenant.eu.auth0.com",
		EnvClientID:         "cid",
		EnvClientSecret:     "csecret",
		EnvBaseURL:          "https://app.example.com",
		EnvRoleClaim:        "https://app/roles",
		EnvAPITokenTTL:      "720h",
		EnvRateLimitEnabled: "false",
		EnvRateLimitWindow:  "30s",
		EnvAuditEnabled:     "1",
		EnvMetricsEnabled:   "true",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.JWT.Algorithm != "HS384" || string(cfg.JWT.Secret) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("jwt = %+v", cfg.JWT)
	}
	if cfg.JWT.AccessTTL != 5*time.Minute || cfg.JWT.RefreshTTL != 48*time.Hour || cfg.JWT.ClockSkew != 10*time.Second {
		t.Fatalf("durations = %+v", cfg.JWT)
	}
	if cfg.Password.Cost != 13 || !cfg.Security.ProductionMode || cfg.Session.CookieSecure {
		t.Fatalf("cost/production/cookie = %d %v %v", cfg.Password.Cost, cfg.Security.ProductionMode, cfg.Session.CookieSecure)
	}
	if cfg.Gateway.Issuer != "https://tenant.eu.auth0.com/" || cfg.Gateway.ClientID != "cid" || cfg.Gateway.RoleClaim != "https://app/roles" {
		t.Fatalf("gateway = %+v", cfg.Gateway)
	}
	if cfg.APIToken.DefaultTTL != 720*time.Hour || cfg.RateLimit.Enabled || cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("api token / rate limit = %+v %+v", cfg.APIToken, cfg.RateLimit)
	}
	if !cfg.Audit.Enabled || !cfg.Metrics.Enabled {
		t.Fatal("audit/metrics not enabled")
	}
}

func TestLoadConfigIssuerWinsOverDomain(t *testing.T) {
	cfg, err := LoadConfig(lookupFrom(map[string]string{
		EnvAuth0Domain: "tenant.auth0.com",
		EnvOIDCIssuer:  "https://idp.example.com/realms/x",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Issuer != "https://idp.example.com/realms/x" {
		t.Fatalf("issuer = %q", cfg.Gateway.Issuer)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := map[string]map[string]string{
		"bad duration":     {EnvJWTAccessTTL: "fifteen"},
		"zero duration":    {EnvJWTRefreshTTL: "0s"},
		"bad bool":         {EnvProductionMode: "maybe"},
		"bad int":          {EnvPasswordCost: "twelve"},
		"negative skew":    {EnvJWTClockSkew: "-5"},
		"inline and file":  {EnvJWTSecret: "abc", EnvJWTSecret + "_FILE": "/tmp/x"},
		"missing key file": {EnvJWTPrivateKey + "_FILE": "/nonexistent/authcore/key.pem"},
	}
	for name, env := range tests {
		_, err := LoadConfig(lookupFrom(env))
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%s: expected ErrConfiguration, got %v", name, err)
		}
	}
}

func TestLoadConfigKeyFiles(t *testing.T) {
	privPEM, pubPEM := rsaKeyPEM(t)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	privVar := EnvJWTPrivateKey + "_FILE"
	pubVar := EnvJWTPublicKey + "_FILE"
	env := map[string]string{
		EnvJWTAlgorithm: "RS256",
		EnvPasswordCost: "4",
	}
	env[privVar] = privPath
	env[pubVar] = pubPath

	cfg, err := LoadConfig(lookupFrom(env))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	engine, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build from key files: %v", err)
	}
	engine.Close()
}

func TestLoadConfigInlinePEMWithEscapedNewlines(t *testing.T) {
	privPEM, pubPEM := rsaKeyPEM(t)
	escape := func(b []byte) string {
		out := make([]byte, 0, len(b)+64)
		for _, c := range b {
			if c == '\n' {
				out = append(out, '\\', 'n')
				continue
			}
			out = append(out, c)
		}
		return string(out)
	}

	cfg, err := LoadConfig(lookupFrom(map[string]string{
		EnvJWTAlgorithm:  "RS256",
		EnvJWTPrivateKey: escape(privPEM),
		EnvJWTPublicKey:  escape(pubPEM),
		EnvPasswordCost:  "4",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(cfg.JWT.PrivateKey) != string(privPEM) {
		t.Fatal("escaped newlines not restored")
	}
}
