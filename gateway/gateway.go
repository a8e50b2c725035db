package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/session"
)

const (
	oauthCookie   = "authcore_oauth"
	accessCookie  = "authcore_at"
	refreshCookie = "authcore_rt"

	maxRefreshBody = 8 << 10
)

// AccessCookieName is the cookie that carries the access token to browser
// clients. Pair it with middleware.AccessCookie on routes outside the gateway.
const AccessCookieName = accessCookie

// Engine is the part of *authcore.Engine the gateway depends on.
type Engine interface {
	IssuePair(ctx context.Context, id authcore.Identity) (authcore.TokenPair, error)
	VerifyAccess(token string) (authcore.Claims, bool)
	VerifyRefresh(token string) (authcore.Claims, bool)
	EmitAudit(ctx context.Context, event authcore.AuditEvent)
	Metrics() *authcore.Metrics
	Logger() *slog.Logger
	Now() time.Time
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Options wires a Gateway. Engine, Redis and Config are required.
type Options struct {
	Engine Engine
	Redis  redis.UniversalClient
	Config authcore.Config
	// HTTPClient is used for discovery, JWKS and the token endpoint.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Gateway serves the browser login flow against one OpenID provider and
// hands out authcore token pairs bound to a Redis session.
type Gateway struct {
	engine   Engine
	store    *session.Store
	limiter  *rate.Limiter
	oauth    *oauth2.Config
	meta     *Metadata
	verifier *IDTokenVerifier
	client   *http.Client
	logger   *slog.Logger

	cfg       authcore.GatewayConfig
	cookies   authcore.SessionConfig
	rateLimit authcore.RateLimitConfig
}

// New discovers the provider and fetches its JWKS. ctx bounds the JWKS
// background refresh and should live as long as the Gateway.
func New(ctx context.Context, opts Options) (*Gateway, error) {
	if opts.Engine == nil {
		return nil, errors.New("gateway: engine is required")
	}
	if opts.Redis == nil {
		return nil, errors.New("gateway: redis client is required")
	}
	cfg := opts.Config
	if err := cfg.Gateway.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", authcore.ErrConfiguration, err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = opts.Engine.Logger()
	}
	logger = logger.With(slog.String("component", "gateway"))

	meta, err := Discover(ctx, cfg.Gateway.Issuer, client)
	if err != nil {
		return nil, err
	}
	verifier, err := NewIDTokenVerifier(ctx, meta, cfg.Gateway.ClientID, cfg.JWT.ClockSkew, client, opts.Engine.Now)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		engine:   opts.Engine,
		store:    session.NewStore(opts.Redis, cfg.Session.RedisPrefix),
		meta:     meta,
		verifier: verifier,
		client:   client,
		logger:   logger,
		oauth: &oauth2.Config{
			ClientID:     cfg.Gateway.ClientID,
			ClientSecret: cfg.Gateway.ClientSecret,
			RedirectURL:  cfg.Gateway.CallbackURL(),
			Scopes:       append([]string(nil), cfg.Gateway.Scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:  meta.AuthorizationEndpoint,
				TokenURL: meta.TokenEndpoint,
			},
		},
		cfg:       cfg.Gateway,
		cookies:   cfg.Session,
		rateLimit: cfg.RateLimit,
	}
	if cfg.RateLimit.Enabled {
		g.limiter = rate.New(opts.Redis, rate.Config{
			Prefix: cfg.RateLimit.RedisPrefix,
			Window: cfg.RateLimit.Window,
		})
	}

	logger.Info("gateway ready",
		slog.String("issuer", meta.Issuer),
		slog.String("callback", cfg.Gateway.CallbackURL()),
		slog.Bool("end_session_endpoint", meta.EndSessionEndpoint != ""),
	)
	return g, nil
}

// Metadata returns the discovered provider metadata.
func (g *Gateway) Metadata() Metadata {
	return *g.meta
}

// Sessions returns the session store, e.g. for readiness checks.
func (g *Gateway) Sessions() *session.Store {
	return g.store
}

// Handler returns the gateway routes:
//
//	GET  /          current session as JSON
//	GET  /login     redirect to the provider
//	GET  /callback  provider redirect target
//	POST /refresh   rotate the token pair
//	GET  /logout    end the session here and at the provider
//	GET  /me        access token claims (guarded)
func (g *Gateway) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.ClientInfo)

	r.HandleFunc("/", g.index).Methods(http.MethodGet)
	r.HandleFunc("/login", g.login).Methods(http.MethodGet)
	r.HandleFunc("/callback", g.callback).Methods(http.MethodGet)
	r.HandleFunc("/refresh", g.refresh).Methods(http.MethodPost)
	r.HandleFunc("/logout", g.logout).Methods(http.MethodGet)

	guard := middleware.Guard(g.engine)
	r.Handle("/me", middleware.AccessCookie(accessCookie)(guard(http.HandlerFunc(g.me)))).Methods(http.MethodGet)

	return r
}

func (g *Gateway) homeURL() string {
	return strings.TrimRight(g.cfg.BaseURL, "/") + "/"
}
