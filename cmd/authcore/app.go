package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/apitoken"
	"github.com/MrEthical07/authcore/gateway"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
)

// app owns the engine, the Redis client and the HTTP routes.
type app struct {
	cfg    authcore.Config
	srv    serverConfig
	logger *slog.Logger

	engine  *authcore.Engine
	redis   redis.UniversalClient
	mini    *miniredis.Miniredis
	gateway *gateway.Gateway
	tokens  *apitoken.Service
	metrics *prometheus.Exporter
	otel    *otelMetrics
}

// newApp builds every dependency. ctx bounds background work such as the
// provider JWKS refresh.
func newApp(ctx context.Context, cfg authcore.Config, srv serverConfig, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, srv: srv, logger: logger}

	if err := a.openRedis(); err != nil {
		return nil, err
	}

	builder := authcore.New().WithConfig(cfg).WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(authcore.NewSlogSink(logger))
	}
	engine, err := builder.Build()
	if err != nil {
		a.closeRedis()
		return nil, err
	}
	a.engine = engine

	for _, warning := range engine.SecurityReport().Warnings {
		logger.Warn("weak security setting", slog.String("code", warning))
	}

	if cfg.Gateway.Issuer != "" {
		gw, err := gateway.New(ctx, gateway.Options{
			Engine: engine,
			Redis:  a.redis,
			Config: cfg,
			Logger: logger,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.gateway = gw
	} else {
		logger.Info("no identity provider configured, gateway routes disabled")
	}

	a.tokens = apitoken.New(engine, a.redis, cfg)
	a.metrics = prometheus.NewExporter(engine)
	if srv.OTelMetrics {
		m, err := newOTelMetrics(engine)
		if err != nil {
			a.close()
			return nil, err
		}
		a.otel = m
	}
	return a, nil
}

func (a *app) openRedis() error {
	if a.srv.RedisAddr == "" {
		if a.cfg.Security.ProductionMode {
			return fmt.Errorf("%w: AUTHCORE_REDIS_ADDR is required in production mode", authcore.ErrConfiguration)
		}
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		a.mini = mr
		a.srv.RedisAddr = mr.Addr()
		a.logger.Warn("using in-process miniredis; state is lost on exit", slog.String("addr", mr.Addr()))
	}

	a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{a.srv.RedisAddr},
		Password: a.srv.RedisPassword,
	})
	return nil
}

func (a *app) closeRedis() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mini != nil {
		a.mini.Close()
	}
}

func (a *app) close() {
	if a.otel != nil {
		a.otel.close()
	}
	if a.engine != nil {
		a.engine.Close()
	}
	a.closeRedis()
}

// routes mounts the service endpoints in front of the gateway.
func (a *app) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.ClientInfo)

	r.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	if a.otel != nil {
		r.HandleFunc("/metrics/otel", a.otel.handler).Methods(http.MethodGet)
	}

	session := func(h http.HandlerFunc) http.Handler {
		return middleware.AccessCookie(gateway.AccessCookieName)(middleware.Guard(a.engine)(h))
	}
	bearer := middleware.Bearer(a.engine, a.tokens)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/tokens", session(a.issueToken)).Methods(http.MethodPost)
	api.Handle("/tokens", session(a.listTokens)).Methods(http.MethodGet)
	api.Handle("/tokens/{id}", session(a.revokeToken)).Methods(http.MethodDelete)
	api.Handle("/whoami", bearer(http.HandlerFunc(a.whoami))).Methods(http.MethodGet)
	api.Handle("/admin/security", bearer(middleware.RequireRole("admin")(http.HandlerFunc(a.securityReport)))).Methods(http.MethodGet)

	if a.gateway != nil {
		r.PathPrefix("/").Handler(a.gateway.Handler())
	}
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *app) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.srv.HTTPAddr,
		Handler:           withRequestLogging(a.routes(), a.logger),
		ReadHeaderTimeout: a.srv.ReadHeaderTimeout,
		ReadTimeout:       a.srv.ReadTimeout,
		WriteTimeout:      a.srv.WriteTimeout,
		IdleTimeout:       a.srv.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	a.logger.Info("server starting",
		slog.String("addr", a.srv.HTTPAddr),
		slog.Bool("gateway", a.gateway != nil),
		slog.Bool("production_mode", a.cfg.Security.ProductionMode),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("server stopping")
	case err := <-errCh:
		a.logger.Error("server failed", slog.String("error", err.Error()))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.srv.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown failed", slog.String("error", err.Error()))
		return err
	}

	a.logger.Info("server stopped", slog.Uint64("audit_dropped", a.engine.AuditDropped()))
	return nil
}

func (a *app) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *app) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var err error
	if a.gateway != nil {
		_, err = a.gateway.Sessions().Ping(ctx)
	} else {
		err = a.redis.Ping(ctx).Err()
	}
	if err != nil {
		a.logger.Warn("redis not ready", slog.String("error", err.Error()))
		http.Error(w, "redis not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
