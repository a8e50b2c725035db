package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore"
)

// serverConfig holds the process settings that are not part of the engine.
type serverConfig struct {
	HTTPAddr      string
	LogLevel      string
	RedisAddr     string
	RedisPassword string

	// OTelMetrics also exposes the engine metrics through the OTel SDK on
	// /metrics/otel.
	OTelMetrics bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

func loadServerConfig(lookup authcore.LookupFunc) (serverConfig, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg := serverConfig{
		HTTPAddr:          get("AUTHCORE_HTTP_ADDR", ":8080"),
		LogLevel:          get("AUTHCORE_LOG_LEVEL", "info"),
		RedisAddr:         get("AUTHCORE_REDIS_ADDR", ""),
		RedisPassword:     get("AUTHCORE_REDIS_PASSWORD", ""),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}

	if v := get("AUTHCORE_SHUTDOWN_TIMEOUT_SECONDS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return serverConfig{}, fmt.Errorf("%w: AUTHCORE_SHUTDOWN_TIMEOUT_SECONDS=%q", authcore.ErrConfiguration, v)
		}
		cfg.ShutdownTimeout = time.Duration(n) * time.Second
	}
	if v := get("AUTHCORE_OTEL_METRICS", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return serverConfig{}, fmt.Errorf("%w: AUTHCORE_OTEL_METRICS=%q", authcore.ErrConfiguration, v)
		}
		cfg.OTelMetrics = b
	}
	return cfg, nil
}
