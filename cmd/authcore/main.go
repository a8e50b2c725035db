// Command authcore serves the session gateway, API token endpoints and
// Prometheus metrics for one authcore engine.
//
// Engine and gateway settings come from the AUTHCORE_* variables understood
// by authcore.LoadConfigFromEnv. Server settings:
//
//	AUTHCORE_HTTP_ADDR   listen address (default :8080)
//	AUTHCORE_LOG_LEVEL   debug, info, warn or error (default info)
//	AUTHCORE_REDIS_ADDR  Redis address; empty starts an in-process miniredis
//	                     outside production mode
//	AUTHCORE_REDIS_PASSWORD
//	AUTHCORE_SHUTDOWN_TIMEOUT_SECONDS  drain time on SIGTERM (default 10)
//	AUTHCORE_OTEL_METRICS  true also serves /metrics/otel through the OTel SDK
//
// The gateway routes are mounted only when AUTHCORE_OIDC_ISSUER or
// AUTHCORE_AUTH0_DOMAIN is set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/authcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authcore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := authcore.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	srv, err := loadServerConfig(os.LookupEnv)
	if err != nil {
		return err
	}
	logger := newLogger(srv.LogLevel, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, srv, logger)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
