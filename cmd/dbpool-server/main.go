// Package main provides the entry point for the dbpool admin server. It
// parses configuration, opens a connector for the configured database
// driver, builds a pool.Pool, and exposes it over the admin HTTP surface.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/netresearch/dbpool/internal/admin"
	"github.com/netresearch/dbpool/internal/connectors"
	"github.com/netresearch/dbpool/internal/pool"
	"github.com/netresearch/dbpool/internal/poolconfig"
	"github.com/netresearch/dbpool/internal/version"
)

const (
	shutdownTimeout     = 30 * time.Second
	healthCheckTimeout  = 3 * time.Second
	healthCheckEndpoint = "http://localhost:9090/health/live"
)

func main() {
	if len(os.Args) == 2 && os.Args[1] == "--health-check" {
		os.Exit(runHealthCheck())
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().Msgf("dbpool-server %s starting...", version.FormatVersion())

	opts, err := poolconfig.Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration")
	}
	log.Logger = log.Logger.Level(opts.LogLevel)

	connector, err := buildConnector(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not build connector")
	}

	cfg := pool.Config{
		Connector:   connector,
		MinSize:     opts.MinSize,
		MaxSize:     opts.MaxSize,
		ExpireAfter: opts.ExpireAfter,
		RetireAfter: opts.RetireAfter,
	}
	if opts.IsolationLevel != "" {
		level, err := isolationLevelFromString(opts.IsolationLevel)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid isolation level")
		}
		cfg.IsolationPolicy = pool.StaticIsolationPolicy{Level: level}
	}

	p, err := pool.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize pool")
	}

	app := admin.NewApp(opts.MetricsNamespace, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	serverErr := make(chan error, 1)
	go func() {
		if err := app.Listen(opts.AdminListenAddr); err != nil {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("admin server error")
	}

	log.Info().Msg("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down admin server")
	}

	if err := p.Shutdown(); err != nil {
		log.Error().Err(err).Msg("error shutting down pool")
		shutdownCancel()
		os.Exit(1) //nolint:gocritic // Exit is intentional after shutdown error
	}

	log.Info().Msg("graceful shutdown complete")
}

func buildConnector(opts *poolconfig.Opts) (pool.Connector, error) {
	switch opts.Driver {
	case "mysql":
		return connectors.NewMySQLConnector(opts.DSN)
	case "postgres":
		return connectors.NewPostgresConnector(opts.DSN)
	default:
		return nil, poolconfig.ValidationError{Field: "driver", Message: "unsupported driver " + opts.Driver}
	}
}

func isolationLevelFromString(s string) (pool.IsolationLevel, error) {
	switch s {
	case "read_uncommitted":
		return pool.LevelReadUncommitted, nil
	case "read_committed":
		return pool.LevelReadCommitted, nil
	case "repeatable_read":
		return pool.LevelRepeatableRead, nil
	case "serializable":
		return pool.LevelSerializable, nil
	default:
		return pool.LevelDefault, poolconfig.ValidationError{Field: "isolation-level", Message: "unrecognized isolation level " + s}
	}
}

// runHealthCheck performs an HTTP health check against the running server.
// Returns 0 if healthy (HTTP 200), 1 otherwise. Used by Docker HEALTHCHECK.
func runHealthCheck() int {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthCheckEndpoint, nil)
	if err != nil {
		return 1
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		return 0
	}

	return 1
}
