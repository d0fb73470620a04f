// Package poolconfig provides configuration parsing and environment
// variable handling for the dbpool admin server binary.
package poolconfig

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Opts holds all configuration needed to construct and serve a pool.Pool.
type Opts struct {
	LogLevel zerolog.Level

	Driver string // "mysql" or "postgres"
	DSN    string

	MinSize     int
	MaxSize     int
	ExpireAfter time.Duration
	RetireAfter int

	IsolationLevel string // "", "read_uncommitted", "read_committed", "repeatable_read", "serializable"

	AdminListenAddr  string
	MetricsNamespace string
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

func validateRequired(name string, value *string) error {
	if *value == "" {
		return ValidationError{Field: name, Message: "this option is required"}
	}
	return nil
}

func envStringOrDefault(name, d string) string {
	if v, exists := os.LookupEnv(name); exists && v != "" {
		return v
	}
	return d
}

func envDurationOrDefault(name string, d time.Duration) (time.Duration, error) {
	raw := envStringOrDefault(name, d.String())

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("could not parse %q as duration: %v", raw, err),
		}
	}
	return v, nil
}

func envLogLevelOrDefault(name string, d zerolog.Level) (string, error) {
	raw := envStringOrDefault(name, d.String())

	if _, err := zerolog.ParseLevel(raw); err != nil {
		return "", ValidationError{
			Field:   name,
			Message: fmt.Sprintf("could not parse %q as log level: %v", raw, err),
		}
	}
	return raw, nil
}

func envIntOrDefault(name string, d int) (int, error) {
	raw := envStringOrDefault(name, strconv.Itoa(d))

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("could not parse %q as int: %v", raw, err),
		}
	}
	return v, nil
}

// Parse parses command line flags and environment variables into Opts. It
// loads from .env files, applies flags over environment defaults, and
// validates required settings.
func Parse() (*Opts, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	logLevelStr, err := envLogLevelOrDefault("LOG_LEVEL", zerolog.InfoLevel)
	if err != nil {
		return nil, err
	}

	minSize, err := envIntOrDefault("POOL_MIN_SIZE", 2)
	if err != nil {
		return nil, err
	}
	maxSize, err := envIntOrDefault("POOL_MAX_SIZE", 10)
	if err != nil {
		return nil, err
	}
	expireAfter, err := envDurationOrDefault("POOL_EXPIRE_AFTER", 0)
	if err != nil {
		return nil, err
	}
	retireAfter, err := envIntOrDefault("POOL_RETIRE_AFTER", 0)
	if err != nil {
		return nil, err
	}

	var (
		fLogLevel = flag.String("log-level", logLevelStr,
			"Log level. Valid values are: trace, debug, info, warn, error, fatal, panic.")

		fDriver = flag.String("driver", envStringOrDefault("POOL_DRIVER", "mysql"),
			"Database driver to pool connections for: mysql or postgres.")
		fDSN = flag.String("dsn", envStringOrDefault("POOL_DSN", ""),
			"Data source name passed to the driver.")

		fMinSize = flag.Int("min-size", minSize, "Minimum number of sessions kept warm.")
		fMaxSize = flag.Int("max-size", maxSize, "Maximum number of sessions the pool will ever hold.")
		fExpireAfter = flag.Duration("expire-after", expireAfter,
			"Close an idle session once this long has passed since it was opened. 0 disables age-based expiration.")
		fRetireAfter = flag.Int("retire-after", retireAfter,
			"Close a session on release once it has been leased more than this many times. 0 disables use-count retirement.")

		fIsolationLevel = flag.String("isolation-level", envStringOrDefault("POOL_ISOLATION_LEVEL", ""),
			"Transaction isolation level asserted on every handout: "+
				"read_uncommitted, read_committed, repeatable_read, serializable, or empty to leave untouched.")

		fAdminListenAddr = flag.String("admin-listen-addr", envStringOrDefault("ADMIN_LISTEN_ADDR", ":9090"),
			"Address the admin HTTP server (health, stats, metrics) listens on.")
		fMetricsNamespace = flag.String("metrics-namespace", envStringOrDefault("METRICS_NAMESPACE", "dbpool"),
			"Prometheus metric name prefix.")
	)

	if !flag.Parsed() {
		flag.Parse()
	}

	logLevel, err := zerolog.ParseLevel(*fLogLevel)
	if err != nil {
		return nil, ValidationError{Field: "log-level", Message: err.Error()}
	}

	if err := validateRequired("dsn", fDSN); err != nil {
		return nil, err
	}
	if *fDriver != "mysql" && *fDriver != "postgres" {
		return nil, ValidationError{Field: "driver", Message: "must be mysql or postgres"}
	}
	if *fMinSize < 0 {
		return nil, ValidationError{Field: "min-size", Message: "must not be negative"}
	}
	if *fMaxSize < 1 {
		return nil, ValidationError{Field: "max-size", Message: "must be at least 1"}
	}
	if *fMinSize > *fMaxSize {
		return nil, ValidationError{Field: "min-size", Message: "must not exceed max-size"}
	}

	switch *fIsolationLevel {
	case "", "read_uncommitted", "read_committed", "repeatable_read", "serializable":
	default:
		return nil, ValidationError{Field: "isolation-level", Message: "unrecognized isolation level"}
	}

	return &Opts{
		LogLevel: logLevel,

		Driver: *fDriver,
		DSN:    *fDSN,

		MinSize:     *fMinSize,
		MaxSize:     *fMaxSize,
		ExpireAfter: *fExpireAfter,
		RetireAfter: *fRetireAfter,

		IsolationLevel: *fIsolationLevel,

		AdminListenAddr:  *fAdminListenAddr,
		MetricsNamespace: *fMetricsNamespace,
	}, nil
}
