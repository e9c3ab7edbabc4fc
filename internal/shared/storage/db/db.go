package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"golang.org/x/sync/singleflight"

	"skincare-backend/internal/shared/telemetry"
)

// Options controls database pool and connectivity behavior.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	// PingAttempts is how many times Connect pings before giving up.
	PingAttempts int
	PingBackoff  time.Duration
}

var (
	openDB = sql.Open

	sharedMu   sync.Mutex
	sharedDB   *sql.DB
	sharedInit singleflight.Group
)

// IsLambdaRuntime reports whether the current process is running in AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// DefaultLambdaOptions keeps the pool small; every concurrent Lambda
// environment holds its own.
func DefaultLambdaOptions() Options {
	return Options{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 30 * time.Second,
		ConnMaxLifetime: 15 * time.Minute,
		PingTimeout:     3 * time.Second,
		PingAttempts:    1,
	}
}

// DefaultServerOptions returns defaults for the API and worker processes.
// Startup tolerates a database that comes up a few seconds late.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
		PingAttempts:    3,
		PingBackoff:     2 * time.Second,
	}
}

// DefaultMigrateOptions returns defaults for the migrate command.
func DefaultMigrateOptions() Options {
	opts := DefaultServerOptions()
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	return opts
}

type envOverride struct {
	key   string
	apply func(opts *Options, raw string) error
}

var envOverrides = []envOverride{
	{"DB_MAX_OPEN_CONNS", intOverride(func(o *Options, v int) { o.MaxOpenConns = v })},
	{"DB_MAX_IDLE_CONNS", intOverride(func(o *Options, v int) { o.MaxIdleConns = v })},
	{"DB_CONN_MAX_LIFETIME", durationOverride(func(o *Options, v time.Duration) { o.ConnMaxLifetime = v })},
	{"DB_CONN_MAX_IDLE_TIME", durationOverride(func(o *Options, v time.Duration) { o.ConnMaxIdleTime = v })},
	{"DB_PING_TIMEOUT", durationOverride(func(o *Options, v time.Duration) { o.PingTimeout = v })},
	{"DB_PING_ATTEMPTS", intOverride(func(o *Options, v int) { o.PingAttempts = v })},
}

// OptionsFromEnv overrides defaults with DB_* env vars. Unparseable values
// are logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	for _, o := range envOverrides {
		raw := strings.TrimSpace(os.Getenv(o.key))
		if raw == "" {
			continue
		}
		if err := o.apply(&opts, raw); err != nil {
			telemetry.Warn("db.env.invalid", map[string]any{"key": o.key, "error": err.Error()})
		}
	}
	return opts
}

func intOverride(set func(*Options, int)) func(*Options, string) error {
	return func(opts *Options, raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		set(opts, v)
		return nil
	}
}

func durationOverride(set func(*Options, time.Duration)) func(*Options, string) error {
	return func(opts *Options, raw string) error {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		set(opts, v)
		return nil
	}
}

// Connect opens a *sql.DB using the provided DATABASE_URL and verifies connectivity.
// The returned *sql.DB should be shared and re-used by callers.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyOptions(db, opts)

	if err := ping(ctx, db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logPoolStats(db, "db.pool.ready")
	return db, nil
}

func ping(ctx context.Context, db *sql.DB, opts Options) error {
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	attempts := opts.PingAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil || attempt == attempts {
			break
		}
		telemetry.Warn("db.ping.retry", map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.PingBackoff):
		}
	}
	return err
}

// Shared returns the process-wide *sql.DB, connecting on first use.
// Concurrent callers share one connect; a failed connect is retried by the
// next call.
func Shared(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if db := loadShared(); db != nil {
		return db, nil
	}
	v, err, _ := sharedInit.Do("db", func() (any, error) {
		if db := loadShared(); db != nil {
			return db, nil
		}
		db, err := Connect(ctx, databaseURL, opts)
		if err != nil {
			return nil, err
		}
		sharedMu.Lock()
		sharedDB = db
		sharedMu.Unlock()
		telemetry.Info("db.shared.init", map[string]any{"lambda": IsLambdaRuntime()})
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func loadShared() *sql.DB {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return sharedDB
}

func applyOptions(db *sql.DB, opts Options) {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = time.Hour
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func logPoolStats(db *sql.DB, event string) {
	stats := db.Stats()
	telemetry.Info(event, map[string]any{
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
		"wait":     stats.WaitCount,
		"max_open": stats.MaxOpenConnections,
	})
}
