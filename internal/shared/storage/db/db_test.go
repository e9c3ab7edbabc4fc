package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"skincare-backend/internal/shared/telemetry"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                   { return nil }
func (nopStmt) NumInput() int                                  { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func ensureTestDriverRegistered() {
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
}

func resetShared(t *testing.T) {
	t.Helper()
	sharedMu.Lock()
	sharedDB = nil
	sharedMu.Unlock()
	t.Cleanup(func() {
		sharedMu.Lock()
		sharedDB = nil
		sharedMu.Unlock()
	})
}

var errPingRefused = errors.New("connection refused")

// flakyPingConn fails pings until the shared budget is spent.
type flakyPingConn struct {
	nopConn
	failures *int32
}

func (c flakyPingConn) Ping(ctx context.Context) error {
	if atomic.AddInt32(c.failures, -1) >= 0 {
		return errPingRefused
	}
	return nil
}

type flakyPingConnector struct {
	failures *int32
}

func (c flakyPingConnector) Connect(ctx context.Context) (driver.Conn, error) {
	return flakyPingConn{failures: c.failures}, nil
}

func (c flakyPingConnector) Driver() driver.Driver { return nopDriver{} }

func withFlakyPing(t *testing.T, failures int32) {
	t.Helper()
	remaining := failures
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return sql.OpenDB(flakyPingConnector{failures: &remaining}), nil
	}
	t.Cleanup(func() { openDB = prev })
}

func withTestDriver(t *testing.T) func() {
	t.Helper()
	ensureTestDriverRegistered()
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return sql.Open("dbtest", dsn)
	}
	return func() {
		openDB = prev
	}
}

func TestSharedReturnsSamePointer(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	resetShared(t)

	db1, err := Shared(context.Background(), "ignored", DefaultLambdaOptions())
	if err != nil {
		t.Fatalf("GetSingleton first: %v", err)
	}
	db2, err := Shared(context.Background(), "ignored", DefaultLambdaOptions())
	if err != nil {
		t.Fatalf("GetSingleton second: %v", err)
	}
	if db1 != db2 {
		t.Fatalf("expected singleton pointers to match")
	}
}

func TestOptionsFromEnvAppliesOverrides(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts := OptionsFromEnv(DefaultServerOptions())
	db, err := Connect(context.Background(), "ignored", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	stats := db.Stats()
	if stats.MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", stats.MaxOpenConnections)
	}
	if opts.MaxIdleConns != 3 {
		t.Fatalf("expected MaxIdleConns=3, got %d", opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime != 20*time.Minute {
		t.Fatalf("expected ConnMaxLifetime=20m, got %s", opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime != 45*time.Second {
		t.Fatalf("expected ConnMaxIdleTime=45s, got %s", opts.ConnMaxIdleTime)
	}
	if opts.PingTimeout != time.Second {
		t.Fatalf("expected PingTimeout=1s, got %s", opts.PingTimeout)
	}
}

func TestSharedRetriesAfterFailure(t *testing.T) {
	var calls int32
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, driver.ErrBadConn
		}
		ensureTestDriverRegistered()
		return sql.Open("dbtest", dsn)
	}
	defer func() {
		openDB = prev
	}()
	ensureTestDriverRegistered()

	resetShared(t)

	_, err := Shared(context.Background(), "ignored", DefaultLambdaOptions())
	if err == nil {
		t.Fatalf("expected first call to fail")
	}
	db2, err := Shared(context.Background(), "ignored", DefaultLambdaOptions())
	if err != nil {
		t.Fatalf("expected second call to succeed: %v", err)
	}
	if db2 == nil {
		t.Fatalf("expected db after retry")
	}
}

func TestOptionsFromEnvIgnoresInvalidValues(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := telemetry.SetLogger(zap.New(core))
	defer restore()

	t.Setenv("DB_MAX_OPEN_CONNS", "lots")
	t.Setenv("DB_PING_TIMEOUT", "soon")

	defaults := DefaultServerOptions()
	opts := OptionsFromEnv(defaults)
	require.Equal(t, defaults.MaxOpenConns, opts.MaxOpenConns)
	require.Equal(t, defaults.PingTimeout, opts.PingTimeout)

	warnings := logs.FilterMessage("db.env.invalid").All()
	require.Len(t, warnings, 2)
	require.Equal(t, "DB_MAX_OPEN_CONNS", warnings[0].ContextMap()["key"])
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "  ", DefaultServerOptions())
	require.ErrorContains(t, err, "DATABASE_URL is empty")
}

func TestConnectRetriesPing(t *testing.T) {
	withFlakyPing(t, 2)
	core, logs := observer.New(zapcore.WarnLevel)
	restore := telemetry.SetLogger(zap.New(core))
	defer restore()

	opts := DefaultServerOptions()
	opts.PingBackoff = time.Millisecond
	db, err := Connect(context.Background(), "ignored", opts)
	require.NoError(t, err)
	defer db.Close()
	require.Len(t, logs.FilterMessage("db.ping.retry").All(), 2)
}

func TestConnectGivesUpAfterPingAttempts(t *testing.T) {
	withFlakyPing(t, 5)

	opts := DefaultServerOptions()
	opts.PingAttempts = 2
	opts.PingBackoff = time.Millisecond
	_, err := Connect(context.Background(), "ignored", opts)
	require.ErrorContains(t, err, "ping database")
}

func TestOptionsFromEnvReadsPingAttempts(t *testing.T) {
	t.Setenv("DB_PING_ATTEMPTS", "6")
	require.Equal(t, 6, OptionsFromEnv(DefaultLambdaOptions()).PingAttempts)
}

func TestSharedJoinsConcurrentCallers(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()
	resetShared(t)

	var wg sync.WaitGroup
	results := make([]*sql.DB, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Shared(context.Background(), "ignored", DefaultLambdaOptions())
		}(i)
	}
	wg.Wait()
	for i, db := range results {
		require.NoError(t, errs[i])
		require.Same(t, results[0], db)
	}
}
