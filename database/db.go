/*
 * Copyright 2026 absnotary.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// DB is the explicit handle callers pass around: one Bun database, one
// slot pool over it, and a session factory for units of work.
type DB struct {
	settings *Settings
	bunDB    *bun.DB
	sqlDB    *sql.DB
	pool     *Pool
	sessions *SessionFactory
	logger   Logger
}

// HealthStatus holds the result of a health check against the backend.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	Idle          int           `json:"idle"`
	InUse         int           `json:"in_use"`
	Open          int           `json:"open"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// Open validates the settings, connects to the backend named by
// DatabaseURL, and wires the pool and session factory. The slot pool itself
// is filled lazily on first acquire.
func Open(settings *Settings) (*DB, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger := GetLogger()

	target, err := parseDatabaseURL(settings.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var sqlDB *sql.DB
	var bunDB *bun.DB
	switch target.kind {
	case "postgres":
		sqlDB, err = sql.Open("postgres", target.dsn)
		if err == nil {
			bunDB = bun.NewDB(sqlDB, pgdialect.New())
		}
	case "mysql":
		sqlDB, err = sql.Open("mysql", target.dsn)
		if err == nil {
			bunDB = bun.NewDB(sqlDB, mysqldialect.New())
		}
	case "sqlite":
		sqlDB, err = sql.Open(sqliteshim.ShimName, target.dsn)
		if err == nil {
			bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("absorm: open %s: %w", target.kind, err)
	}

	// The slot pool is the pool: database/sql must not cache connections
	// underneath it, or recycle and disabled semantics would not hold at
	// the physical level.
	sqlDB.SetMaxIdleConns(0)
	sqlDB.SetConnMaxLifetime(0)
	if settings.Disabled {
		sqlDB.SetMaxOpenConns(0)
	} else {
		sqlDB.SetMaxOpenConns(settings.MaxConnections())
	}

	if settings.Echo {
		bunDB.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if settings.SlowQueryTime > 0 {
		bunDB.AddQueryHook(&slowQueryHook{
			slowTime: settings.SlowQueryTime,
			logger:   logger,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), settings.AcquireTimeout)
	defer cancel()
	if err := bunDB.PingContext(ctx); err != nil {
		_ = bunDB.Close()
		return nil, fmt.Errorf("absorm: connection test failed: %v: %w", err, ErrBackendUnavailable)
	}

	pool := NewPool(bunDB, settings, logger)
	db := &DB{
		settings: settings,
		bunDB:    bunDB,
		sqlDB:    sqlDB,
		pool:     pool,
		sessions: NewSessionFactory(pool, logger),
		logger:   logger,
	}
	logger.Info("database opened",
		"backend", target.kind,
		"pool_size", settings.PoolSize,
		"max_overflow", settings.MaxOverflow,
		"pool_disabled", settings.Disabled,
	)
	return db, nil
}

// Settings returns the configuration the handle was opened with.
func (d *DB) Settings() *Settings { return d.settings }

// Bun returns the underlying Bun database for schema utilities. Regular
// data access should go through units of work instead.
func (d *DB) Bun() *bun.DB { return d.bunDB }

// Pool returns the connection slot pool.
func (d *DB) Pool() *Pool { return d.pool }

// Sessions returns the session factory.
func (d *DB) Sessions() *SessionFactory { return d.sessions }

// Begin starts a unit of work on a freshly acquired slot.
func (d *DB) Begin(ctx context.Context) (*UnitOfWork, error) {
	return d.sessions.Begin(ctx)
}

// RunInUnitOfWork runs fn in a scoped unit of work; see SessionFactory.
func (d *DB) RunInUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	return d.sessions.RunInUnitOfWork(ctx, fn)
}

// Stats returns the pool's diagnostic snapshot.
func (d *DB) Stats() PoolStats { return d.pool.Stats() }

// HealthCheck probes the backend and reports liveness plus pool usage.
func (d *DB) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start, Connected: true}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := d.bunDB.PingContext(probeCtx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.Healthy = false
		status.Connected = false
		status.LastError = err.Error()
	} else {
		status.Healthy = true
	}

	stats := d.pool.Stats()
	status.Idle = stats.Idle
	status.InUse = stats.InUse
	status.Open = stats.Open
	return status
}

// CreateSchema creates tables for every registered model. Development and
// test use only.
func (d *DB) CreateSchema(ctx context.Context) error {
	return createSchema(ctx, d.bunDB)
}

// DropSchema drops tables for every registered model. All data is lost;
// test use only.
func (d *DB) DropSchema(ctx context.Context) error {
	return dropSchema(ctx, d.bunDB)
}

// Close shuts the pool down (honoring the drain timeout) and closes the
// underlying database. Idempotent.
func (d *DB) Close(ctx context.Context) error {
	err := d.pool.Shutdown(ctx)
	if cerr := d.bunDB.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
