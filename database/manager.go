/*
 * Copyright 2025 tomoncle.
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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

const memoryDBName = ":memory:"

// endpoint is everything needed to open one connection pool.
type endpoint struct {
	driver  string
	dsn     string
	dialect schema.Dialect
}

type defaultDatabaseManager struct {
	cfg    ConnectionConfig
	logger Logger
	// memName names the private in-memory sqlite database of this manager.
	memName string

	mu sync.RWMutex
	db *bun.DB

	reconnectTries atomic.Int32

	monitorMu   sync.Mutex
	stopMonitor context.CancelFunc
	monitorDone chan struct{}
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// A nil config falls back to DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	dm := &defaultDatabaseManager{cfg: *config}
	if dm.cfg.ConnectTimeout <= 0 {
		dm.cfg.ConnectTimeout = 30 * time.Second
	}
	if isSQLite(dm.cfg.Type) && dm.cfg.DBName == memoryDBName {
		dm.memName = "todostore-" + uuid.NewString()
		// the database lives as long as one of its connections
		dm.cfg.MaxOpenConns = 1
		dm.cfg.MaxIdleConns = 1
		dm.cfg.ConnMaxLifetime = 0
		dm.cfg.ConnMaxIdleTime = 0
	}
	return dm
}

func isSQLite(typ string) bool {
	return typ == "sqlite" || typ == "sqlite3"
}

func (dm *defaultDatabaseManager) endpoint() (endpoint, error) {
	c := dm.cfg
	switch {
	case c.Type == "mysql":
		return endpoint{
			driver: "mysql",
			dsn: fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
				c.Username, c.Password, c.Host, c.Port, c.DBName, c.ConnectTimeout, c.ReadTimeout, c.WriteTimeout),
			dialect: mysqldialect.New(),
		}, nil
	case c.Type == "postgres" || c.Type == "postgresql":
		driver := "postgres"
		switch strings.ToLower(c.Driver) {
		case "", "pq":
		case "pgx":
			driver = "pgx"
		default:
			return endpoint{}, fmt.Errorf("unsupported postgres driver: %s, supported drivers: [pq pgx]", c.Driver)
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return endpoint{
			driver: driver,
			dsn: fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
				c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode, int(c.ConnectTimeout.Seconds())),
			dialect: pgdialect.New(),
		}, nil
	case isSQLite(c.Type):
		dsn := fmt.Sprintf("file:%s.db?cache=shared", c.DBName)
		if dm.memName != "" {
			dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", dm.memName)
		}
		return endpoint{driver: sqliteshim.ShimName, dsn: dsn, dialect: sqlitedialect.New()}, nil
	}
	return endpoint{}, fmt.Errorf("unsupported database type: %s", c.Type)
}

// open builds a pooled Bun handle with the configured query hooks.
func (dm *defaultDatabaseManager) open() (*bun.DB, error) {
	ep, err := dm.endpoint()
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(ep.driver, ep.dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dm.cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.cfg.ConnMaxIdleTime)

	db := bun.NewDB(sqlDB, ep.dialect)
	if dm.cfg.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true), bundebug.FromEnv("BUNDEBUG")))
	}
	if dm.cfg.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: dm.cfg.SlowQueryTime, logger: dm.logger})
	}
	return db, nil
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	return dm.connect(ctx, true)
}

// connect opens and pings a new handle. The monitor passes watch=false so a
// reconnect racing Disconnect never restarts it.
func (dm *defaultDatabaseManager) connect(ctx context.Context, watch bool) error {
	dm.mu.Lock()
	if dm.db != nil {
		dm.mu.Unlock()
		return nil
	}
	db, err := dm.open()
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, dm.cfg.ConnectTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			_ = db.Close()
		}
	}
	if err != nil {
		dm.mu.Unlock()
		return fmt.Errorf("failed to connect to %s database: %w", dm.cfg.Type, err)
	}
	dm.db = db
	dm.mu.Unlock()

	dm.reconnectTries.Store(0)
	if watch {
		dm.startMonitor()
	}
	dm.log().Info("Database connected successfully", "type", dm.cfg.Type, "host", dm.cfg.Host, "dbname", dm.cfg.DBName)
	return nil
}

// closeDB drops the current handle but keeps the health monitor running.
func (dm *defaultDatabaseManager) closeDB() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db = nil
	return err
}

func (dm *defaultDatabaseManager) Disconnect() error {
	dm.haltMonitor()
	err := dm.closeDB()
	if err != nil {
		dm.log().Error("Failed to close database connection", "error", err)
	}
	return err
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	return dm.reconnect(ctx, true)
}

func (dm *defaultDatabaseManager) reconnect(ctx context.Context, watch bool) error {
	if err := dm.closeDB(); err != nil {
		dm.log().Warn("Error closing stale connection", "error", err)
	}
	return dm.connect(ctx, watch)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	if db := dm.GetDB(); db != nil {
		return db.DB
	}
	return nil
}

// HealthCheck pings the database and reports pool usage.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := HealthStatus{LastCheckTime: start, ReconnectTries: int(dm.reconnectTries.Load())}

	db := dm.GetDB()
	if db == nil {
		status.LastError = "database not connected"
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		status.ResponseTime = time.Since(start)
		if err != nil {
			status.LastError = err.Error()
		} else {
			status.Healthy, status.Connected = true, true
		}
		stats := db.DB.Stats()
		status.ActiveConns = stats.InUse
		status.IdleConns = stats.Idle
		status.MaxOpenConns = stats.MaxOpenConnections
	}
	return &status
}

func (dm *defaultDatabaseManager) startMonitor() {
	if dm.cfg.HealthCheckInterval <= 0 {
		return
	}
	dm.monitorMu.Lock()
	defer dm.monitorMu.Unlock()
	if dm.stopMonitor != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	dm.stopMonitor, dm.monitorDone = cancel, done
	go func() {
		defer close(done)
		dm.monitor(ctx)
	}()
}

func (dm *defaultDatabaseManager) haltMonitor() {
	dm.monitorMu.Lock()
	cancel, done := dm.stopMonitor, dm.monitorDone
	dm.stopMonitor, dm.monitorDone = nil, nil
	dm.monitorMu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// monitor checks health every HealthCheckInterval and, when enabled,
// reconnects an unhealthy database.
func (dm *defaultDatabaseManager) monitor(ctx context.Context) {
	ticker := time.NewTicker(dm.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if dm.HealthCheck(ctx).Healthy || !dm.cfg.EnableReconnect {
			continue
		}
		dm.tryReconnect(ctx)
	}
}

// tryReconnect makes one reconnect attempt unless MaxReconnectTries attempts
// have already failed since the last successful connect.
func (dm *defaultDatabaseManager) tryReconnect(ctx context.Context) {
	limit := int32(dm.cfg.MaxReconnectTries)
	if limit > 0 && dm.reconnectTries.Load() >= limit {
		return
	}
	try := dm.reconnectTries.Add(1)
	if limit > 0 && try == limit {
		dm.log().Error("Last reconnect attempt before giving up", "try", try)
	} else {
		dm.log().Info("Starting database reconnect", "try", try)
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(dm.cfg.ReconnectInterval):
	}

	connectCtx, cancel := context.WithTimeout(ctx, dm.cfg.ConnectTimeout)
	defer cancel()
	if err := dm.reconnect(connectCtx, false); err != nil {
		dm.log().Error("Reconnect failed", "error", err, "try", try)
		return
	}
	dm.log().Info("Reconnect succeeded", "try", try)
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	s := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) migrations() (*MigrationManager, error) {
	db := dm.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return NewMigrationManager(db, dm.log()), nil
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	mm, err := dm.migrations()
	if err != nil {
		return err
	}
	return mm.RunMigrations(ctx)
}

func (dm *defaultDatabaseManager) InitData(ctx context.Context) error {
	mm, err := dm.migrations()
	if err != nil {
		return err
	}
	return mm.InitData(ctx)
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}

func (dm *defaultDatabaseManager) log() Logger {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if dm.logger == nil {
		return GetLogger()
	}
	return dm.logger
}
