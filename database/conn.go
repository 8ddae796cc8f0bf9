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
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// global is the process-wide database opened by InitDB.
var global struct {
	mu      sync.RWMutex
	factory *BaseDatabaseFactory
	config  *Config
}

func currentFactory() *BaseDatabaseFactory {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.factory
}

// currentDataInit returns the data-init section of the config given to InitDB.
func currentDataInit() (DataInitConfig, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if global.config == nil {
		return DataInitConfig{}, false
	}
	return global.config.DataInitConfig, true
}

// GetDB returns the global Bun database, or nil before InitDB.
func GetDB() *bun.DB {
	if f := currentFactory(); f != nil {
		return f.GetDB()
	}
	return nil
}

func GetDatabaseManager() AbstractDatabaseManager {
	if f := currentFactory(); f != nil {
		return f.GetManager()
	}
	return nil
}

// InitDB opens the global database, migrating when
// cfg.DataMigrateConfig.EnableMigrateOnStartup is set.
func InitDB(cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	return InitDatabaseWithOptions(cfg, cfg.DataMigrateConfig.EnableMigrateOnStartup)
}

// InitDatabaseWithOptions replaces the global database with one opened from
// cfg. A previously opened database is closed first.
func InitDatabaseWithOptions(cfg *Config, runMigrations bool) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := CloseDB(); err != nil {
		GetLogger().Warn("Failed to close previous database", "error", err)
	}

	global.mu.Lock()
	global.config = cfg
	global.mu.Unlock()

	factory := NewDatabaseFactory()
	manager, err := factory.CreateFromConfig(&cfg.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	ctx := context.Background()
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	// migrations build tables from the models bun already knows
	manager.GetDB().RegisterModel(RegisteredModelInstances()...)

	if err := factory.InitializeDatabase(ctx, runMigrations); err != nil {
		_ = manager.Disconnect()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if cfg.DataInitConfig.AutoInitOnStartup {
		if err := manager.InitData(ctx); err != nil {
			_ = manager.Disconnect()
			return nil, fmt.Errorf("failed to initialize data: %w", err)
		}
	}

	global.mu.Lock()
	global.factory = factory
	global.mu.Unlock()
	return manager.GetDB(), nil
}

// CloseDB closes the global database. It is a no-op before InitDB.
func CloseDB() error {
	global.mu.Lock()
	factory := global.factory
	global.factory = nil
	global.mu.Unlock()
	if factory == nil {
		return nil
	}
	return factory.Close()
}

func GetHealthStatus(ctx context.Context) *HealthStatus {
	if f := currentFactory(); f != nil {
		return f.GetHealthStatus(ctx)
	}
	return &HealthStatus{LastError: "database not initialized", LastCheckTime: time.Now()}
}

func GetDatabaseStats() *DBStats {
	if f := currentFactory(); f != nil {
		return f.GetStats()
	}
	return &DBStats{}
}

// RunMigrations migrates the global database.
func RunMigrations() error {
	manager := GetDatabaseManager()
	if manager == nil {
		return fmt.Errorf("database not initialized")
	}
	return manager.RunMigrations(context.Background())
}

// InitData seeds fixtures into the global database.
func InitData() error {
	manager := GetDatabaseManager()
	if manager == nil {
		return fmt.Errorf("database not initialized")
	}
	return manager.InitData(context.Background())
}
