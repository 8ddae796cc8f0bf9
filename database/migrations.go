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
	"os"
	"time"

	"github.com/uptrace/bun"
)

// Migration is one applied step recorded in schema_migrations.
type Migration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc applies one step inside the migration transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem is a versioned step. Items run in slice order.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// MigrationManager creates tables for registered models and seeds fixtures.
type MigrationManager struct {
	db          *bun.DB
	logger      Logger
	environment string
	fixtures    string
	seedOnRun   bool
}

// NewMigrationManager returns a manager for db. Environment, fixture path and
// seeding follow the data-init section given to InitDB, if any.
func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	mm := &MigrationManager{db: db, logger: logger, environment: "development", fixtures: defaultFixturePath}
	if di, ok := currentDataInit(); ok {
		if di.Environment != "" {
			mm.environment = di.Environment
		}
		if di.Filepath != "" {
			mm.fixtures = di.Filepath
		}
		mm.seedOnRun = di.AutoInitOnMigration
	}
	return mm
}

func (mm *MigrationManager) SetEnvironment(env string) { mm.environment = env }

// SetFixturePath sets the fixture file, or a directory of <environment>.yaml files.
func (mm *MigrationManager) SetFixturePath(path string) { mm.fixtures = path }

// SetSeedOnRun makes RunMigrations include the fixture seeding step.
func (mm *MigrationManager) SetSeedOnRun(b bool) { mm.seedOnRun = b }

func (mm *MigrationManager) steps() []MigrationItem {
	steps := []MigrationItem{{
		Version:     "001",
		Name:        "create_base_tables",
		Description: "Create tables for registered models",
		Up:          CreateTables,
	}}
	if mm.seedOnRun {
		steps = append(steps, MigrationItem{
			Version:     "002",
			Name:        "seed_initial_data",
			Description: "Seed fixture data",
			Up:          mm.seed,
		})
	}
	return steps
}

// RunMigrations applies every step not yet recorded in schema_migrations.
// Each step and its record commit together.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	_, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	done, err := mm.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, step := range mm.steps() {
		if done[step.Version] {
			continue
		}
		err := Transaction(ctx, mm.db, func(ctx context.Context, tx bun.Tx) error {
			if err := step.Up(ctx, tx); err != nil {
				return err
			}
			record := &Migration{Version: step.Version, Name: step.Name, Description: step.Description, AppliedAt: time.Now()}
			_, err := tx.NewInsert().Model(record).Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", step.Version, err)
		}
		mm.logger.Info("Migration executed successfully", "version", step.Version, "name", step.Name)
	}
	mm.logger.Info("Database migrations completed!")
	return nil
}

func (mm *MigrationManager) appliedVersions(ctx context.Context) (map[string]bool, error) {
	applied, err := mm.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}
	return done, nil
}

// CreateTables creates the tables of all registered models when missing.
func CreateTables(ctx context.Context, db bun.IDB) error {
	for _, model := range RegisteredModelInstances() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

// InitData seeds fixtures without recording a migration.
func (mm *MigrationManager) InitData(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return mm.seed(ctx, mm.db)
}

func (mm *MigrationManager) seed(ctx context.Context, db bun.IDB) error {
	seeder := NewFixtureSeeder(db, mm.environment)
	seeder.SetPath(mm.fixtures)
	seeder.SetLogger(mm.logger)
	if err := seeder.Seed(ctx); err != nil {
		return fmt.Errorf("fixture initialization failed: %w", err)
	}
	return nil
}

// GetAppliedMigrations lists recorded migrations by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var applied []Migration
	err := mm.db.NewSelect().Model(&applied).Order("version ASC").Scan(ctx)
	return applied, err
}
