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
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"gopkg.in/yaml.v3"
)

const defaultFixturePath = "configs/fixtures"

// FixtureTable is the set of rows seeded into one table.
type FixtureTable struct {
	Table string
	Rows  []map[string]interface{}
}

// SeedResult contains the outcome of seeding a single table.
type SeedResult struct {
	Table        string
	Rows         int
	RowsAffected int64
	Duration     time.Duration
}

// FixtureSeeder inserts rows read from a YAML fixture file. The file maps
// table names to lists of column/value rows and tables are seeded in file
// order. Rows whose key already exists are skipped.
type FixtureSeeder struct {
	db          bun.IDB
	environment string
	path        string
	logger      Logger
}

// NewFixtureSeeder creates a seeder for the given environment.
func NewFixtureSeeder(db bun.IDB, environment string) *FixtureSeeder {
	return &FixtureSeeder{
		db:          db,
		environment: environment,
		path:        defaultFixturePath,
		logger:      GetLogger(),
	}
}

// SetPath sets the fixture file, or a directory holding <environment>.yaml.
func (s *FixtureSeeder) SetPath(path string) {
	s.path = path
}

func (s *FixtureSeeder) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// ResolvePath returns the fixture file that Seed will read.
func (s *FixtureSeeder) ResolvePath() string {
	info, err := os.Stat(s.path)
	if err == nil && info.IsDir() {
		return filepath.Join(s.path, s.environment+".yaml")
	}
	return s.path
}

// Load parses the fixture file. A missing file yields no tables.
func (s *FixtureSeeder) Load() ([]FixtureTable, error) {
	path := s.ResolvePath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes a fixture document, keeping the table order of the source.
func ParseFixtures(data []byte) ([]FixtureTable, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fixture file: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("fixture file must be a mapping of table names to rows")
	}

	tables := make([]FixtureTable, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		table := FixtureTable{Table: root.Content[i].Value}
		if err := root.Content[i+1].Decode(&table.Rows); err != nil {
			return nil, fmt.Errorf("invalid rows for table %s: %w", table.Table, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// Seed inserts all fixture rows. Failing rows do not stop the remaining ones;
// their errors are returned together.
func (s *FixtureSeeder) Seed(ctx context.Context) error {
	tables, err := s.Load()
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		s.logger.Info("No fixtures found to seed", "path", s.ResolvePath())
		return nil
	}

	var result *multierror.Error
	for _, table := range tables {
		res, err := s.seedTable(ctx, table)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		s.logger.Info("Fixture table seeded",
			"table", res.Table,
			"rows", res.Rows,
			"rows_affected", res.RowsAffected,
			"duration", res.Duration.String(),
		)
	}
	return result.ErrorOrNil()
}

func (s *FixtureSeeder) seedTable(ctx context.Context, table FixtureTable) (SeedResult, error) {
	start := time.Now()
	res := SeedResult{Table: table.Table, Rows: len(table.Rows)}
	var result *multierror.Error
	for i, row := range table.Rows {
		values := row
		q := s.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(table.Table))
		switch {
		case s.db.Dialect().Features().Has(feature.InsertOnConflict):
			q = q.On("CONFLICT DO NOTHING")
		case s.db.Dialect().Features().Has(feature.InsertIgnore):
			q = q.Ignore()
		}
		r, err := q.Exec(ctx)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("table %s row %d: %w", table.Table, i, err))
			continue
		}
		if n, err := r.RowsAffected(); err == nil {
			res.RowsAffected += n
		}
	}
	res.Duration = time.Since(start)
	return res, result.ErrorOrNil()
}
