package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type note struct {
	bun.BaseModel `bun:"table:notes"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Body string `bun:"body"`
}

func init() {
	RegisteredModel(NewModelAdapter((*note)(nil), 1))
}

func sqliteConfig(t *testing.T) *Config {
	t.Helper()
	conn := DefaultConnectionConfig()
	conn.DBName = filepath.Join(t.TempDir(), "store")
	conn.HealthCheckInterval = 0
	return &Config{
		ConnectionConfig:  *conn,
		DataMigrateConfig: DataMigrateConfig{EnableMigrateOnStartup: true},
	}
}

func TestInitDBRequiresConfig(t *testing.T) {
	_, err := InitDB(nil)
	assert.Error(t, err)
}

func TestInitDBUnsupportedType(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.ConnectionConfig.Type = "oracle"
	_, err := InitDB(cfg)
	assert.Error(t, err)
}

func TestInitDBMigrates(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB() })
	assert.Same(t, db, GetDB())

	_, err = db.NewInsert().Model(&note{Body: "hello"}).Exec(ctx)
	require.NoError(t, err)

	// a second run finds version 001 applied and leaves data alone
	require.NoError(t, RunMigrations())
	n, err := db.NewSelect().Model((*note)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	applied, err := NewMigrationManager(db, nil).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "create_base_tables", applied[0].Name)

	status := GetHealthStatus(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Positive(t, GetDatabaseStats().MaxOpenConns)
}

func TestCloseDBResetsGlobals(t *testing.T) {
	_, err := InitDB(sqliteConfig(t))
	require.NoError(t, err)
	require.NoError(t, CloseDB())

	assert.Nil(t, GetDB())
	assert.Nil(t, GetDatabaseManager())
	assert.False(t, GetHealthStatus(context.Background()).Healthy)
	assert.Error(t, RunMigrations())
	assert.NoError(t, CloseDB())
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB(t, (*note)(nil))
	errAbort := errors.New("abort")

	err := Transaction(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&note{Body: "discarded"}).Exec(ctx); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	err = Transaction(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&note{Body: "kept"}).Exec(ctx)
		return err
	})
	require.NoError(t, err)

	var notes []note
	require.NoError(t, db.NewSelect().Model(&notes).Scan(ctx))
	require.Len(t, notes, 1)
	assert.Equal(t, "kept", notes[0].Body)

	assert.Error(t, Transaction(ctx, nil, nil))
}
