package repository_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/todostore/database"
	"github.com/tomoncle/todostore/model"
	"github.com/tomoncle/todostore/repository"
	"github.com/tomoncle/todostore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type logRecord struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *recordingLogger) SetLevel(database.LogLevel) {}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level, msg})
}

func (l *recordingLogger) Debug(msg string, _ ...interface{}) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...interface{})  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...interface{})  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.add("error", msg) }

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.level == level && r.msg == msg {
			return true
		}
	}
	return false
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*model.Todo)(nil)).Exec(context.Background())
	require.NoError(t, err)
	return db
}

func newTodoRepo() (repository.Repository[model.Todo], *recordingLogger) {
	logger := &recordingLogger{}
	return repository.NewRepository[model.Todo](repository.WithLogger(logger)), logger
}

func seedTodos(t *testing.T, db *bun.DB, repo repository.Repository[model.Todo], todos ...model.Todo) []*model.Todo {
	t.Helper()
	created := make([]*model.Todo, 0, len(todos))
	for i := range todos {
		todo, err := repo.Create(context.Background(), db, &todos[i])
		require.NoError(t, err)
		created = append(created, todo)
	}
	return created
}

func assertSameTodo(t *testing.T, want, got *model.Todo) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.Completed, got.Completed)
	assert.Equal(t, want.Priority, got.Priority)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", want.CreatedAt, got.CreatedAt)
}

func todoIDs(todos []*model.Todo) []int64 {
	ids := make([]int64, len(todos))
	for i, todo := range todos {
		ids[i] = todo.ID
	}
	return ids
}

func TestCreateThenGet(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()

	created, err := repo.Create(ctx, db, &model.Todo{Title: "buy milk", Priority: 2})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.Get(ctx, db, created.ID)
	require.NoError(t, err)
	assertSameTodo(t, created, got)
}

func TestCreateDuplicateID(t *testing.T) {
	db := newTestDB(t)
	repo, logger := newTodoRepo()
	ctx := context.Background()

	first, err := repo.CreateFromFields(ctx, db, repository.Fields{"id": 1, "title": "buy milk"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "buy milk", first.Title)

	dup, err := repo.CreateFromFields(ctx, db, repository.Fields{"id": 1, "title": "dup"})
	require.Error(t, err)
	assert.Nil(t, dup)
	assert.True(t, repository.IsConflict(err))
	var conflict *repository.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Todo", conflict.Model)
	assert.True(t, logger.has("info", "Already added to the database"))

	n, err := repo.Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, db, 1)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", got.Title)
}

func TestCreateFromFields(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()

	todo, err := repo.CreateFromFields(ctx, db, repository.Fields{
		"title":    "walk dog",
		"Priority": int64(3),
		"unknown":  "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "walk dog", todo.Title)
	assert.Equal(t, 3, todo.Priority)

	_, err = repo.CreateFromFields(ctx, db, repository.Fields{"title": 5})
	require.Error(t, err)
	assert.False(t, repository.IsConflict(err))
}

func TestCreateFromFieldsRejectsInexactNumbers(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()

	_, err := repo.CreateFromFields(ctx, db, repository.Fields{"title": "a", "priority": 1.9})
	require.Error(t, err)
	_, err = repo.CreateFromFields(ctx, db, repository.Fields{"id": -1.5, "title": "b"})
	require.Error(t, err)

	n, err := repo.Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	todo, err := repo.CreateFromFields(ctx, db, repository.Fields{"id": 4.0, "title": "c", "priority": 2.0})
	require.NoError(t, err)
	assert.Equal(t, int64(4), todo.ID)
	assert.Equal(t, 2, todo.Priority)
}

func TestCreateNilEntity(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	_, err := repo.Create(context.Background(), db, nil)
	assert.ErrorIs(t, err, repository.ErrNilEntity)
}

func TestGetMissing(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()

	got, err := repo.Get(context.Background(), db, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()
	todo := seedTodos(t, db, repo, model.Todo{Title: "draft"})[0]

	updated, err := repo.Update(ctx, db, todo.ID, repository.Fields{
		"title":     "final",
		"completed": true,
		"id":        999,
		"nope":      1,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, todo.ID, updated.ID)
	assert.Equal(t, "final", updated.Title)
	assert.True(t, updated.Completed)

	got, err := repo.Get(ctx, db, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.True(t, got.Completed)

	missing, err := repo.Get(ctx, db, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateMissing(t *testing.T) {
	db := newTestDB(t)
	repo, logger := newTodoRepo()

	got, err := repo.Update(context.Background(), db, 999, repository.Fields{"title": "x"})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, logger.has("info", "Object not found"))
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	repo, logger := newTodoRepo()
	ctx := context.Background()
	todo := seedTodos(t, db, repo, model.Todo{Title: "obsolete"})[0]

	ok, err := repo.Delete(ctx, db, todo.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(ctx, db, todo.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err = repo.Delete(ctx, db, todo.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, logger.has("info", "Object not found"))
}

func TestAllAndCount(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()

	all, err := repo.All(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, all)

	created := seedTodos(t, db, repo,
		model.Todo{Title: "a"},
		model.Todo{Title: "b"},
		model.Todo{Title: "c"},
	)

	all, err = repo.All(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, todoIDs(created), todoIDs(all))

	n, err := repo.Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, len(all), n)
}

func TestFilter(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()
	created := seedTodos(t, db, repo,
		model.Todo{Title: "one", Priority: 1},
		model.Todo{Title: "two", Priority: 2, Completed: true},
		model.Todo{Title: "three", Priority: 1, Completed: true},
		model.Todo{Title: "four", Priority: 3},
	)

	tests := []struct {
		name    string
		filters repository.Fields
		want    []int64
	}{
		{
			name:    "and",
			filters: repository.Fields{"priority": 1, "completed": true},
			want:    []int64{created[2].ID},
		},
		{
			name:    "or",
			filters: repository.Fields{"logic": "OR", "priority": 1, "completed": true},
			want:    []int64{created[0].ID, created[1].ID, created[2].ID},
		},
		{
			name:    "or mixed case",
			filters: repository.Fields{"logic": "Or", "title": "one", "Title": "four"},
			want:    []int64{created[0].ID, created[3].ID},
		},
		{
			name:    "explicit and",
			filters: repository.Fields{"logic": "and", "priority": 1, "completed": false},
			want:    []int64{created[0].ID},
		},
		{
			name:    "unknown keys only",
			filters: repository.Fields{"colour": "red", "logic": "or"},
			want:    todoIDs(created),
		},
		{
			name:    "empty",
			filters: nil,
			want:    todoIDs(created),
		},
		{
			name:    "no match",
			filters: repository.Fields{"title": "five"},
			want:    []int64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Filter(ctx, db, tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, todoIDs(got))
		})
	}
}

func TestGetOrCreate(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()

	todo, created, err := repo.GetOrCreate(ctx, db, repository.Fields{"id": 7, "title": "first"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), todo.ID)

	again, created, err := repo.GetOrCreate(ctx, db, repository.Fields{"id": 7, "title": "second"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "first", again.Title)

	noID, created, err := repo.GetOrCreate(ctx, db, repository.Fields{"title": "anonymous"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, noID.ID)

	n, err := repo.Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExists(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()
	todo := seedTodos(t, db, repo, model.Todo{Title: "here"})[0]

	ok, err := repo.Exists(ctx, db, todo.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, db, todo.ID+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPage(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()
	created := seedTodos(t, db, repo,
		model.Todo{Title: "a", Priority: 1},
		model.Todo{Title: "b", Priority: 1},
		model.Todo{Title: "c", Priority: 1},
		model.Todo{Title: "d", Priority: 2},
	)

	page, err := repo.Page(ctx, db, types.NewPageRequestWithFilters(2, 2, map[string]interface{}{"priority": 1}))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	assert.Equal(t, []int64{created[2].ID}, todoIDs(page.Items))

	page, err = repo.Page(ctx, db, types.NewPageRequestWithOrders(1, 2, []string{"id DESC"}))
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, []int64{created[3].ID, created[2].ID}, todoIDs(page.Items))

	page, err = repo.Page(ctx, db, types.NewPageRequestWithFilters(1, 10, map[string]interface{}{"title": "zzz"}))
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)
}

func TestCallerOwnedTransaction(t *testing.T) {
	db := newTestDB(t)
	repo, _ := newTodoRepo()
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	todo, err := repo.Create(ctx, tx, &model.Todo{Title: "uncommitted"})
	require.NoError(t, err)

	n, err := repo.Count(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, tx.Rollback())

	got, err := repo.Get(ctx, db, todo.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = database.Transaction(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Create(ctx, tx, &model.Todo{Title: "committed"})
		return err
	})
	require.NoError(t, err)
	n, err = repo.Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type keyedByName struct {
	bun.BaseModel `bun:"table:keyed_by_name"`

	Name string `bun:"name,pk"`
}

func TestModelWithoutIDColumn(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRepository[keyedByName]()

	_, err := repo.Get(context.Background(), db, 1)
	assert.ErrorIs(t, err, repository.ErrNoIDColumn)

	_, err = repo.Table(db)
	assert.ErrorIs(t, err, repository.ErrNoIDColumn)
}
