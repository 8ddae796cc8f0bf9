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

package todostore

import (
	"context"
	"errors"
	"sync"

	"github.com/tomoncle/todostore/database"
	"github.com/tomoncle/todostore/model"
	"github.com/tomoncle/todostore/repository"
	"github.com/tomoncle/todostore/types"
	"github.com/uptrace/bun"
)

// ErrNotInitialized is returned by Service calls made before Setup or database.InitDB.
var ErrNotInitialized = errors.New("database not initialized")

// Todos is the Service for model.Todo backed by the global database.
var Todos = NewService[model.Todo]()

type Service[T any] interface {
	// Get returns a single entity by its identifier, or nil when absent.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities ordered by id.
	All(ctx context.Context) ([]*T, error)

	// Filter returns entities matching every field, or any of them when
	// fields["logic"] is "or".
	Filter(ctx context.Context, fields repository.Fields) ([]*T, error)

	Count(ctx context.Context) (int, error)

	Exists(ctx context.Context, id any) (bool, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Create inserts a new entity.
	Create(ctx context.Context, entity *T) (*T, error)

	CreateFromFields(ctx context.Context, fields repository.Fields) (*T, error)

	GetOrCreate(ctx context.Context, fields repository.Fields) (*T, bool, error)

	// Update modifies an existing entity and returns nil when it does not exist.
	Update(ctx context.Context, id any, fields repository.Fields) (*T, error)

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) (bool, error)

	// WithTx runs fn with a repository session bound to one transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx, repo repository.Repository[T]) error) error

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery
}

type baseServiceImpl[T any] struct {
	repo repository.Repository[T]
	once sync.Once
}

// NewService returns a default Service implementation using the generic
// repository backed by the global database connection.
func NewService[T any]() Service[T] {
	return &baseServiceImpl[T]{}
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	s.once.Do(func() { s.repo = repository.NewRepository[T]() })
	return s.repo
}

func session() (repository.Session, error) {
	db := database.GetDB()
	if db == nil {
		return nil, ErrNotInitialized
	}
	return db, nil
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	db, err := session()
	if err != nil {
		return nil, err
	}
	return s.baseRepo().Get(ctx, db, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	db, err := session()
	if err != nil {
		return nil, err
	}
	return s.baseRepo().All(ctx, db)
}

func (s *baseServiceImpl[T]) Filter(ctx context.Context, fields repository.Fields) ([]*T, error) {
	db, err := session()
	if err != nil {
		return nil, err
	}
	return s.baseRepo().Filter(ctx, db, fields)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context) (int, error) {
	db, err := session()
	if err != nil {
		return 0, err
	}
	return s.baseRepo().Count(ctx, db)
}

func (s *baseServiceImpl[T]) Exists(ctx context.Context, id any) (bool, error) {
	db, err := session()
	if err != nil {
		return false, err
	}
	return s.baseRepo().Exists(ctx, db, id)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	db, err := session()
	if err != nil {
		return nil, err
	}
	return s.baseRepo().Page(ctx, db, page)
}

func (s *baseServiceImpl[T]) Create(ctx context.Context, entity *T) (*T, error) {
	db, err := session()
	if err != nil {
		return nil, err
	}
	return s.baseRepo().Create(ctx, db, entity)
}

func (s *baseServiceImpl[T]) CreateFromFields(ctx context.Context, fields repository.Fields) (*T, error) {
	db, err := session()
	if err != nil {
		return nil, err
	}
	return s.baseRepo().CreateFromFields(ctx, db, fields)
}

func (s *baseServiceImpl[T]) GetOrCreate(ctx context.Context, fields repository.Fields) (*T, bool, error) {
	db, err := session()
	if err != nil {
		return nil, false, err
	}
	return s.baseRepo().GetOrCreate(ctx, db, fields)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, fields repository.Fields) (*T, error) {
	db, err := session()
	if err != nil {
		return nil, err
	}
	return s.baseRepo().Update(ctx, db, id, fields)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) (bool, error) {
	db, err := session()
	if err != nil {
		return false, err
	}
	return s.baseRepo().Delete(ctx, db, id)
}

func (s *baseServiceImpl[T]) WithTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx, repo repository.Repository[T]) error) error {
	db, err := session()
	if err != nil {
		return err
	}
	return database.Transaction(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx, s.baseRepo())
	})
}

func (s *baseServiceImpl[T]) SelectBuilder() *bun.SelectQuery {
	db := database.GetDB()
	if db == nil {
		return nil
	}
	return db.NewSelect().Model((*T)(nil))
}
