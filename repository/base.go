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

package repository

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/pkg/errors"
	"github.com/tomoncle/todostore/database"
	"github.com/tomoncle/todostore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

const loggerName = "REPOSITORY"

type baseRepositoryImpl[T any] struct {
	typ    reflect.Type
	name   string
	logger database.Logger
}

// Option configures a repository.
type Option func(*options)

type options struct {
	logger database.Logger
}

// WithLogger replaces the default REPOSITORY logger.
func WithLogger(logger database.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewRepository returns a generic repository bound to model T. T must be a
// Bun model struct with an "id" primary key column.
func NewRepository[T any](opts ...Option) Repository[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = database.NewDefaultLogger(loggerName)
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return &baseRepositoryImpl[T]{typ: typ, name: typ.Name(), logger: o.logger}
}

// Table resolves the Bun table of T through the session's dialect.
func (r *baseRepositoryImpl[T]) Table(s Session) (*schema.Table, error) {
	if r.typ.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrUnknownModel, "%s", r.typ)
	}
	table := s.Dialect().Tables().Get(r.typ)
	if !table.HasField(idColumn) {
		return nil, errors.Wrapf(ErrNoIDColumn, "%s", r.name)
	}
	return table, nil
}

func (r *baseRepositoryImpl[T]) Get(ctx context.Context, s Session, id any) (*T, error) {
	if _, err := r.Table(s); err != nil {
		return nil, err
	}
	entity := new(T)
	err := s.NewSelect().Model(entity).Where("?TableAlias.? = ?", bun.Ident(idColumn), id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s %v", r.name, id)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, s Session, entity *T) (*T, error) {
	if entity == nil {
		return nil, ErrNilEntity
	}
	if _, err := r.Table(s); err != nil {
		return nil, err
	}
	err := s.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(entity).Exec(ctx); err != nil {
			return err
		}
		// pick up generated ids and column defaults
		return tx.NewSelect().Model(entity).WherePK().Scan(ctx)
	})
	if err != nil {
		return nil, r.writeError("create", nil, err)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) CreateFromFields(ctx context.Context, s Session, fields Fields) (*T, error) {
	table, err := r.Table(s)
	if err != nil {
		return nil, err
	}
	entity := new(T)
	if err := assignFields(table, entity, fields, false); err != nil {
		r.logger.Error("An error occurred", "op", "create", "model", r.name, "error", err)
		return nil, err
	}
	return r.Create(ctx, s, entity)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, s Session, id any, fields Fields) (*T, error) {
	table, err := r.Table(s)
	if err != nil {
		return nil, err
	}
	entity, err := r.Get(ctx, s, id)
	if err != nil {
		r.logger.Error("An error occurred", "op", "update", "model", r.name, "id", id, "error", err)
		return nil, err
	}
	if entity == nil {
		r.logger.Info("Object not found", "op", "update", "model", r.name, "id", id)
		return nil, nil
	}
	if err := assignFields(table, entity, fields, true); err != nil {
		r.logger.Error("An error occurred", "op", "update", "model", r.name, "id", id, "error", err)
		return nil, err
	}
	err = s.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model(entity).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, r.writeError("update", id, err)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, s Session, id any) (bool, error) {
	entity, err := r.Get(ctx, s, id)
	if err != nil {
		r.logger.Error("An error occurred", "op", "delete", "model", r.name, "id", id, "error", err)
		return false, err
	}
	if entity == nil {
		r.logger.Info("Object not found", "op", "delete", "model", r.name, "id", id)
		return false, nil
	}
	err = s.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model(entity).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return false, r.writeError("delete", id, err)
	}
	return true, nil
}

func (r *baseRepositoryImpl[T]) All(ctx context.Context, s Session) ([]*T, error) {
	if _, err := r.Table(s); err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	err := s.NewSelect().Model(&entities).OrderExpr("?TableAlias.? ASC", bun.Ident(idColumn)).Scan(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", r.name)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Filter(ctx context.Context, s Session, filters Fields) ([]*T, error) {
	table, err := r.Table(s)
	if err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	query := s.NewSelect().Model(&entities)
	query = applyFilters(query, table, filters)
	if err := query.OrderExpr("?TableAlias.? ASC", bun.Ident(idColumn)).Scan(ctx); err != nil {
		r.logger.Error("An error occurred", "op", "filter", "model", r.name, "error", err)
		return nil, errors.Wrapf(err, "filter %s", r.name)
	}
	return entities, nil
}

// applyFilters adds the equality predicates of filters as one WHERE group.
// Without predicates the query is left unfiltered.
func applyFilters(query *bun.SelectQuery, table *schema.Table, filters Fields) *bun.SelectQuery {
	preds := predicates(table, filters)
	if len(preds) == 0 {
		return query
	}
	or := isOrLogic(filters)
	return query.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, p := range preds {
			cond, args := "?TableAlias.? = ?", []interface{}{bun.Ident(p.column), p.value}
			if p.value == nil {
				cond, args = "?TableAlias.? IS NULL", []interface{}{bun.Ident(p.column)}
			}
			if or {
				q = q.WhereOr(cond, args...)
			} else {
				q = q.Where(cond, args...)
			}
		}
		return q
	})
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, s Session) (int, error) {
	if _, err := r.Table(s); err != nil {
		return 0, err
	}
	n, err := s.NewSelect().Model((*T)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s", r.name)
	}
	return n, nil
}

func (r *baseRepositoryImpl[T]) Exists(ctx context.Context, s Session, id any) (bool, error) {
	if _, err := r.Table(s); err != nil {
		return false, err
	}
	ok, err := s.NewSelect().Model((*T)(nil)).Where("?TableAlias.? = ?", bun.Ident(idColumn), id).Exists(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "exists %s %v", r.name, id)
	}
	return ok, nil
}

func (r *baseRepositoryImpl[T]) GetOrCreate(ctx context.Context, s Session, fields Fields) (*T, bool, error) {
	table, err := r.Table(s)
	if err != nil {
		return nil, false, err
	}
	if id, ok := idFromFields(table, fields); ok {
		entity, err := r.Get(ctx, s, id)
		if err != nil {
			return nil, false, err
		}
		if entity != nil {
			return entity, false, nil
		}
	}
	entity, err := r.CreateFromFields(ctx, s, fields)
	if err != nil {
		return nil, false, err
	}
	return entity, true, nil
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, s Session, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	table, err := r.Table(s)
	if err != nil {
		return nil, err
	}
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(types.DefaultPage, types.DefaultPageSize)
	}
	entities := make([]*T, 0)
	query := applyFilters(s.NewSelect().Model(&entities), table, pageRequest.GetFilters())
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "page %s", r.name)
	}
	if total == 0 {
		return pagination, nil
	}
	if orders := pageRequest.GetOrders(); len(orders) > 0 {
		query = query.Order(orders...)
	} else {
		query = query.OrderExpr("?TableAlias.? ASC", bun.Ident(idColumn))
	}
	err = query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "page %s", r.name)
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

// writeError logs a failed write and maps uniqueness violations to ConflictError.
func (r *baseRepositoryImpl[T]) writeError(op string, id any, err error) error {
	if database.IsDuplicateKey(err) {
		r.logger.Info("Already added to the database", "op", op, "model", r.name, "id", id, "error", err)
		return &ConflictError{Model: r.name, Err: err}
	}
	r.logger.Error("An error occurred", "op", op, "model", r.name, "id", id, "error", err)
	return errors.Wrapf(err, "%s %s", op, r.name)
}
