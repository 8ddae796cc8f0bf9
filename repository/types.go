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

	"github.com/tomoncle/todostore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Session is the caller-owned unit of work every operation runs against.
// *bun.DB, bun.Tx and bun.Conn all satisfy it; the repository never opens or
// closes one.
type Session = bun.IDB

// Fields maps column names (or Go field names) to values.
type Fields map[string]interface{}

// LogicKey is the reserved Filter key selecting how predicates are joined.
// Its value "or" (any case) joins with OR; anything else joins with AND.
const LogicKey = "logic"

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	// Get returns the entity with the given id, or nil when there is none.
	Get(ctx context.Context, s Session, id any) (*T, error)

	// Create persists entity and returns it refreshed from the store.
	Create(ctx context.Context, s Session, entity *T) (*T, error)

	// CreateFromFields builds an entity from fields and creates it.
	CreateFromFields(ctx context.Context, s Session, fields Fields) (*T, error)

	// Update assigns fields to the entity with the given id. It returns nil
	// without error when the entity does not exist.
	Update(ctx context.Context, s Session, id any, fields Fields) (*T, error)

	// Delete removes the entity with the given id and reports whether it existed.
	Delete(ctx context.Context, s Session, id any) (bool, error)

	All(ctx context.Context, s Session) ([]*T, error)

	Count(ctx context.Context, s Session) (int, error)
}

// QueryRepository defines equality filtering and lookups.
type QueryRepository[T any] interface {
	Filter(ctx context.Context, s Session, filters Fields) ([]*T, error)

	Exists(ctx context.Context, s Session, id any) (bool, error)

	// GetOrCreate returns the entity identified by fields["id"], creating it
	// from fields when absent. The bool reports whether it was created.
	// Creation happens only when no row has that id; an existing row is
	// returned as is, never overwritten or duplicated.
	GetOrCreate(ctx context.Context, s Session, fields Fields) (*T, bool, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, s Session, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines CRUD, query and pagination operations for one model.
type Repository[T any] interface {
	CrudRepository[T]
	QueryRepository[T]
	PageQueryRepository[T]
	Table(s Session) (*schema.Table, error)
}
