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

	"github.com/uptrace/bun"
)

// Transaction runs fn inside a transaction on db, committing when fn returns
// nil and rolling back otherwise. On a bun.Tx it nests as a savepoint.
func Transaction(ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return db.RunInTx(ctx, nil, fn)
}

// WithTransaction runs fn inside a transaction on the global database.
func WithTransaction(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return Transaction(ctx, db, fn)
}
