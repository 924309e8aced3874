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

	"github.com/tomoncle/sqlrepo/mapping"
	"github.com/tomoncle/sqlrepo/types"
)

// CrudRepository defines basic CRUD operations for a record type T whose
// identifier has type ID.
type CrudRepository[T any, ID any] interface {
	// FindByID returns (nil, nil) when no row has the identifier.
	FindByID(ctx context.Context, id ID) (*T, error)

	// FindAll returns every row in store order.
	FindAll(ctx context.Context) ([]*T, error)

	// Create inserts the non-null fields of entity and reports whether a
	// row was written.
	Create(ctx context.Context, entity *T) (bool, error)

	// Update writes the non-null fields of entity to the row with the
	// identifier. Null fields keep their stored value.
	Update(ctx context.Context, id ID, entity *T) (bool, error)

	// Delete removes the row with the identifier and reports whether it
	// existed.
	Delete(ctx context.Context, id ID) (bool, error)
}

// PageQueryRepository defines pagination over the identifier order.
type PageQueryRepository[T any] interface {
	Count(ctx context.Context) (int64, error)
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines CRUD and pagination and exposes the table metadata.
type Repository[T any, ID any] interface {
	CrudRepository[T, ID]
	PageQueryRepository[T]
	Table() *mapping.Table
}
