/*
 * Copyright 2026 absnotary.
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

	"github.com/uptrace/bun"

	"github.com/absnotary/absorm/types"
)

// Fields maps column names to values for filtering and partial updates.
type Fields map[string]interface{}

// BulkUpdateItem names one row to update and the columns to change.
type BulkUpdateItem struct {
	ID     int64
	Fields Fields
}

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	Create(ctx context.Context, entity *T) (*T, error)

	BulkCreate(ctx context.Context, entities []*T) ([]*T, error)

	// Get returns the entity with the given primary key, or nil when
	// no row matches.
	Get(ctx context.Context, id int64) (*T, error)

	GetAll(ctx context.Context, limit, offset int) ([]*T, error)

	// GetBy returns the single entity matching field = value. It
	// returns nil when no row matches and ErrMultipleResults when more
	// than one does.
	GetBy(ctx context.Context, field string, value interface{}) (*T, error)

	// First returns the first matching entity in primary key order, or
	// nil when no row matches.
	First(ctx context.Context, fields Fields) (*T, error)

	FilterBy(ctx context.Context, fields Fields) ([]*T, error)

	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Update applies a partial column update to the row with the given
	// id and returns the refreshed entity, or nil when the row does
	// not exist. Empty fields return the current entity unchanged.
	Update(ctx context.Context, id int64, fields Fields) (*T, error)

	// BulkUpdate applies each item's fields to its row and returns the
	// number of rows found and updated. Unknown ids are skipped.
	BulkUpdate(ctx context.Context, items []BulkUpdateItem) (int, error)

	// Delete removes the row with the given id and reports whether a
	// row was deleted.
	Delete(ctx context.Context, id int64) (bool, error)

	Exists(ctx context.Context, id int64) (bool, error)

	ExistsBy(ctx context.Context, fields Fields) (bool, error)

	// Count returns the number of rows matching fields; nil or empty
	// fields count the whole table.
	Count(ctx context.Context, fields Fields) (int, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	// Paginate returns the 1-based page of rows matching fields,
	// ordered by primary key.
	Paginate(ctx context.Context, page, pageSize int, fields Fields) (*types.Page[T], error)

	Page(ctx context.Context, page *types.PageRequest) (*types.Page[T], error)
}

// Repository combines CRUD and pagination operations and exposes Bun
// query builders for advanced use cases.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]

	// Query runs a raw WHERE clause against the entity's table.
	Query(ctx context.Context, clause string, args ...interface{}) ([]*T, error)

	// Select returns a select query pre-bound to the entity model.
	Select() *bun.SelectQuery
}
