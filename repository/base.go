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
	"database/sql"
	"errors"
	"math"
	"sort"

	"github.com/uptrace/bun"

	"github.com/absnotary/absorm/database"
	"github.com/absnotary/absorm/types"
)

type baseRepositoryImpl[T any] struct {
	db bun.IDB
}

// NewRepository returns a generic repository executing inside the given
// unit of work's transaction.
func NewRepository[T any](uow *database.UnitOfWork) Repository[T] {
	return &baseRepositoryImpl[T]{db: uow.DB()}
}

// sortedKeys returns the field names in deterministic order so that
// generated SQL is stable across calls.
func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func applyFields(query *bun.SelectQuery, fields Fields) *bun.SelectQuery {
	for _, k := range sortedKeys(fields) {
		query = query.Where("? = ?", bun.Ident(k), fields[k])
	}
	return query
}

func (r *baseRepositoryImpl[T]) Select() *bun.SelectQuery {
	return r.db.NewSelect().Model((*T)(nil))
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity *T) (*T, error) {
	_, err := r.db.NewInsert().Model(entity).Exec(ctx)
	if err != nil {
		return nil, database.WrapWriteError(err)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) BulkCreate(ctx context.Context, entities []*T) ([]*T, error) {
	if len(entities) == 0 {
		return entities, nil
	}
	_, err := r.db.NewInsert().Model(&entities).Exec(ctx)
	if err != nil {
		return nil, database.WrapWriteError(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Get(ctx context.Context, id int64) (*T, error) {
	var entity T
	err := r.db.NewSelect().Model(&entity).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context, limit, offset int) ([]*T, error) {
	var entities []*T
	query := r.db.NewSelect().Model(&entities).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	} else if offset > 0 {
		// SQLite rejects OFFSET without LIMIT.
		query = query.Limit(math.MaxInt32)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) GetBy(ctx context.Context, field string, value interface{}) (*T, error) {
	var entities []*T
	err := r.db.NewSelect().
		Model(&entities).
		Where("? = ?", bun.Ident(field), value).
		Limit(2).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, nil
	case 1:
		return entities[0], nil
	default:
		return nil, &database.MultipleResultsError{Field: field}
	}
}

func (r *baseRepositoryImpl[T]) First(ctx context.Context, fields Fields) (*T, error) {
	var entity T
	query := applyFields(r.db.NewSelect().Model(&entity), fields)
	err := query.Order("id ASC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) FilterBy(ctx context.Context, fields Fields) ([]*T, error) {
	var entities []*T
	query := applyFields(r.db.NewSelect().Model(&entities), fields)
	err := query.Order("id ASC").Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	var entities []*T
	query := r.db.NewSelect().Model(&entities)
	if filter != nil {
		query = query.Where(filter.Clause, filter.Args...)
	}
	err := query.Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) Query(ctx context.Context, clause string, args ...interface{}) ([]*T, error) {
	var entities []*T
	err := r.db.NewSelect().Model(&entities).Where(clause, args...).Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, id int64, fields Fields) (*T, error) {
	current, err := r.Get(ctx, id)
	if err != nil || current == nil {
		return current, err
	}
	if len(fields) == 0 {
		return current, nil
	}
	update := r.db.NewUpdate().Model((*T)(nil)).Where("id = ?", id)
	for _, k := range sortedKeys(fields) {
		update = update.Set("? = ?", bun.Ident(k), fields[k])
	}
	if _, err := update.Exec(ctx); err != nil {
		return nil, database.WrapWriteError(err)
	}
	return r.Get(ctx, id)
}

func (r *baseRepositoryImpl[T]) BulkUpdate(ctx context.Context, items []BulkUpdateItem) (int, error) {
	updated := 0
	for _, item := range items {
		entity, err := r.Update(ctx, item.ID, item.Fields)
		if err != nil {
			return updated, err
		}
		if entity != nil {
			updated++
		}
	}
	return updated, nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, database.WrapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *baseRepositoryImpl[T]) Exists(ctx context.Context, id int64) (bool, error) {
	return r.db.NewSelect().Model((*T)(nil)).Where("id = ?", id).Exists(ctx)
}

func (r *baseRepositoryImpl[T]) ExistsBy(ctx context.Context, fields Fields) (bool, error) {
	return applyFields(r.db.NewSelect().Model((*T)(nil)), fields).Exists(ctx)
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, fields Fields) (int, error) {
	return applyFields(r.db.NewSelect().Model((*T)(nil)), fields).Count(ctx)
}

func (r *baseRepositoryImpl[T]) Paginate(ctx context.Context, page, pageSize int, fields Fields) (*types.Page[T], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	result := types.NewEmptyPage[T](page, pageSize)
	total, err := applyFields(r.db.NewSelect().Model((*T)(nil)), fields).Count(ctx)
	if err != nil || total == 0 {
		return result, err
	}
	var entities []*T
	err = applyFields(r.db.NewSelect().Model(&entities), fields).
		Order("id ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	result.Total = total
	result.Items = entities
	return result, nil
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Page[T], error) {
	var entities []*T
	query := r.db.NewSelect().Model(&entities)
	if pageRequest.Filter() != nil {
		query = query.Where(pageRequest.Filter().Clause, pageRequest.Filter().Args...)
	}
	result := types.NewEmptyPage[T](pageRequest.Page(), pageRequest.PageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return result, err
	}
	query = query.Offset(pageRequest.Offset()).Limit(pageRequest.PageSize())
	for _, order := range pageRequest.Orders() {
		query = query.Order(order)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	result.Total = total
	result.Items = entities
	return result, nil
}
