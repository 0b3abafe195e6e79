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

// Package absorm is the data-access layer for the notarization
// platform: a bounded connection pool, transactional units of work, and
// generic repositories over Bun.
package absorm

import (
	"context"

	"github.com/absnotary/absorm/database"
	"github.com/absnotary/absorm/repository"
	"github.com/absnotary/absorm/types"
)

// Init opens the process-wide database handle with explicit settings.
// The first successful call wins; later calls return the same handle.
func Init(settings *database.Settings) (*database.DB, error) {
	return database.Init(settings)
}

// InitFromEnv opens the process-wide database handle configured from
// environment variables.
func InitFromEnv() (*database.DB, error) {
	return database.InitFromEnv()
}

// Default returns the process-wide database handle, opening it from the
// environment on first use.
func Default() (*database.DB, error) {
	return database.Default()
}

// Shutdown drains and closes the process-wide handle. Safe to call more
// than once.
func Shutdown(ctx context.Context) error {
	return database.Shutdown(ctx)
}

// Transaction runs fn inside a unit of work on the default handle,
// committing on success and rolling back on error or panic.
func Transaction(ctx context.Context, fn func(ctx context.Context, uow *database.UnitOfWork) error) error {
	db, err := database.Default()
	if err != nil {
		return err
	}
	return db.RunInUnitOfWork(ctx, fn)
}

// Service exposes the common repository operations against the default
// handle, running each call in its own transaction.
type Service[T any] interface {
	// Get returns a single entity by its identifier, or nil when absent.
	Get(ctx context.Context, id int64) (*T, error)

	// All returns entities in primary key order, windowed by limit and
	// offset when positive.
	All(ctx context.Context, limit, offset int) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Query executes a raw WHERE clause and maps the results to entities.
	Query(ctx context.Context, clause string, args ...interface{}) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Page[T], error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, entities ...*T) error

	// Update applies a partial update and returns the refreshed entity,
	// or nil when the row does not exist.
	Update(ctx context.Context, id int64, fields repository.Fields) (*T, error)

	// Delete removes an entity and reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)

	// Exists reports whether the entity with the given id exists.
	Exists(ctx context.Context, id int64) (bool, error)

	// Count returns the number of entities matching fields.
	Count(ctx context.Context, fields repository.Fields) (int, error)
}

type baseServiceImpl[T any] struct{}

// NewService returns a Service backed by the default database handle.
func NewService[T any]() Service[T] {
	return &baseServiceImpl[T]{}
}

func (s *baseServiceImpl[T]) inUnitOfWork(ctx context.Context, fn func(repo repository.Repository[T]) error) error {
	return Transaction(ctx, func(ctx context.Context, uow *database.UnitOfWork) error {
		return fn(repository.NewRepository[T](uow))
	})
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id int64) (*T, error) {
	var entity *T
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		entity, err = repo.Get(ctx, id)
		return err
	})
	return entity, err
}

func (s *baseServiceImpl[T]) All(ctx context.Context, limit, offset int) ([]*T, error) {
	var entities []*T
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		entities, err = repo.GetAll(ctx, limit, offset)
		return err
	})
	return entities, err
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	var entities []*T
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		entities, err = repo.List(ctx, filter)
		return err
	})
	return entities, err
}

func (s *baseServiceImpl[T]) Query(ctx context.Context, clause string, args ...interface{}) ([]*T, error) {
	var entities []*T
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		entities, err = repo.Query(ctx, clause, args...)
		return err
	})
	return entities, err
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Page[T], error) {
	var result *types.Page[T]
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		result, err = repo.Page(ctx, page)
		return err
	})
	return result, err
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, entities ...*T) error {
	return s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		_, err := repo.BulkCreate(ctx, entities)
		return err
	})
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id int64, fields repository.Fields) (*T, error) {
	var entity *T
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		entity, err = repo.Update(ctx, id, fields)
		return err
	})
	return entity, err
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		deleted, err = repo.Delete(ctx, id)
		return err
	})
	return deleted, err
}

func (s *baseServiceImpl[T]) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		exists, err = repo.Exists(ctx, id)
		return err
	})
	return exists, err
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, fields repository.Fields) (int, error) {
	var count int
	err := s.inUnitOfWork(ctx, func(repo repository.Repository[T]) error {
		var err error
		count, err = repo.Count(ctx, fields)
		return err
	})
	return count, err
}
