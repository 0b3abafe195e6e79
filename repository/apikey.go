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
	"fmt"
	"time"

	"github.com/absnotary/absorm/database"
	"github.com/absnotary/absorm/model"
)

// APIKeyStats summarizes the API key table.
type APIKeyStats struct {
	Total         int `json:"total"`
	UsersWithKeys int `json:"users_with_keys"`
}

// APIKeyRepository extends the generic repository with credential
// lookups and revocation.
type APIKeyRepository struct {
	Repository[model.APIKey]
	uow *database.UnitOfWork
}

// NewAPIKeyRepository returns an API key repository bound to the unit
// of work.
func NewAPIKeyRepository(uow *database.UnitOfWork) *APIKeyRepository {
	return &APIKeyRepository{Repository: NewRepository[model.APIKey](uow), uow: uow}
}

// GetByKeyHash returns the API key with the given hash, or nil when
// none exists.
func (r *APIKeyRepository) GetByKeyHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	return r.GetBy(ctx, "key_hash", keyHash)
}

// GetByPrefix returns the API key with the given display prefix, or nil
// when none exists.
func (r *APIKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*model.APIKey, error) {
	return r.GetBy(ctx, "prefix", prefix)
}

// UserKeys returns all API keys owned by the user.
func (r *APIKeyRepository) UserKeys(ctx context.Context, userID int64) ([]*model.APIKey, error) {
	return r.FilterBy(ctx, Fields{"owner_id": userID})
}

// KeyHashExists reports whether an API key with the given hash exists.
func (r *APIKeyRepository) KeyHashExists(ctx context.Context, keyHash string) (bool, error) {
	return r.ExistsBy(ctx, Fields{"key_hash": keyHash})
}

// ValidateKey resolves a key hash to its owning user, or nil when the
// hash matches no key.
func (r *APIKeyRepository) ValidateKey(ctx context.Context, keyHash string) (*model.User, error) {
	var user model.User
	err := r.uow.DB().NewSelect().
		Model(&user).
		Join("JOIN api_keys AS ak ON ak.owner_id = u.id").
		Where("ak.key_hash = ?", keyHash).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CountUserKeys counts the API keys owned by the user.
func (r *APIKeyRepository) CountUserKeys(ctx context.Context, userID int64) (int, error) {
	return r.Count(ctx, Fields{"owner_id": userID})
}

// SearchByDescription returns API keys whose description contains the
// pattern, case-insensitively.
func (r *APIKeyRepository) SearchByDescription(ctx context.Context, pattern string) ([]*model.APIKey, error) {
	return r.Query(ctx, "lower(description) LIKE lower(?)", "%"+pattern+"%")
}

// RecentKeys returns API keys created within the last N days.
func (r *APIKeyRepository) RecentKeys(ctx context.Context, days int) ([]*model.APIKey, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return r.Query(ctx, "created_at >= ?", cutoff)
}

// Revoke deletes the API key and reports whether it existed.
func (r *APIKeyRepository) Revoke(ctx context.Context, keyID int64) (bool, error) {
	return r.Delete(ctx, keyID)
}

// RevokeUserKeys deletes all of a user's API keys and returns how many
// were removed.
func (r *APIKeyRepository) RevokeUserKeys(ctx context.Context, userID int64) (int, error) {
	res, err := r.uow.DB().NewDelete().
		Model((*model.APIKey)(nil)).
		Where("owner_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, database.WrapWriteError(err)
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// UpdateDescription replaces the key's description and returns the
// refreshed key, or nil when not found.
func (r *APIKeyRepository) UpdateDescription(ctx context.Context, keyID int64, description string) (*model.APIKey, error) {
	return r.Update(ctx, keyID, Fields{"description": description})
}

// GetWithOwner returns the API key with its Owner relation loaded, or
// nil when not found.
func (r *APIKeyRepository) GetWithOwner(ctx context.Context, keyID int64) (*model.APIKey, error) {
	var key model.APIKey
	err := r.uow.DB().NewSelect().
		Model(&key).
		Relation("Owner").
		Where("ak.id = ?", keyID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// CreateKey inserts a new API key after rejecting a duplicate hash.
func (r *APIKeyRepository) CreateKey(ctx context.Context, ownerID int64, keyHash, prefix, description string) (*model.APIKey, error) {
	exists, err := r.KeyHashExists(ctx, keyHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("api key hash already exists: %w", database.ErrConstraintViolation)
	}
	key := &model.APIKey{
		OwnerID:     ownerID,
		KeyHash:     keyHash,
		Prefix:      prefix,
		Description: description,
	}
	return r.Create(ctx, key)
}

// Stats returns the key count and how many distinct users hold keys.
func (r *APIKeyRepository) Stats(ctx context.Context) (*APIKeyStats, error) {
	total, err := r.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	var distinctOwners int
	err = r.uow.DB().NewSelect().
		Model((*model.APIKey)(nil)).
		ColumnExpr("count(DISTINCT owner_id)").
		Scan(ctx, &distinctOwners)
	if err != nil {
		return nil, err
	}
	return &APIKeyStats{Total: total, UsersWithKeys: distinctOwners}, nil
}
