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

// UserStats summarizes the user table by role.
type UserStats struct {
	Total        int `json:"total"`
	Admins       int `json:"admins"`
	RegularUsers int `json:"regular_users"`
}

// UserRepository extends the generic repository with user lookups and
// role management.
type UserRepository struct {
	Repository[model.User]
	uow *database.UnitOfWork
}

// NewUserRepository returns a user repository bound to the unit of work.
func NewUserRepository(uow *database.UnitOfWork) *UserRepository {
	return &UserRepository{Repository: NewRepository[model.User](uow), uow: uow}
}

// GetByEmail returns the user with the given email, or nil when none
// exists.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.GetBy(ctx, "email", email)
}

// EmailExists reports whether a user with the given email exists.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.ExistsBy(ctx, Fields{"email": email})
}

// Admins returns all admin users.
func (r *UserRepository) Admins(ctx context.Context) ([]*model.User, error) {
	return r.FilterBy(ctx, Fields{"role": model.UserRoleAdmin})
}

// RegularUsers returns all non-admin users.
func (r *UserRepository) RegularUsers(ctx context.Context) ([]*model.User, error) {
	return r.FilterBy(ctx, Fields{"role": model.UserRoleUser})
}

// ByRole returns all users with the given role.
func (r *UserRepository) ByRole(ctx context.Context, role model.UserRole) ([]*model.User, error) {
	return r.FilterBy(ctx, Fields{"role": role})
}

// IsAdmin reports whether the user exists and holds the admin role.
func (r *UserRepository) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := r.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil && user.Role == model.UserRoleAdmin, nil
}

// PromoteToAdmin grants the admin role and reports whether the user was
// found.
func (r *UserRepository) PromoteToAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := r.Update(ctx, userID, Fields{"role": model.UserRoleAdmin})
	return user != nil, err
}

// DemoteToUser revokes the admin role and reports whether the user was
// found.
func (r *UserRepository) DemoteToUser(ctx context.Context, userID int64) (bool, error) {
	user, err := r.Update(ctx, userID, Fields{"role": model.UserRoleUser})
	return user != nil, err
}

// CountByRole counts users holding the given role.
func (r *UserRepository) CountByRole(ctx context.Context, role model.UserRole) (int, error) {
	return r.Count(ctx, Fields{"role": role})
}

// RecentUsers returns users created within the last N days.
func (r *UserRepository) RecentUsers(ctx context.Context, days int) ([]*model.User, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return r.Query(ctx, "created_at >= ?", cutoff)
}

// SearchByEmail returns users whose email contains the pattern,
// case-insensitively.
func (r *UserRepository) SearchByEmail(ctx context.Context, pattern string) ([]*model.User, error) {
	return r.Query(ctx, "lower(email) LIKE lower(?)", "%"+pattern+"%")
}

// GetWithAPIKeys returns the user with the APIKeys relation loaded, or
// nil when not found.
func (r *UserRepository) GetWithAPIKeys(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := r.uow.DB().NewSelect().
		Model(&user).
		Relation("APIKeys").
		Where("u.id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetWithDocuments returns the user with the Documents relation loaded,
// or nil when not found.
func (r *UserRepository) GetWithDocuments(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := r.uow.DB().NewSelect().
		Model(&user).
		Relation("Documents").
		Where("u.id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePassword replaces the stored password hash and reports whether
// the user was found.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) (bool, error) {
	user, err := r.Update(ctx, userID, Fields{"hashed_password": hashedPassword})
	return user != nil, err
}

// BulkCreateUsers inserts users after rejecting duplicate emails within
// the batch.
func (r *UserRepository) BulkCreateUsers(ctx context.Context, users []*model.User) ([]*model.User, error) {
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if _, dup := seen[u.Email]; dup {
			return nil, fmt.Errorf("duplicate email in bulk create: %s", u.Email)
		}
		seen[u.Email] = struct{}{}
	}
	return r.BulkCreate(ctx, users)
}

// Stats returns aggregate user counts by role.
func (r *UserRepository) Stats(ctx context.Context) (*UserStats, error) {
	total, err := r.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	admins, err := r.CountByRole(ctx, model.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	regular, err := r.CountByRole(ctx, model.UserRoleUser)
	if err != nil {
		return nil, err
	}
	return &UserStats{Total: total, Admins: admins, RegularUsers: regular}, nil
}
