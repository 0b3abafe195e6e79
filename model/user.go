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

// Package model defines the persistent entities: users, notarized
// documents, and API keys.
package model

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/absnotary/absorm/database"
)

// UserRole distinguishes administrators from regular users.
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// User owns documents and API keys.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Email          string    `bun:"email,notnull,unique" json:"email"`
	HashedPassword string    `bun:"hashed_password,notnull" json:"-"`
	Role           UserRole  `bun:"role,nullzero,notnull,default:'user'" json:"role"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Documents []*Document `bun:"rel:has-many,join:id=owner_id" json:"-"`
	APIKeys   []*APIKey   `bun:"rel:has-many,join:id=owner_id" json:"-"`
}

func (u *User) String() string {
	return fmt.Sprintf("User(id=%d, email=%s, role=%s)", u.ID, u.Email, u.Role)
}

func init() {
	database.RegisterModel((*User)(nil), 10)
}
