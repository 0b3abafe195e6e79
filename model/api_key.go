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

package model

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/absnotary/absorm/database"
)

// APIKey is a hashed credential bound to a user. Only the hash and a
// short display prefix are persisted; the raw key never touches the
// database.
type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	KeyHash     string    `bun:"key_hash,notnull,unique" json:"-"`
	Prefix      string    `bun:"prefix,notnull" json:"prefix"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	OwnerID     int64     `bun:"owner_id,notnull" json:"owner_id"`

	Owner *User `bun:"rel:belongs-to,join:owner_id=id" json:"-"`
}

func (k *APIKey) String() string {
	return fmt.Sprintf("APIKey(id=%d, prefix=%s, owner=%d)", k.ID, k.Prefix, k.OwnerID)
}

func init() {
	database.RegisterModel((*APIKey)(nil), 20)
}
