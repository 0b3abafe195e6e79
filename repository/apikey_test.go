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

package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/absnotary/absorm/database"
	"github.com/absnotary/absorm/repository"
)

func TestAPIKeyRepositoryCreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	users := repository.NewUserRepository(uow)
	keys := repository.NewAPIKeyRepository(uow)
	ctx := context.Background()

	owner := seedUser(ctx, t, users, "keys@example.com", "")

	key, err := keys.CreateKey(ctx, owner.ID, "hash-abc", "sk_live_", "production")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if key.ID == 0 {
		t.Error("create should populate the generated id")
	}

	got, err := keys.GetByKeyHash(ctx, "hash-abc")
	if err != nil || got == nil || got.ID != key.ID {
		t.Fatalf("get by key hash: %+v, %v", got, err)
	}

	byPrefix, err := keys.GetByPrefix(ctx, "sk_live_")
	if err != nil || byPrefix == nil || byPrefix.ID != key.ID {
		t.Errorf("get by prefix: %+v, %v", byPrefix, err)
	}

	exists, err := keys.KeyHashExists(ctx, "hash-abc")
	if err != nil || !exists {
		t.Errorf("key hash exists: %v, %v", exists, err)
	}

	// A duplicate hash is refused before touching the table.
	if _, err := keys.CreateKey(ctx, owner.ID, "hash-abc", "sk_live_", "dupe"); !errors.Is(err, database.ErrConstraintViolation) {
		t.Errorf("duplicate hash: got %v, want ErrConstraintViolation", err)
	}
}

func TestAPIKeyRepositoryValidateKey(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	users := repository.NewUserRepository(uow)
	keys := repository.NewAPIKeyRepository(uow)
	ctx := context.Background()

	owner := seedUser(ctx, t, users, "validate@example.com", "")
	if _, err := keys.CreateKey(ctx, owner.ID, "hash-valid", "sk_test_", ""); err != nil {
		t.Fatalf("create key: %v", err)
	}

	resolved, err := keys.ValidateKey(ctx, "hash-valid")
	if err != nil {
		t.Fatalf("validate key: %v", err)
	}
	if resolved == nil || resolved.ID != owner.ID {
		t.Errorf("resolved owner: %+v", resolved)
	}

	invalid, err := keys.ValidateKey(ctx, "hash-bogus")
	if err != nil {
		t.Fatalf("validate bogus key: %v", err)
	}
	if invalid != nil {
		t.Errorf("bogus key should resolve to nil, got %+v", invalid)
	}
}

func TestAPIKeyRepositoryRevocation(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	users := repository.NewUserRepository(uow)
	keys := repository.NewAPIKeyRepository(uow)
	ctx := context.Background()

	owner := seedUser(ctx, t, users, "revoke@example.com", "")
	other := seedUser(ctx, t, users, "other-revoke@example.com", "")

	first, err := keys.CreateKey(ctx, owner.ID, "hash-r1", "sk_", "")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if _, err := keys.CreateKey(ctx, owner.ID, "hash-r2", "sk_", ""); err != nil {
		t.Fatalf("create key: %v", err)
	}
	if _, err := keys.CreateKey(ctx, other.ID, "hash-r3", "sk_", ""); err != nil {
		t.Fatalf("create key: %v", err)
	}

	revoked, err := keys.Revoke(ctx, first.ID)
	if err != nil || !revoked {
		t.Fatalf("revoke: %v, %v", revoked, err)
	}
	revoked, err = keys.Revoke(ctx, first.ID)
	if err != nil || revoked {
		t.Errorf("second revoke should report false: %v, %v", revoked, err)
	}

	removed, err := keys.RevokeUserKeys(ctx, owner.ID)
	if err != nil || removed != 1 {
		t.Errorf("revoke user keys: %d, %v", removed, err)
	}

	remaining, err := keys.CountUserKeys(ctx, other.ID)
	if err != nil || remaining != 1 {
		t.Errorf("other user's keys should survive: %d, %v", remaining, err)
	}
}

func TestAPIKeyRepositoryDescription(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	users := repository.NewUserRepository(uow)
	keys := repository.NewAPIKeyRepository(uow)
	ctx := context.Background()

	owner := seedUser(ctx, t, users, "desc@example.com", "")
	key, err := keys.CreateKey(ctx, owner.ID, "hash-d1", "sk_", "CI Deploy Key")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	found, err := keys.SearchByDescription(ctx, "deploy")
	if err != nil || len(found) != 1 {
		t.Errorf("search by description: %d, %v", len(found), err)
	}

	updated, err := keys.UpdateDescription(ctx, key.ID, "retired")
	if err != nil || updated == nil || updated.Description != "retired" {
		t.Errorf("update description: %+v, %v", updated, err)
	}
}

func TestAPIKeyRepositoryOwnerRelation(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	users := repository.NewUserRepository(uow)
	keys := repository.NewAPIKeyRepository(uow)
	ctx := context.Background()

	owner := seedUser(ctx, t, users, "rel-owner@example.com", "")
	key, err := keys.CreateKey(ctx, owner.ID, "hash-rel", "sk_", "")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	got, err := keys.GetWithOwner(ctx, key.ID)
	if err != nil {
		t.Fatalf("get with owner: %v", err)
	}
	if got == nil || got.Owner == nil || got.Owner.Email != "rel-owner@example.com" {
		t.Errorf("owner relation: %+v", got)
	}
}

func TestAPIKeyRepositoryStats(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	users := repository.NewUserRepository(uow)
	keys := repository.NewAPIKeyRepository(uow)
	ctx := context.Background()

	a := seedUser(ctx, t, users, "stats-a@example.com", "")
	b := seedUser(ctx, t, users, "stats-b@example.com", "")
	if _, err := keys.CreateKey(ctx, a.ID, "hash-sa1", "sk_", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := keys.CreateKey(ctx, a.ID, "hash-sa2", "sk_", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := keys.CreateKey(ctx, b.ID, "hash-sb1", "sk_", ""); err != nil {
		t.Fatal(err)
	}

	stats, err := keys.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.UsersWithKeys != 2 {
		t.Errorf("stats: %+v", stats)
	}

	recent, err := keys.RecentKeys(ctx, 7)
	if err != nil || len(recent) != 3 {
		t.Errorf("recent keys: %d, %v", len(recent), err)
	}

	mine, err := keys.UserKeys(ctx, a.ID)
	if err != nil || len(mine) != 2 {
		t.Errorf("user keys: %d, %v", len(mine), err)
	}
}
