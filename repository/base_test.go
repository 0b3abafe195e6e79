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
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/absnotary/absorm/database"
	"github.com/absnotary/absorm/model"
	"github.com/absnotary/absorm/repository"
	"github.com/absnotary/absorm/types"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	s := database.DefaultSettings()
	s.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "absorm_repo_test.db")
	s.PoolSize = 5
	s.MaxOverflow = 0
	s.AcquireTimeout = 2 * time.Second
	s.SlowQueryTime = 0
	db, err := database.Open(s)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(context.Background()) })
	if err := db.CreateSchema(context.Background()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func beginUOW(t *testing.T, db *database.DB) *database.UnitOfWork {
	t.Helper()
	uow, err := db.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin unit of work: %v", err)
	}
	t.Cleanup(uow.Close)
	return uow
}

func seedUser(ctx context.Context, t *testing.T, repo repository.Repository[model.User], email string, role model.UserRole) *model.User {
	t.Helper()
	user, err := repo.Create(ctx, &model.User{
		Email:          email,
		HashedPassword: "hash",
		Role:           role,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

func TestCreateAssignsID(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	user := seedUser(ctx, t, repo, "a@example.com", "")
	if user.ID == 0 {
		t.Error("create should populate the generated id")
	}

	got, err := repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Email != "a@example.com" {
		t.Errorf("get returned %+v", got)
	}
	if got.Role != model.UserRoleUser {
		t.Errorf("role default: got %q, want %q", got.Role, model.UserRoleUser)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)

	got, err := repo.Get(context.Background(), 9999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing row, got %+v", got)
	}
}

func TestDuplicateEmailIsConstraintViolation(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	seedUser(ctx, t, repo, "dup@example.com", "")
	_, err := repo.Create(ctx, &model.User{Email: "dup@example.com", HashedPassword: "x"})
	if !errors.Is(err, database.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	var cerr *database.ConstraintError
	if !errors.As(err, &cerr) || cerr.Kind != database.ConstraintUnique {
		t.Errorf("expected unique constraint kind, got %v", err)
	}
}

func TestGetAllWindow(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedUser(ctx, t, repo, fmt.Sprintf("u%d@example.com", i), "")
	}

	all, err := repo.GetAll(ctx, 0, 0)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("get all: got %d rows, want 5", len(all))
	}

	window, err := repo.GetAll(ctx, 2, 1)
	if err != nil {
		t.Fatalf("get all window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window: got %d rows, want 2", len(window))
	}
	if window[0].ID != all[1].ID || window[1].ID != all[2].ID {
		t.Errorf("window rows out of order: %d, %d", window[0].ID, window[1].ID)
	}

	// Offset without limit must still work.
	tail, err := repo.GetAll(ctx, 0, 4)
	if err != nil {
		t.Fatalf("offset-only window: %v", err)
	}
	if len(tail) != 1 {
		t.Errorf("offset-only window: got %d rows, want 1", len(tail))
	}
}

func TestGetByDetectsMultipleResults(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	seedUser(ctx, t, repo, "one@example.com", model.UserRoleAdmin)
	seedUser(ctx, t, repo, "two@example.com", model.UserRoleAdmin)

	got, err := repo.GetBy(ctx, "email", "one@example.com")
	if err != nil || got == nil {
		t.Fatalf("unique lookup failed: %v, %+v", err, got)
	}

	if _, err := repo.GetBy(ctx, "role", model.UserRoleAdmin); !errors.Is(err, database.ErrMultipleResults) {
		t.Fatalf("expected ErrMultipleResults, got %v", err)
	}

	got, err = repo.GetBy(ctx, "email", "absent@example.com")
	if err != nil {
		t.Fatalf("absent lookup: %v", err)
	}
	if got != nil {
		t.Errorf("absent lookup should return nil, got %+v", got)
	}
}

func TestFirstAndFilterBy(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	a := seedUser(ctx, t, repo, "fa@example.com", model.UserRoleAdmin)
	seedUser(ctx, t, repo, "fb@example.com", model.UserRoleAdmin)
	seedUser(ctx, t, repo, "fc@example.com", "")

	first, err := repo.First(ctx, repository.Fields{"role": model.UserRoleAdmin})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first == nil || first.ID != a.ID {
		t.Errorf("first should return the lowest id, got %+v", first)
	}

	admins, err := repo.FilterBy(ctx, repository.Fields{"role": model.UserRoleAdmin})
	if err != nil {
		t.Fatalf("filter by: %v", err)
	}
	if len(admins) != 2 {
		t.Errorf("filter by: got %d rows, want 2", len(admins))
	}

	none, err := repo.First(ctx, repository.Fields{"email": "nobody@example.com"})
	if err != nil {
		t.Fatalf("first absent: %v", err)
	}
	if none != nil {
		t.Errorf("first absent should be nil, got %+v", none)
	}
}

func TestUpdatePartialPreservesOtherColumns(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	user := seedUser(ctx, t, repo, "partial@example.com", "")

	updated, err := repo.Update(ctx, user.ID, repository.Fields{"role": model.UserRoleAdmin})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil || updated.Role != model.UserRoleAdmin {
		t.Errorf("role not updated: %+v", updated)
	}
	if updated.Email != "partial@example.com" || updated.HashedPassword != "hash" {
		t.Errorf("untouched columns changed: %+v", updated)
	}
}

func TestUpdateEdgeCases(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	user := seedUser(ctx, t, repo, "edge@example.com", "")

	// Unknown id returns nil without error.
	missing, err := repo.Update(ctx, 9999, repository.Fields{"role": model.UserRoleAdmin})
	if err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if missing != nil {
		t.Errorf("update missing should be nil, got %+v", missing)
	}

	// Empty fields return the current row unchanged.
	same, err := repo.Update(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if same == nil || same.Role != model.UserRoleUser {
		t.Errorf("empty update mutated row: %+v", same)
	}
}

func TestBulkUpdateSkipsUnknownIDs(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	a := seedUser(ctx, t, repo, "bu1@example.com", "")
	b := seedUser(ctx, t, repo, "bu2@example.com", "")

	updated, err := repo.BulkUpdate(ctx, []repository.BulkUpdateItem{
		{ID: a.ID, Fields: repository.Fields{"role": model.UserRoleAdmin}},
		{ID: 9999, Fields: repository.Fields{"role": model.UserRoleAdmin}},
		{ID: b.ID, Fields: repository.Fields{"role": model.UserRoleAdmin}},
	})
	if err != nil {
		t.Fatalf("bulk update: %v", err)
	}
	if updated != 2 {
		t.Errorf("bulk update count: got %d, want 2", updated)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	user := seedUser(ctx, t, repo, "del@example.com", "")

	deleted, err := repo.Delete(ctx, user.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("delete should report true for an existing row")
	}

	deleted, err = repo.Delete(ctx, user.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Error("second delete should report false")
	}
}

func TestExistsAndCount(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	user := seedUser(ctx, t, repo, "ec@example.com", model.UserRoleAdmin)
	seedUser(ctx, t, repo, "ec2@example.com", "")

	exists, err := repo.Exists(ctx, user.ID)
	if err != nil || !exists {
		t.Errorf("exists: %v, %v", exists, err)
	}
	exists, err = repo.Exists(ctx, 9999)
	if err != nil || exists {
		t.Errorf("exists missing: %v, %v", exists, err)
	}

	exists, err = repo.ExistsBy(ctx, repository.Fields{"email": "ec@example.com"})
	if err != nil || !exists {
		t.Errorf("exists by: %v, %v", exists, err)
	}

	total, err := repo.Count(ctx, nil)
	if err != nil || total != 2 {
		t.Errorf("count all: %d, %v", total, err)
	}
	admins, err := repo.Count(ctx, repository.Fields{"role": model.UserRoleAdmin})
	if err != nil || admins != 1 {
		t.Errorf("count admins: %d, %v", admins, err)
	}
}

func TestPaginate(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 7; i++ {
		u := seedUser(ctx, t, repo, fmt.Sprintf("p%d@example.com", i), "")
		ids = append(ids, u.ID)
	}

	page, err := repo.Paginate(ctx, 2, 3, nil)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if page.Total != 7 {
		t.Errorf("total: got %d, want 7", page.Total)
	}
	if len(page.Items) != 3 {
		t.Fatalf("page 2 size: got %d, want 3", len(page.Items))
	}
	for i, item := range page.Items {
		if item.ID != ids[3+i] {
			t.Errorf("page 2 item %d: got id %d, want %d", i, item.ID, ids[3+i])
		}
	}
	if page.TotalPages() != 3 {
		t.Errorf("total pages: got %d, want 3", page.TotalPages())
	}

	last, err := repo.Paginate(ctx, 3, 3, nil)
	if err != nil {
		t.Fatalf("paginate last: %v", err)
	}
	if len(last.Items) != 1 || last.Items[0].ID != ids[6] {
		t.Errorf("last page: %+v", last.Items)
	}

	beyond, err := repo.Paginate(ctx, 4, 3, nil)
	if err != nil {
		t.Fatalf("paginate beyond: %v", err)
	}
	if len(beyond.Items) != 0 {
		t.Errorf("page beyond range should be empty, got %d items", len(beyond.Items))
	}
}

func TestPageWithFilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		role := model.UserRoleUser
		if i%2 == 0 {
			role = model.UserRoleAdmin
		}
		seedUser(ctx, t, repo, fmt.Sprintf("pf%d@example.com", i), role)
	}

	req := types.NewPageRequest(1, 10,
		types.NewQueryFilter("role = ?", model.UserRoleAdmin),
		[]string{"id DESC"})
	page, err := repo.Page(ctx, req)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("filtered page: total %d, items %d", page.Total, len(page.Items))
	}
	if page.Items[0].ID < page.Items[1].ID {
		t.Error("descending order not applied")
	}
}

func TestListAndQuery(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	seedUser(ctx, t, repo, "lq1@example.com", model.UserRoleAdmin)
	seedUser(ctx, t, repo, "lq2@example.com", "")

	listed, err := repo.List(ctx, types.NewQueryFilter("role = ?", model.UserRoleAdmin))
	if err != nil || len(listed) != 1 {
		t.Errorf("list: %d rows, %v", len(listed), err)
	}

	all, err := repo.List(ctx, nil)
	if err != nil || len(all) != 2 {
		t.Errorf("list without filter: %d rows, %v", len(all), err)
	}

	queried, err := repo.Query(ctx, "email LIKE ?", "lq%")
	if err != nil || len(queried) != 2 {
		t.Errorf("query: %d rows, %v", len(queried), err)
	}
}

func TestBulkCreate(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	users := []*model.User{
		{Email: "bc1@example.com", HashedPassword: "x"},
		{Email: "bc2@example.com", HashedPassword: "x"},
		{Email: "bc3@example.com", HashedPassword: "x"},
	}
	created, err := repo.BulkCreate(ctx, users)
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	for i, u := range created {
		if u.ID == 0 {
			t.Errorf("user %d missing generated id", i)
		}
	}

	count, err := repo.Count(ctx, nil)
	if err != nil || count != 3 {
		t.Errorf("count after bulk create: %d, %v", count, err)
	}
}

func TestBulkCreateRollsBackWholeBatchOnConstraintViolation(t *testing.T) {
	db := newTestDB(t)
	uow := beginUOW(t, db)
	repo := repository.NewRepository[model.User](uow)
	ctx := context.Background()

	seedUser(ctx, t, repo, "taken@example.com", "")

	batch := []*model.User{
		{Email: "fresh1@example.com", HashedPassword: "x"},
		{Email: "taken@example.com", HashedPassword: "x"},
		{Email: "fresh2@example.com", HashedPassword: "x"},
	}
	_, err := repo.BulkCreate(ctx, batch)
	if !errors.Is(err, database.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	// The duplicate poisons the whole batch: neither fresh row survives.
	for _, email := range []string{"fresh1@example.com", "fresh2@example.com"} {
		exists, err := repo.ExistsBy(ctx, repository.Fields{"email": email})
		if err != nil {
			t.Fatalf("exists %s: %v", email, err)
		}
		if exists {
			t.Errorf("row %s from failed batch should not exist", email)
		}
	}
	count, err := repo.Count(ctx, nil)
	if err != nil || count != 1 {
		t.Errorf("count after failed batch: %d, %v", count, err)
	}
}
