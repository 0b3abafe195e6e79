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

package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/absnotary/absorm/database"
)

func TestGlobalHandleLifecycle(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = database.Shutdown(ctx) })

	settings := database.DefaultSettings()
	settings.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "global_test.db")
	settings.SlowQueryTime = 0

	db, err := database.Init(settings)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	// A second Init returns the same handle and ignores new settings.
	other := database.DefaultSettings()
	other.DatabaseURL = "sqlite://:memory:"
	same, err := database.Init(other)
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if same != db {
		t.Error("second init should return the existing handle")
	}

	viaDefault, err := database.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if viaDefault != db {
		t.Error("default should return the initialized handle")
	}

	if err := database.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := database.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown should be a no-op: %v", err)
	}
}
