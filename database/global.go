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

package database

import (
	"context"
	"sync"
)

// The process-wide handle. Created at most once, guarded against duplicate
// concurrent initialization, torn down explicitly via Shutdown. Prefer
// passing a *DB to callers; the global exists for applications that want
// one shared handle.
var (
	globalMu sync.Mutex
	globalDB *DB
)

// Init opens the process-wide database with the given settings. When a
// handle already exists, it is returned unchanged; the settings argument is
// ignored in that case.
func Init(settings *Settings) (*DB, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalDB != nil {
		return globalDB, nil
	}
	db, err := Open(settings)
	if err != nil {
		return nil, err
	}
	globalDB = db
	return db, nil
}

// InitFromEnv opens the process-wide database from environment settings.
func InitFromEnv() (*DB, error) {
	return Init(SettingsFromEnv())
}

// Default returns the process-wide handle, lazily initializing it from the
// environment on first access.
func Default() (*DB, error) {
	globalMu.Lock()
	db := globalDB
	globalMu.Unlock()
	if db != nil {
		return db, nil
	}
	return InitFromEnv()
}

// Shutdown closes the process-wide handle. Idempotent: calling it without a
// live handle is a no-op.
func Shutdown(ctx context.Context) error {
	globalMu.Lock()
	db := globalDB
	globalDB = nil
	globalMu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close(ctx)
}
