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
	"fmt"
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

// registeredModel pairs a Bun model instance with a creation priority.
// Lower priorities are created first so referenced tables exist before the
// tables holding the foreign keys.
type registeredModel struct {
	instance interface{}
	priority int
}

var (
	registryMu sync.RWMutex
	registry   []registeredModel
)

// RegisterModel adds a model to the schema registry. Typically called from
// a model package's init function.
func RegisterModel(instance interface{}, priority int) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, registeredModel{instance: instance, priority: priority})
}

// RegisteredModels returns registered model instances ordered by ascending
// priority.
func RegisteredModels() []interface{} {
	registryMu.RLock()
	models := make([]registeredModel, len(registry))
	copy(models, registry)
	registryMu.RUnlock()

	sort.SliceStable(models, func(i, j int) bool {
		return models[i].priority < models[j].priority
	})
	instances := make([]interface{}, len(models))
	for i, m := range models {
		instances[i] = m.instance
	}
	return instances
}

// createSchema creates a table per registered model, with foreign keys,
// skipping tables that already exist.
func createSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range RegisteredModels() {
		_, err := db.NewCreateTable().
			Model(m).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("absorm: create table for %T: %w", m, err)
		}
	}
	return nil
}

// dropSchema drops the registered tables in reverse priority order so
// dependent tables go first.
func dropSchema(ctx context.Context, db *bun.DB) error {
	models := RegisteredModels()
	for i := len(models) - 1; i >= 0; i-- {
		_, err := db.NewDropTable().
			Model(models[i]).
			IfExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("absorm: drop table for %T: %w", models[i], err)
		}
	}
	return nil
}
