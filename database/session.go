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
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
)

// SessionFactory pairs pool slots with transactional scopes.
type SessionFactory struct {
	pool   *Pool
	logger Logger
}

// NewSessionFactory returns a factory that draws connections from pool.
func NewSessionFactory(pool *Pool, logger Logger) *SessionFactory {
	if logger == nil {
		logger = GetLogger()
	}
	return &SessionFactory{pool: pool, logger: logger}
}

// Begin acquires a slot and opens an explicit transaction on it. The caller
// owns the returned unit of work and must Close it; defer uow.Close() right
// after a successful Begin.
func (f *SessionFactory) Begin(ctx context.Context) (*UnitOfWork, error) {
	slot, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := slot.Conn().BeginTx(ctx, nil)
	if err != nil {
		slot.Invalidate()
		f.pool.Release(slot)
		return nil, fmt.Errorf("absorm: begin transaction: %w", err)
	}

	return &UnitOfWork{
		slot:   slot,
		tx:     tx,
		pool:   f.pool,
		logger: f.logger,
	}, nil
}

// RunInUnitOfWork runs fn inside a unit of work. The transaction is
// committed when fn returns nil and rolled back when it returns an error or
// panics; the slot is released on every exit path.
func (f *SessionFactory) RunInUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	uow, err := f.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Close()

	if err := fn(ctx, uow); err != nil {
		return err
	}
	if uow.Finished() {
		return nil
	}
	return uow.Commit()
}

// UnitOfWork binds exactly one connection slot to one transaction for its
// whole lifetime. Regardless of how the owning scope exits, Close releases
// the slot back to the pool exactly once, rolling back first if the
// transaction was neither committed nor rolled back.
type UnitOfWork struct {
	slot   *Slot
	tx     bun.Tx
	pool   *Pool
	logger Logger

	mu       sync.Mutex
	finished bool
	released bool
}

// DB returns the transaction as a bun.IDB for repositories. Every query
// issued through it runs inside this unit of work; nothing commits
// implicitly.
func (u *UnitOfWork) DB() bun.IDB { return u.tx }

// Tx returns the underlying transaction.
func (u *UnitOfWork) Tx() bun.Tx { return u.tx }

// Slot exposes the bound connection slot, mainly for diagnostics.
func (u *UnitOfWork) Slot() *Slot { return u.slot }

// Finished reports whether the transaction was committed or rolled back.
func (u *UnitOfWork) Finished() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.finished
}

// Commit ends the transaction, making its writes visible to other units of
// work.
func (u *UnitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return ErrUnitOfWorkFinished
	}
	u.finished = true
	if err := u.tx.Commit(); err != nil {
		u.slot.Invalidate()
		return fmt.Errorf("absorm: commit: %w", err)
	}
	return nil
}

// Rollback discards every write issued through this unit of work.
func (u *UnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rollbackLocked()
}

func (u *UnitOfWork) rollbackLocked() error {
	if u.finished {
		return ErrUnitOfWorkFinished
	}
	u.finished = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		u.slot.Invalidate()
		return fmt.Errorf("absorm: rollback: %w", err)
	}
	return nil
}

// Flush exists for parity with buffering ORMs. Statements issued through a
// unit of work are sent to the backend immediately, so generated
// identifiers are already visible to subsequent reads in the same scope;
// Flush only verifies the transaction is still open.
func (u *UnitOfWork) Flush(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return ErrUnitOfWorkFinished
	}
	return nil
}

// Close ends the scope: it rolls back if the transaction is still open and
// returns the slot to the pool. Safe to call multiple times; only the first
// call has an effect.
func (u *UnitOfWork) Close() {
	u.mu.Lock()
	if u.released {
		u.mu.Unlock()
		return
	}
	u.released = true
	if !u.finished {
		u.finished = true
		if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			u.slot.Invalidate()
			u.logger.Warn("rollback on scope exit failed", "error", err)
		} else {
			u.logger.Debug("rolled back unit of work on scope exit")
		}
	}
	u.mu.Unlock()
	u.pool.Release(u.slot)
}
