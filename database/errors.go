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
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Sentinel errors for the pool and repository layers. Absence of a row is
// never an error: single-entity lookups return a nil entity instead.
var (
	// ErrPoolExhausted is returned when an acquisition timed out waiting
	// for a free slot. It is surfaced to the caller, never retried.
	ErrPoolExhausted = errors.New("absorm: connection pool exhausted")

	// ErrPoolClosed is returned when acquiring from a shut-down pool.
	ErrPoolClosed = errors.New("absorm: connection pool is closed")

	// ErrBackendUnavailable is returned when connect or liveness-probe
	// retries are exhausted.
	ErrBackendUnavailable = errors.New("absorm: database backend unavailable")

	// ErrConstraintViolation marks unique/not-null/foreign-key/check
	// failures on writes. Match with errors.Is.
	ErrConstraintViolation = errors.New("absorm: constraint violation")

	// ErrMultipleResults marks a uniqueness-assuming lookup that matched
	// more than one row. It indicates a schema or usage bug.
	ErrMultipleResults = errors.New("absorm: multiple rows matched a unique lookup")

	// ErrUnitOfWorkFinished is returned when committing, rolling back, or
	// flushing a unit of work whose transaction already ended.
	ErrUnitOfWorkFinished = errors.New("absorm: unit of work already finished")
)

// ConstraintKind identifies which class of constraint a write violated.
type ConstraintKind int

const (
	ConstraintUnknown ConstraintKind = iota
	ConstraintUnique
	ConstraintNotNull
	ConstraintForeignKey
	ConstraintCheck
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintUnique:
		return "unique"
	case ConstraintNotNull:
		return "not_null"
	case ConstraintForeignKey:
		return "foreign_key"
	case ConstraintCheck:
		return "check"
	default:
		return "unknown"
	}
}

// ConstraintError wraps a driver error classified as a constraint violation.
type ConstraintError struct {
	Kind ConstraintKind
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("absorm: %s constraint violation: %v", e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Is reports ErrConstraintViolation so callers can match with errors.Is
// without knowing the concrete type.
func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

// MultipleResultsError reports which field a non-unique lookup used.
type MultipleResultsError struct {
	Field string
}

func (e *MultipleResultsError) Error() string {
	return fmt.Sprintf("absorm: multiple rows matched unique lookup on %q", e.Field)
}

func (e *MultipleResultsError) Is(target error) bool { return target == ErrMultipleResults }

// WrapWriteError classifies a driver error from an insert/update/delete.
// Constraint violations come back as *ConstraintError; anything else is
// returned unchanged.
func WrapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if kind, ok := classifyConstraint(err); ok {
		return &ConstraintError{Kind: kind, Err: err}
	}
	return err
}

func classifyConstraint(err error) (ConstraintKind, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062:
			return ConstraintUnique, true
		case 1048:
			return ConstraintNotNull, true
		case 1216, 1217, 1451, 1452:
			return ConstraintForeignKey, true
		case 3819:
			return ConstraintCheck, true
		default:
			return ConstraintUnknown, false
		}
	}

	// Postgres and SQLite report via SQLSTATE codes or message text.
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "sqlstate 23505"),
		strings.Contains(s, "duplicate key value"),
		strings.Contains(s, "unique constraint failed"),
		strings.Contains(s, "unique constraint"):
		return ConstraintUnique, true
	case strings.Contains(s, "sqlstate 23502"),
		strings.Contains(s, "not-null constraint"),
		strings.Contains(s, "not null constraint failed"):
		return ConstraintNotNull, true
	case strings.Contains(s, "sqlstate 23503"),
		strings.Contains(s, "foreign key violation"),
		strings.Contains(s, "foreign key constraint failed"):
		return ConstraintForeignKey, true
	case strings.Contains(s, "sqlstate 23514"),
		strings.Contains(s, "check constraint"):
		return ConstraintCheck, true
	}
	return ConstraintUnknown, false
}
