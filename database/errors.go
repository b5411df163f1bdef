/*
 * Copyright 2025 tomoncle.
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
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoTableErr
	ExistTableErr
	ExistIndexErr
	ExistObjectErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	SyntaxErr
)

func (e SQLError) String() string {
	switch e {
	case NoTableErr:
		return "no_table"
	case ExistTableErr:
		return "table_exists"
	case ExistIndexErr:
		return "index_exists"
	case ExistObjectErr:
		return "object_exists"
	case DuplicateKeyErr:
		return "duplicate_key"
	case NotNullViolationErr:
		return "not_null_violation"
	case ForeignKeyViolationErr:
		return "foreign_key_violation"
	case SyntaxErr:
		return "syntax_error"
	default:
		return "unknown"
	}
}

// AlreadyExists reports whether the error comes from creating an object
// that is already there, the expected failure when a schema is re-applied.
func (e SQLError) AlreadyExists() bool {
	return e == ExistTableErr || e == ExistIndexErr || e == ExistObjectErr || e == DuplicateKeyErr
}

// ClassifyError maps a driver error onto SQLError.
func ClassifyError(err error) SQLError {
	if err == nil {
		return UnknownErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1050:
			return ExistTableErr
		case 1061:
			return ExistIndexErr
		case 1062:
			return DuplicateKeyErr
		case 1146:
			return NoTableErr
		case 1048:
			return NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return ForeignKeyViolationErr
		case 1064:
			return SyntaxErr
		default:
			return UnknownErr
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P07":
			if strings.Contains(strings.ToLower(pqErr.Message), "index") {
				return ExistIndexErr
			}
			return ExistTableErr
		case "42710", "42723", "42P06":
			return ExistObjectErr
		case "42P01":
			return NoTableErr
		case "23505":
			return DuplicateKeyErr
		case "23502":
			return NotNullViolationErr
		case "23503":
			return ForeignKeyViolationErr
		case "42601":
			return SyntaxErr
		}
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "already exists") && strings.Contains(s, "index"):
		return ExistIndexErr
	case strings.Contains(s, "already exists") &&
		(strings.Contains(s, "table") || strings.Contains(s, "relation")):
		return ExistTableErr
	case strings.Contains(s, "already exists"):
		return ExistObjectErr
	case strings.Contains(s, "no such table") ||
		strings.Contains(s, "undefined table") ||
		(strings.Contains(s, "relation") && strings.Contains(s, "does not exist")):
		return NoTableErr
	case strings.Contains(s, "duplicate key value") ||
		strings.Contains(s, "unique constraint failed"):
		return DuplicateKeyErr
	case strings.Contains(s, "not null constraint failed") ||
		strings.Contains(s, "not-null constraint"):
		return NotNullViolationErr
	case strings.Contains(s, "foreign key constraint failed") ||
		strings.Contains(s, "foreign key violation"):
		return ForeignKeyViolationErr
	case strings.Contains(s, "syntax error"):
		return SyntaxErr
	}
	return UnknownErr
}
