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
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrConfiguration marks a missing connection string, an unsupported
	// driver type or a record type that cannot be mapped.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnection marks a failure to open a connection to the store.
	ErrConnection = errors.New("connection error")

	// ErrExecution marks a statement the store rejected or a row that
	// could not be mapped back into a record.
	ErrExecution = errors.New("execution error")

	// ErrEmptyStatement is returned for an INSERT or UPDATE that has no
	// non-null column to write.
	ErrEmptyStatement = errors.New("statement has no columns to write")
)

// Error carries one of the kind sentinels together with the failing
// operation and, for execution errors, the SQL text.
type Error struct {
	Kind    error
	Op      string
	SQL     string
	SQLKind SQLError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.SQL != "" {
		fmt.Fprintf(&b, " [sql: %s]", e.SQL)
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// ConfigurationError wraps err (which may be nil) as a configuration error.
func ConfigurationError(op string, err error) error {
	return &Error{Kind: ErrConfiguration, Op: op, Err: err}
}

// ConnectionError wraps a dial failure.
func ConnectionError(op string, err error) error {
	return &Error{Kind: ErrConnection, Op: op, Err: err}
}

// ExecutionError wraps a store error raised while running query and records
// its classified SQLError kind.
func ExecutionError(op, query string, err error) error {
	var already *Error
	if errors.As(err, &already) && already.Kind == ErrExecution {
		return err
	}
	_, kind := ClassifySQLError(err)
	return &Error{Kind: ErrExecution, Op: op, SQL: query, SQLKind: kind, Err: err}
}

func IsConfigurationError(err error) bool { return errors.Is(err, ErrConfiguration) }

func IsConnectionError(err error) bool { return errors.Is(err, ErrConnection) }

func IsExecutionError(err error) bool { return errors.Is(err, ErrExecution) }

// SQLErrorKind extracts the classified store error kind from err.
func SQLErrorKind(err error) SQLError {
	var e *Error
	if errors.As(err, &e) {
		return e.SQLKind
	}
	_, kind := ClassifySQLError(err)
	return kind
}

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoColumnErr
	NoTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
	SyntaxErr
)

func (s SQLError) String() string {
	switch s {
	case NoRowsErr:
		return "no_rows"
	case NoColumnErr:
		return "no_column"
	case NoTableErr:
		return "no_table"
	case DuplicateKeyErr:
		return "duplicate_key"
	case NotNullViolationErr:
		return "not_null_violation"
	case ForeignKeyViolationErr:
		return "foreign_key_violation"
	case CheckConstraintViolationErr:
		return "check_violation"
	case DataTruncatedErr:
		return "data_truncated"
	case InvalidTypeCastErr:
		return "invalid_type_cast"
	case SyntaxErr:
		return "syntax"
	default:
		return "unknown"
	}
}

// ClassifySQLError maps a driver error onto an SQLError kind. The first
// return value reports whether err was recognised as a store error at all.
func ClassifySQLError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1054:
			return true, NoColumnErr
		case 1146:
			return true, NoTableErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return true, ForeignKeyViolationErr
		case 3819:
			return true, CheckConstraintViolationErr
		case 1265, 1406:
			return true, DataTruncatedErr
		case 1064:
			return true, SyntaxErr
		default:
			return true, UnknownErr
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true, classifySQLState(string(pqErr.Code))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true, classifySQLState(pgErr.Code)
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "no rows in result set"):
		return true, NoRowsErr
	case strings.Contains(s, "undefined column") ||
		strings.Contains(s, "no such column") ||
		strings.Contains(s, "has no column named"):
		return true, NoColumnErr
	case strings.Contains(s, "undefined table") ||
		strings.Contains(s, "no such table"):
		return true, NoTableErr
	case strings.Contains(s, "duplicate key value") ||
		strings.Contains(s, "unique constraint failed"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not-null constraint") ||
		strings.Contains(s, "not null constraint failed"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key constraint failed"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "datatype mismatch"):
		return true, InvalidTypeCastErr
	case strings.Contains(s, "syntax error"):
		return true, SyntaxErr
	}
	return false, UnknownErr
}

func classifySQLState(code string) SQLError {
	switch code {
	case "42703":
		return NoColumnErr
	case "42P01":
		return NoTableErr
	case "23505":
		return DuplicateKeyErr
	case "23502":
		return NotNullViolationErr
	case "23503":
		return ForeignKeyViolationErr
	case "23514":
		return CheckConstraintViolationErr
	case "22001":
		return DataTruncatedErr
	case "42804", "22P02":
		return InvalidTypeCastErr
	case "42601":
		return SyntaxErr
	default:
		return UnknownErr
	}
}
