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

package mapping

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/tomoncle/sqlrepo/database"
)

// RowScanner is implemented by *sql.Rows and *sql.Row.
type RowScanner interface {
	Scan(dest ...any) error
}

// RowMapper materializes rows of one result set into new T values. The
// column plan is computed once by NewRowMapper.
type RowMapper[T any] struct {
	table   *Table
	columns []string
	plan    []*Field
}

// NewRowMapper plans how the result columns map onto the fields of T.
// Columns without a matching field are read and dropped.
func NewRowMapper[T any](t *Table, columns []string) (*RowMapper[T], error) {
	if typ := reflect.TypeOf((*T)(nil)).Elem(); typ != t.Type {
		return nil, database.ConfigurationError("new row mapper",
			fmt.Errorf("table %s describes %s, not %s", t.Name, t.Type, typ))
	}
	plan := make([]*Field, len(columns))
	for i, column := range columns {
		if f, ok := t.FieldByColumn(column); ok {
			plan[i] = f
		}
	}
	return &RowMapper[T]{table: t, columns: columns, plan: plan}, nil
}

// Map scans the current row into a newly allocated T. NULL columns leave
// the zero value, which is nil for pointer, slice, map and interface
// fields.
func (m *RowMapper[T]) Map(row RowScanner) (*T, error) {
	entity := new(T)
	v := reflect.ValueOf(entity).Elem()

	dest := make([]any, len(m.plan))
	for i, f := range m.plan {
		if f == nil {
			dest[i] = new(any)
			continue
		}
		dest[i] = &fieldScanner{field: f, value: f.Value(v)}
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return entity, nil
}

// MapAll maps every remaining row and checks rows.Err.
func (m *RowMapper[T]) MapAll(rows *sql.Rows) ([]*T, error) {
	result := make([]*T, 0)
	for rows.Next() {
		entity, err := m.Map(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type fieldScanner struct {
	field *Field
	value reflect.Value
}

func (s *fieldScanner) Scan(src any) error {
	if err := assign(s.value, src); err != nil {
		return fmt.Errorf("column %s into field %s: %w", s.field.Column, s.field.Name, err)
	}
	return nil
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func assign(dst reflect.Value, src any) error {
	if dst.Kind() == reflect.Pointer {
		if src == nil {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if reflect.PointerTo(dst.Type()).Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}

	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	if b, ok := src.([]byte); ok {
		// drivers may reuse the buffer after Scan returns
		src = append([]byte(nil), b...)
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	if dst.Type() == timeType {
		return assignTime(dst, src)
	}

	switch dst.Kind() {
	case reflect.String:
		switch s := src.(type) {
		case []byte:
			dst.SetString(string(s))
			return nil
		case string:
			dst.SetString(s)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt64(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := asInt64(src)
		if err != nil {
			return err
		}
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(src)
		if err != nil {
			return err
		}
		if dst.OverflowFloat(f) {
			return fmt.Errorf("value %v overflows %s", f, dst.Type())
		}
		dst.SetFloat(f)
		return nil
	case reflect.Bool:
		switch s := src.(type) {
		case int64:
			dst.SetBool(s != 0)
			return nil
		case []byte, string:
			b, err := strconv.ParseBool(textOf(s))
			if err != nil {
				return err
			}
			dst.SetBool(b)
			return nil
		}
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			if s, ok := src.(string); ok {
				dst.SetBytes([]byte(s))
				return nil
			}
		}
	}

	if sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() == dst.Kind() {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
}

func assignTime(dst reflect.Value, src any) error {
	switch s := src.(type) {
	case []byte, string:
		text := strings.TrimSpace(textOf(s))
		for _, layout := range timeLayouts {
			if tm, err := time.Parse(layout, text); err == nil {
				dst.Set(reflect.ValueOf(tm))
				return nil
			}
		}
		return fmt.Errorf("cannot parse %q as time", text)
	case int64:
		dst.Set(reflect.ValueOf(time.Unix(s, 0).UTC()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to time.Time", src)
}

func asInt64(src any) (int64, error) {
	switch s := src.(type) {
	case int64:
		return s, nil
	case int32:
		return int64(s), nil
	case int:
		return int64(s), nil
	case bool:
		if s {
			return 1, nil
		}
		return 0, nil
	case float64:
		if s != float64(int64(s)) {
			return 0, fmt.Errorf("value %v is not an integer", s)
		}
		return int64(s), nil
	case []byte, string:
		return strconv.ParseInt(strings.TrimSpace(textOf(s)), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to an integer", src)
}

func asFloat64(src any) (float64, error) {
	switch s := src.(type) {
	case float64:
		return s, nil
	case float32:
		return float64(s), nil
	case int64:
		return float64(s), nil
	case []byte, string:
		return strconv.ParseFloat(strings.TrimSpace(textOf(s)), 64)
	}
	return 0, fmt.Errorf("cannot convert %T to a float", src)
}

func textOf(src any) string {
	if b, ok := src.([]byte); ok {
		return string(b)
	}
	return src.(string)
}
