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
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/sqlrepo/database"
)

// Placeholder is the bind marker emitted for every value. Bun's formatter
// replaces it with the dialect-escaped argument.
const Placeholder = "?"

// Op is the kind of statement to build.
type Op int

const (
	OpSelectByID Op = iota
	OpSelectAll
	OpInsert
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSelectByID:
		return "select by id"
	case OpSelectAll:
		return "select all"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Statement is SQL text with its positional arguments.
type Statement struct {
	Query string
	Args  []any
}

func (s Statement) String() string {
	return fmt.Sprintf("%s %v", s.Query, s.Args)
}

// Build produces the statement for op. id is used by select-by-id, update
// and delete; entity by insert and update.
func Build(op Op, t *Table, id any, entity any) (Statement, error) {
	switch op {
	case OpSelectByID:
		return SelectByID(t, id), nil
	case OpSelectAll:
		return SelectAll(t), nil
	case OpInsert:
		return Insert(t, entity)
	case OpUpdate:
		return Update(t, id, entity)
	case OpDelete:
		return Delete(t, id), nil
	default:
		return Statement{}, database.ConfigurationError("build statement", fmt.Errorf("unknown operation %d", int(op)))
	}
}

// SelectByID selects every mapped column of the row whose identifier is id.
func SelectByID(t *Table, id any) Statement {
	return Statement{
		Query: "SELECT " + t.columnList + " FROM " + t.Name + " WHERE " + t.PK.Column + " = " + Placeholder,
		Args:  []any{id},
	}
}

// SelectAll selects every mapped column of every row.
func SelectAll(t *Table) Statement {
	return Statement{Query: "SELECT " + t.columnList + " FROM " + t.Name}
}

// SelectPage selects limit rows starting at offset, ordered by identifier.
func SelectPage(t *Table, limit, offset int) Statement {
	return Statement{
		Query: "SELECT " + t.columnList + " FROM " + t.Name + " ORDER BY " + t.PK.Column +
			" LIMIT " + Placeholder + " OFFSET " + Placeholder,
		Args: []any{limit, offset},
	}
}

// Count counts every row of the table.
func Count(t *Table) Statement {
	return Statement{Query: "SELECT COUNT(*) FROM " + t.Name}
}

// Insert writes the non-null, non-identifier fields of entity.
func Insert(t *Table, entity any) (Statement, error) {
	columns, args, err := writableValues(t, entity)
	if err != nil {
		return Statement{}, err
	}
	if len(columns) == 0 {
		return Statement{}, database.ExecutionError("build insert", "", database.ErrEmptyStatement)
	}

	marks := strings.TrimSuffix(strings.Repeat(Placeholder+", ", len(columns)), ", ")
	return Statement{
		Query: "INSERT INTO " + t.Name + " (" + strings.Join(columns, ", ") + ") VALUES (" + marks + ")",
		Args:  args,
	}, nil
}

// Update sets the non-null, non-identifier fields of entity on the row whose
// identifier is id. Fields left null keep their stored value.
func Update(t *Table, id any, entity any) (Statement, error) {
	columns, args, err := writableValues(t, entity)
	if err != nil {
		return Statement{}, err
	}
	if len(columns) == 0 {
		return Statement{}, database.ExecutionError("build update", "", database.ErrEmptyStatement)
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(t.Name)
	b.WriteString(" SET ")
	for i, column := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(column)
		b.WriteString(" = ")
		b.WriteString(Placeholder)
	}
	b.WriteString(" WHERE ")
	b.WriteString(t.PK.Column)
	b.WriteString(" = ")
	b.WriteString(Placeholder)

	return Statement{Query: b.String(), Args: append(args, id)}, nil
}

// Delete removes the row whose identifier is id.
func Delete(t *Table, id any) Statement {
	return Statement{
		Query: "DELETE FROM " + t.Name + " WHERE " + t.PK.Column + " = " + Placeholder,
		Args:  []any{id},
	}
}

func writableValues(t *Table, entity any) ([]string, []any, error) {
	v, err := structValue(t, entity)
	if err != nil {
		return nil, nil, err
	}

	columns := make([]string, 0, len(t.Fields))
	args := make([]any, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.IsPK {
			continue
		}
		arg, ok, err := fieldArg(f, f.Value(v))
		if err != nil {
			return nil, nil, database.ExecutionError("read field "+f.Name, "", err)
		}
		if !ok {
			continue
		}
		columns = append(columns, f.Column)
		args = append(args, arg)
	}
	return columns, args, nil
}

// structValue unwraps entity to the struct value described by t.
func structValue(t *Table, entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, database.ExecutionError("read entity", "", fmt.Errorf("nil %s entity", t.Type))
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Type() != t.Type {
		return reflect.Value{}, database.ConfigurationError("read entity",
			fmt.Errorf("expected %s, got %T", t.Type, entity))
	}
	return v, nil
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

// fieldArg returns the bind value of a field and whether it is non-null.
// Pointers are dereferenced and driver.Valuer results are used as is.
func fieldArg(f *Field, v reflect.Value) (any, bool, error) {
	if f.NullZero && v.IsZero() {
		return nil, false, nil
	}
	for {
		if v.Type().Implements(valuerType) {
			if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
				return nil, false, nil
			}
			val, err := v.Interface().(driver.Valuer).Value()
			if err != nil {
				return nil, false, err
			}
			return val, val != nil, nil
		}
		if v.CanAddr() && reflect.PointerTo(v.Type()).Implements(valuerType) {
			v = v.Addr()
			continue
		}

		switch v.Kind() {
		case reflect.Pointer, reflect.Interface:
			if v.IsNil() {
				return nil, false, nil
			}
			v = v.Elem()
			continue
		case reflect.Map, reflect.Slice:
			if v.IsNil() {
				return nil, false, nil
			}
		}
		return v.Interface(), true, nil
	}
}
