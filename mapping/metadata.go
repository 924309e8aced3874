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
	"fmt"
	"reflect"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tomoncle/sqlrepo/database"
	"github.com/vmihailenco/tagparser/v2"
)

// TagName is the struct tag read for column and table metadata. Fields
// without it fall back to a bun tag, so bun models work unchanged.
const (
	TagName         = "db"
	fallbackTagName = "bun"
)

// BaseModel may be embedded to override the table name:
//
//	type Customer struct {
//		mapping.BaseModel `db:"table:TblCustomers"`
//		CustomerId int64  `db:",pk"`
//	}
type BaseModel struct{}

var baseModelType = reflect.TypeOf(BaseModel{})

// tableNamer lets a record type name its table in code.
type tableNamer interface {
	TableName() string
}

// Field maps one struct field to one column.
type Field struct {
	Name   string
	Column string
	Index  []int
	Type   reflect.Type
	IsPK   bool
	// NullZero makes a zero value count as null when building writes.
	NullZero bool
}

// Value returns the field of v, which must be an addressable struct value
// of the owning type.
func (f *Field) Value(v reflect.Value) reflect.Value {
	return v.FieldByIndex(f.Index)
}

// Table is the read-only metadata of a record type.
type Table struct {
	Name   string
	Type   reflect.Type
	Fields []*Field
	PK     *Field

	columns    []string
	columnList string
	byColumn   map[string]*Field
	byFold     map[string]*Field
}

// Columns returns the mapped column names in declaration order. The slice
// must not be modified.
func (t *Table) Columns() []string { return t.columns }

// ColumnList returns the columns joined by ", ".
func (t *Table) ColumnList() string { return t.columnList }

// ColumnMap returns a copy of the field name to column name mapping.
func (t *Table) ColumnMap() map[string]string {
	m := make(map[string]string, len(t.Fields))
	for _, f := range t.Fields {
		m[f.Name] = f.Column
	}
	return m
}

// FieldByColumn finds a field by column name, exact match first and then
// case-insensitively.
func (t *Table) FieldByColumn(column string) (*Field, bool) {
	if f, ok := t.byColumn[column]; ok {
		return f, true
	}
	f, ok := t.byFold[strings.ToLower(column)]
	return f, ok
}

func (t *Table) String() string {
	return fmt.Sprintf("%s(%s)", t.Name, t.columnList)
}

// Extract computes the metadata of a struct or pointer-to-struct type.
// It does no caching; use Lookup or TableOf for that.
func Extract(typ reflect.Type) (*Table, error) {
	if typ == nil {
		return nil, database.ConfigurationError("extract metadata", fmt.Errorf("nil type"))
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, database.ConfigurationError("extract metadata",
			fmt.Errorf("%s is not a struct type", typ))
	}

	t := &Table{
		Name:     typ.Name(),
		Type:     typ,
		byColumn: make(map[string]*Field),
		byFold:   make(map[string]*Field),
	}
	if err := t.addFields(typ, nil); err != nil {
		return nil, err
	}

	if namer, ok := reflect.New(typ).Interface().(tableNamer); ok {
		if name := namer.TableName(); name != "" {
			t.Name = name
		}
	}
	if name, ok := baseModelTable(typ); ok {
		t.Name = name
	}
	if t.Name == "" {
		return nil, database.ConfigurationError("extract metadata",
			fmt.Errorf("anonymous type %s needs a table name", typ))
	}

	if t.PK == nil {
		return nil, database.ConfigurationError("extract metadata",
			fmt.Errorf("%s has no identifier field, mark one with `%s:\",pk\"`", typ, TagName))
	}

	t.columns = make([]string, len(t.Fields))
	for i, f := range t.Fields {
		t.columns[i] = f.Column
	}
	t.columnList = strings.Join(t.columns, ", ")
	return t, nil
}

func (t *Table) addFields(typ reflect.Type, index []int) error {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if sf.Type == baseModelType {
			continue
		}

		tag, hasTag := fieldTag(sf)
		if tag.Name == "-" {
			continue
		}
		fieldIndex := append(append([]int(nil), index...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && !hasTag {
			if err := t.addFields(sf.Type, fieldIndex); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		f := &Field{
			Name:     sf.Name,
			Column:   sf.Name,
			Index:    fieldIndex,
			Type:     sf.Type,
			IsPK:     tag.HasOption("pk"),
			NullZero: tag.HasOption("nullzero"),
		}
		if tag.Name != "" {
			f.Column = tag.Name
		}

		if _, dup := t.byColumn[f.Column]; dup {
			return database.ConfigurationError("extract metadata",
				fmt.Errorf("%s maps column %s more than once", t.Type, f.Column))
		}
		if f.IsPK {
			if t.PK != nil {
				return database.ConfigurationError("extract metadata",
					fmt.Errorf("%s declares more than one identifier field (%s, %s)", t.Type, t.PK.Name, f.Name))
			}
			t.PK = f
		}

		t.Fields = append(t.Fields, f)
		t.byColumn[f.Column] = f
		if _, seen := t.byFold[strings.ToLower(f.Column)]; !seen {
			t.byFold[strings.ToLower(f.Column)] = f
		}
	}
	return nil
}

func fieldTag(sf reflect.StructField) (*tagparser.Tag, bool) {
	if s, ok := sf.Tag.Lookup(TagName); ok {
		return tagparser.Parse(s), true
	}
	if s, ok := sf.Tag.Lookup(fallbackTagName); ok {
		return tagparser.Parse(s), true
	}
	return &tagparser.Tag{}, false
}

func baseModelTable(typ reflect.Type) (string, bool) {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if sf.Type != baseModelType {
			continue
		}
		tag, _ := fieldTag(sf)
		if name := tag.Options["table"]; name != "" {
			return name, true
		}
	}
	return "", false
}

type cacheEntry struct {
	table *Table
	err   error
}

var tables = xsync.NewMapOf[reflect.Type, cacheEntry]()

// Lookup returns the cached metadata of typ, computing it on first use.
// Concurrent first lookups of the same type compute it once. Failures are
// cached as well.
func Lookup(typ reflect.Type) (*Table, error) {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil {
		return Extract(nil)
	}
	entry, _ := tables.LoadOrCompute(typ, func() cacheEntry {
		t, err := Extract(typ)
		return cacheEntry{table: t, err: err}
	})
	return entry.table, entry.err
}

// TableOf returns the cached metadata of T.
func TableOf[T any]() (*Table, error) {
	return Lookup(reflect.TypeOf((*T)(nil)).Elem())
}
