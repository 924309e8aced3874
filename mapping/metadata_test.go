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

package mapping_test

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/mapping"
)

type customer struct {
	mapping.BaseModel `db:"table:TblCustomers"`

	ID            int64      `db:"CustomerId,pk"`
	Name          *string    `db:"CustomerName"`
	PostalAddress *string
	Email         *string
	BirthDate     *time.Time
}

type namedByMethod struct {
	Code string `db:",pk"`
	Name string
}

func (namedByMethod) TableName() string { return "Countries" }

type plain struct {
	ID     int `db:"id,pk"`
	Label  string
	Ignore string `db:"-"`
	hidden string
}

type audit struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

type withEmbedded struct {
	ID int64 `db:",pk"`
	audit
	Title string
}

type bunModel struct {
	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name"`
}

type noKey struct {
	Name string
}

type twoKeys struct {
	A int `db:",pk"`
	B int `db:",pk"`
}

type duplicateColumn struct {
	ID   int    `db:",pk"`
	A    string `db:"Name"`
	Name string
}

func TestExtract(t *testing.T) {
	t.Run("table and columns from tags", func(t *testing.T) {
		table, err := mapping.Extract(reflect.TypeOf(customer{}))
		require.NoError(t, err)

		assert.Equal(t, "TblCustomers", table.Name)
		assert.Equal(t, []string{"CustomerId", "CustomerName", "PostalAddress", "Email", "BirthDate"}, table.Columns())
		assert.Equal(t, "CustomerId, CustomerName, PostalAddress, Email, BirthDate", table.ColumnList())
		require.NotNil(t, table.PK)
		assert.Equal(t, "ID", table.PK.Name)
		assert.Equal(t, "CustomerId", table.PK.Column)
		assert.Equal(t, map[string]string{
			"ID":            "CustomerId",
			"Name":          "CustomerName",
			"PostalAddress": "PostalAddress",
			"Email":         "Email",
			"BirthDate":     "BirthDate",
		}, table.ColumnMap())
	})

	t.Run("pointer type", func(t *testing.T) {
		table, err := mapping.Extract(reflect.TypeOf(&customer{}))
		require.NoError(t, err)
		assert.Equal(t, "TblCustomers", table.Name)
		assert.Equal(t, reflect.TypeOf(customer{}), table.Type)
	})

	t.Run("table name method", func(t *testing.T) {
		table, err := mapping.Extract(reflect.TypeOf(namedByMethod{}))
		require.NoError(t, err)
		assert.Equal(t, "Countries", table.Name)
		assert.Equal(t, "Code", table.PK.Column)
	})

	t.Run("type name and skipped fields", func(t *testing.T) {
		table, err := mapping.Extract(reflect.TypeOf(plain{}))
		require.NoError(t, err)
		assert.Equal(t, "plain", table.Name)
		assert.Equal(t, []string{"id", "Label"}, table.Columns())
	})

	t.Run("embedded struct is flattened", func(t *testing.T) {
		table, err := mapping.Extract(reflect.TypeOf(withEmbedded{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"ID", "CreatedAt", "UpdatedAt", "Title"}, table.Columns())

		f, ok := table.FieldByColumn("UpdatedAt")
		require.True(t, ok)
		assert.Equal(t, []int{1, 1}, f.Index)
	})

	t.Run("bun tags", func(t *testing.T) {
		table, err := mapping.Extract(reflect.TypeOf(bunModel{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, table.Columns())
		assert.Equal(t, "id", table.PK.Column)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := mapping.Extract(reflect.TypeOf(customer{}))
		require.NoError(t, err)
		b, err := mapping.Extract(reflect.TypeOf(customer{}))
		require.NoError(t, err)
		assert.Equal(t, a.Name, b.Name)
		assert.Equal(t, a.Columns(), b.Columns())
		assert.Equal(t, a.PK.Column, b.PK.Column)
	})
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
	}{
		{"missing identifier", reflect.TypeOf(noKey{})},
		{"two identifiers", reflect.TypeOf(twoKeys{})},
		{"duplicate column", reflect.TypeOf(duplicateColumn{})},
		{"not a struct", reflect.TypeOf(42)},
		{"nil type", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := mapping.Extract(tt.typ)
			assert.Nil(t, table)
			assert.Error(t, err)
			assert.True(t, database.IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestFieldByColumn(t *testing.T) {
	table, err := mapping.TableOf[customer]()
	require.NoError(t, err)

	f, ok := table.FieldByColumn("CustomerName")
	require.True(t, ok)
	assert.Equal(t, "Name", f.Name)

	f, ok = table.FieldByColumn("customername")
	require.True(t, ok)
	assert.Equal(t, "Name", f.Name)

	_, ok = table.FieldByColumn("Missing")
	assert.False(t, ok)
}

func TestTableOf_Cached(t *testing.T) {
	first, err := mapping.TableOf[customer]()
	require.NoError(t, err)

	second, err := mapping.Lookup(reflect.TypeOf(&customer{}))
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = mapping.TableOf[noKey]()
	assert.True(t, database.IsConfigurationError(err))
	_, err = mapping.TableOf[noKey]()
	assert.True(t, database.IsConfigurationError(err))
}

func TestTableOf_Concurrent(t *testing.T) {
	type concurrent struct {
		ID   int64 `db:",pk"`
		Name string
	}

	const workers = 16
	results := make([]*mapping.Table, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table, err := mapping.TableOf[concurrent]()
			assert.NoError(t, err)
			results[i] = table
		}(i)
	}
	wg.Wait()

	for _, table := range results {
		assert.Same(t, results[0], table)
	}
}

func TestRegister(t *testing.T) {
	err := mapping.Register(customer{}, &namedByMethod{})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, table := range mapping.Registered() {
		names = append(names, table.Name)
	}
	assert.Contains(t, names, "TblCustomers")
	assert.Contains(t, names, "Countries")
	assert.IsIncreasing(t, names)

	err = mapping.Register(noKey{}, plain{})
	assert.True(t, database.IsConfigurationError(err))
	found := false
	for _, table := range mapping.Registered() {
		if table.Name == "plain" {
			found = true
		}
	}
	assert.True(t, found, "valid models are registered even when another fails")
}
