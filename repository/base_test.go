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

package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/mapping"
	"github.com/tomoncle/sqlrepo/repository"
	"github.com/tomoncle/sqlrepo/types"
)

type customer struct {
	mapping.BaseModel `db:"table:TblCustomers"`

	ID            int64      `db:"CustomerId,pk"`
	Name          *string    `db:"CustomerName"`
	PostalAddress *string
	Email         *string
	BirthDate     *time.Time
}

type country struct {
	Code string `db:",pk"`
	Name string
}

func (country) TableName() string { return "Countries" }

type keyless struct {
	Name string
}

const schema = `
CREATE TABLE TblCustomers (
    CustomerId INTEGER PRIMARY KEY AUTOINCREMENT,
    CustomerName VARCHAR(255),
    PostalAddress VARCHAR(255),
    Email VARCHAR(255) UNIQUE,
    BirthDate TIMESTAMP
);
CREATE TABLE Countries (
    Code TEXT PRIMARY KEY,
    Name TEXT NOT NULL
);
INSERT INTO Countries (Code, Name) VALUES ('IT', 'Italy');
INSERT INTO Countries (Code, Name) VALUES ('FR', 'France');
`

func str(s string) *string { return &s }

func newPool(t *testing.T) *database.Pool {
	t.Helper()
	pool, err := database.NewPool(&database.ConnectionConfig{
		Type:         database.TypeSQLite,
		DSN:          filepath.Join(t.TempDir(), "repo.db"),
		MaxIdleConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	_, _, err = database.NewScriptRunner(pool, "test").ExecScript(context.Background(), schema)
	require.NoError(t, err)
	return pool
}

func newCustomers(t *testing.T, pool *database.Pool) repository.Repository[customer, int64] {
	t.Helper()
	repo, err := repository.NewRepository[customer, int64](pool)
	require.NoError(t, err)
	return repo
}

func TestNewRepository(t *testing.T) {
	_, err := repository.NewRepository[customer, int64](nil)
	assert.True(t, database.IsConfigurationError(err))

	pool := newPool(t)
	_, err = repository.NewRepository[keyless, int](pool)
	assert.True(t, database.IsConfigurationError(err))

	repo := newCustomers(t, pool)
	assert.Equal(t, "TblCustomers", repo.Table().Name)
	assert.Equal(t, "CustomerId", repo.Table().PK.Column)
}

func TestRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newCustomers(t, newPool(t))

	birth := time.Date(1990, time.May, 17, 8, 30, 0, 0, time.UTC)
	c := &customer{
		Name:          str("Ada"),
		PostalAddress: str("12 Analytical St"),
		Email:         str("ada@example.com"),
		BirthDate:     &birth,
	}
	ok, err := repo.Create(ctx, c)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotZero(t, c.ID, "generated id is written back")

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "Ada", *got.Name)
	assert.Equal(t, "12 Analytical St", *got.PostalAddress)
	assert.Equal(t, "ada@example.com", *got.Email)
	require.NotNil(t, got.BirthDate)
	assert.True(t, birth.Equal(*got.BirthDate), "got %s", got.BirthDate)

	missing, err := repo.FindByID(ctx, c.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_CreateNullColumns(t *testing.T) {
	ctx := context.Background()
	repo := newCustomers(t, newPool(t))

	c := &customer{Name: str("Only name")}
	ok, err := repo.Create(ctx, c)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Email)
	assert.Nil(t, got.PostalAddress)
	assert.Nil(t, got.BirthDate)
}

func TestRepository_CreateEmpty(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	repo := newCustomers(t, pool)
	opened := pool.Stats().Opened

	ok, err := repo.Create(ctx, &customer{})
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrEmptyStatement)
	assert.True(t, database.IsExecutionError(err))
	assert.Equal(t, opened, pool.Stats().Opened, "no connection is used for an empty statement")

	ok, err = repo.Create(ctx, nil)
	assert.False(t, ok)
	assert.True(t, database.IsExecutionError(err))
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := newCustomers(t, newPool(t))

	c := &customer{Name: str("Ugo"), PostalAddress: str("Via Roma 1"), Email: str("ugo@example.com")}
	_, err := repo.Create(ctx, c)
	require.NoError(t, err)

	ok, err := repo.Update(ctx, c.ID, &customer{Name: str("Hugo")})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hugo", *got.Name)
	assert.Equal(t, "Via Roma 1", *got.PostalAddress, "null fields keep their stored value")
	assert.Equal(t, "ugo@example.com", *got.Email)

	ok, err = repo.Update(ctx, c.ID+100, &customer{Name: str("Nobody")})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Update(ctx, c.ID, &customer{})
	assert.ErrorIs(t, err, database.ErrEmptyStatement)
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newCustomers(t, newPool(t))

	c := &customer{Name: str("Temp")}
	_, err := repo.Create(ctx, c)
	require.NoError(t, err)

	ok, err := repo.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := newCustomers(t, newPool(t))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	for _, name := range []string{"Ada", "Grace", "Linus"} {
		_, err := repo.Create(ctx, &customer{Name: str(name)})
		require.NoError(t, err)
	}

	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, *c.Name)
	}
	assert.Equal(t, []string{"Ada", "Grace", "Linus"}, names, "rows come back in store order")
}

func TestRepository_Page(t *testing.T) {
	ctx := context.Background()
	repo := newCustomers(t, newPool(t))

	empty, err := repo.Page(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.Items)
	assert.Equal(t, types.DefaultPageSize, empty.PageSize)

	ids := make([]int64, 0, 5)
	for i := 0; i < 5; i++ {
		c := &customer{Name: str(fmt.Sprintf("customer-%d", i))}
		_, err := repo.Create(ctx, c)
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)

	page, err := repo.Page(ctx, types.NewPageRequest(2, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages())
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID)
	assert.Equal(t, ids[3], page.Items[1].ID)

	last, err := repo.Page(ctx, types.NewPageRequest(4, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 5, last.Total)
	assert.Empty(t, last.Items)
}

func TestRepository_StringIdentifier(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	repo, err := repository.NewRepository[country, string](pool)
	require.NoError(t, err)

	it, err := repo.FindByID(ctx, "IT")
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, "Italy", it.Name)

	ok, err := repo.Update(ctx, "FR", &country{Name: "République française"})
	require.NoError(t, err)
	assert.True(t, ok)

	injected, err := repo.FindByID(ctx, "IT' OR '1'='1")
	require.NoError(t, err)
	assert.Nil(t, injected)

	ok, err = repo.Delete(ctx, "x' OR 'a'='a")
	require.NoError(t, err)
	assert.False(t, ok)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	fr, err := repo.FindByID(ctx, "FR")
	require.NoError(t, err)
	assert.Equal(t, "République française", fr.Name)
}

func TestRepository_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	repo := newCustomers(t, newPool(t))

	_, err := repo.Create(ctx, &customer{Name: str("A"), Email: str("same@example.com")})
	require.NoError(t, err)

	ok, err := repo.Create(ctx, &customer{Name: str("B"), Email: str("same@example.com")})
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, database.IsExecutionError(err))
	assert.Equal(t, database.DuplicateKeyErr, database.SQLErrorKind(err))
}

// assertReleased checks every opened connection is either idle or closed.
func assertReleased(t *testing.T, pool *database.Pool) {
	t.Helper()
	stats := pool.Stats()
	assert.EqualValues(t, stats.Opened-stats.Closed, stats.Idle, "stats: %+v", stats)
}

type ghost struct {
	ID   int64 `db:",pk"`
	Name string
}

func TestRepository_ReleasesConnectionsOnError(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	repo := newCustomers(t, pool)

	first := &customer{Name: str("A"), Email: str("a@example.com")}
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)
	_, err = repo.Create(ctx, &customer{Name: str("B"), Email: str("b@example.com")})
	require.NoError(t, err)
	assertReleased(t, pool)

	_, err = repo.Create(ctx, &customer{Name: str("C"), Email: str("a@example.com")})
	require.Error(t, err)
	assertReleased(t, pool)

	_, err = repo.Update(ctx, first.ID, &customer{Email: str("b@example.com")})
	require.Error(t, err)
	assert.Equal(t, database.DuplicateKeyErr, database.SQLErrorKind(err))
	assertReleased(t, pool)

	ghosts, err := repository.NewRepository[ghost, int64](pool)
	require.NoError(t, err)
	_, err = ghosts.FindAll(ctx)
	require.Error(t, err)
	assert.Equal(t, database.NoTableErr, database.SQLErrorKind(err))
	assertReleased(t, pool)

	_, err = ghosts.FindByID(ctx, 1)
	require.Error(t, err)
	_, err = ghosts.Count(ctx)
	require.Error(t, err)
	assertReleased(t, pool)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "the pool still serves after failures")
	assertReleased(t, pool)
}

func TestRepository_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	repo := newCustomers(t, pool)

	c := &customer{Name: str("Shared")}
	_, err := repo.Create(ctx, c)
	require.NoError(t, err)

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := repo.FindByID(ctx, c.ID)
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
	assert.LessOrEqual(t, pool.Stats().Idle, pool.Capacity())
}

func TestRepository_ClosedPool(t *testing.T) {
	pool := newPool(t)
	repo := newCustomers(t, pool)
	require.NoError(t, pool.Close())

	_, err := repo.FindAll(context.Background())
	assert.True(t, database.IsConnectionError(err))
}
