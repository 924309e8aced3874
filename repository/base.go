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

package repository

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/mapping"
	"github.com/tomoncle/sqlrepo/types"
)

type baseRepositoryImpl[T any, ID any] struct {
	pool  *database.Pool
	table *mapping.Table
}

// NewRepository returns a generic repository backed by pool. The metadata
// of T is resolved here, so a type without an identifier field fails with
// a configuration error before any statement runs.
func NewRepository[T any, ID any](pool *database.Pool) (Repository[T, ID], error) {
	if pool == nil {
		return nil, database.ConfigurationError("new repository", errors.New("pool cannot be nil"))
	}
	table, err := mapping.TableOf[T]()
	if err != nil {
		return nil, err
	}
	return &baseRepositoryImpl[T, ID]{pool: pool, table: table}, nil
}

func (r *baseRepositoryImpl[T, ID]) Table() *mapping.Table { return r.table }

func (r *baseRepositoryImpl[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	items, err := r.query(ctx, "find by id", mapping.SelectByID(r.table, id))
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (r *baseRepositoryImpl[T, ID]) FindAll(ctx context.Context) ([]*T, error) {
	return r.query(ctx, "find all", mapping.SelectAll(r.table))
}

func (r *baseRepositoryImpl[T, ID]) Count(ctx context.Context) (total int64, err error) {
	stmt := mapping.Count(r.table)
	conn, err := r.pool.AcquireShared(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { r.pool.ReleaseOrDiscard(conn, err) }()

	if err = conn.QueryRowContext(ctx, stmt.Query).Scan(&total); err != nil {
		return 0, database.ExecutionError("count", stmt.Query, err)
	}
	return total, nil
}

func (r *baseRepositoryImpl[T, ID]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if pageRequest == nil {
		pageRequest = types.NewPageRequest(1, types.DefaultPageSize)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := r.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	items, err := r.query(ctx, "page",
		mapping.SelectPage(r.table, pageRequest.GetPageSize(), pageRequest.GetOffset()))
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

func (r *baseRepositoryImpl[T, ID]) Create(ctx context.Context, entity *T) (bool, error) {
	stmt, err := mapping.Insert(r.table, entity)
	if err != nil {
		return false, err
	}
	res, err := r.exec(ctx, "create", stmt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, database.ExecutionError("create", stmt.Query, err)
	}
	if n > 0 {
		r.setGeneratedID(entity, res)
	}
	return n > 0, nil
}

func (r *baseRepositoryImpl[T, ID]) Update(ctx context.Context, id ID, entity *T) (bool, error) {
	stmt, err := mapping.Update(r.table, id, entity)
	if err != nil {
		return false, err
	}
	return r.execAffected(ctx, "update", stmt)
}

func (r *baseRepositoryImpl[T, ID]) Delete(ctx context.Context, id ID) (bool, error) {
	return r.execAffected(ctx, "delete", mapping.Delete(r.table, id))
}

// query runs a read on a shared connection and maps every row.
func (r *baseRepositoryImpl[T, ID]) query(ctx context.Context, op string, stmt mapping.Statement) (items []*T, err error) {
	conn, err := r.pool.AcquireShared(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { r.pool.ReleaseOrDiscard(conn, err) }()

	rows, err := conn.QueryContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, database.ExecutionError(op, stmt.Query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, database.ExecutionError(op, stmt.Query, err)
	}
	mapper, err := mapping.NewRowMapper[T](r.table, columns)
	if err != nil {
		return nil, err
	}
	items, err = mapper.MapAll(rows)
	if err != nil {
		return nil, database.ExecutionError(op, stmt.Query, err)
	}
	return items, nil
}

// exec runs a write on a dedicated connection.
func (r *baseRepositoryImpl[T, ID]) exec(ctx context.Context, op string, stmt mapping.Statement) (res sql.Result, err error) {
	conn, err := r.pool.AcquireDedicated(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { r.pool.ReleaseOrDiscard(conn, err) }()

	res, err = conn.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, database.ExecutionError(op, stmt.Query, err)
	}
	return res, nil
}

func (r *baseRepositoryImpl[T, ID]) execAffected(ctx context.Context, op string, stmt mapping.Statement) (bool, error) {
	res, err := r.exec(ctx, op, stmt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, database.ExecutionError(op, stmt.Query, err)
	}
	return n > 0, nil
}

// setGeneratedID copies the driver's last insert id into a zero integer
// identifier. Drivers without LastInsertId support are ignored.
func (r *baseRepositoryImpl[T, ID]) setGeneratedID(entity *T, res sql.Result) {
	field := r.table.PK.Value(reflect.ValueOf(entity).Elem())
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Int() != 0 {
			return
		}
		if id, err := res.LastInsertId(); err == nil && id > 0 && !field.OverflowInt(id) {
			field.SetInt(id)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if field.Uint() != 0 {
			return
		}
		if id, err := res.LastInsertId(); err == nil && id > 0 && !field.OverflowUint(uint64(id)) {
			field.SetUint(uint64(id))
		}
	}
}
