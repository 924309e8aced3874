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
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

// connectionManager opens physical connections for the Pool. The wrapped
// *bun.DB keeps no idle connections of its own, so closing a Conn closes
// the underlying driver connection.
type connectionManager struct {
	config *ConnectionConfig
	db     *bun.DB
	logger Logger
	stats  *statsHook
}

func newConnectionManager(config *ConnectionConfig, logger Logger) (*connectionManager, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 30 * time.Second
	}

	sqlDB, dialect, err := openSQLDB(config.Type, config.DSN)
	if err != nil {
		return nil, ConnectionError("open "+config.Type, err)
	}
	sqlDB.SetMaxIdleConns(0)
	sqlDB.SetMaxOpenConns(0)

	db := bun.NewDB(sqlDB, dialect)
	cm := &connectionManager{config: config, db: db, logger: logger, stats: &statsHook{}}
	cm.installHooks()
	return cm, nil
}

func openSQLDB(typ, dsn string) (*sql.DB, schema.Dialect, error) {
	var (
		driverName string
		dialect    schema.Dialect
	)
	switch typ {
	case TypeMySQL:
		driverName, dialect = "mysql", mysqldialect.New()
	case TypePostgres:
		driverName, dialect = "postgres", pgdialect.New()
	case TypePgx:
		driverName, dialect = "pgx", pgdialect.New()
	case TypeSQLite:
		driverName, dialect = sqliteshim.ShimName, sqlitedialect.New()
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s, supported types: %v", typ, supportedTypes)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, dialect, nil
}

func (cm *connectionManager) installHooks() {
	cm.db.AddQueryHook(cm.stats)

	if cm.config.EnableQueryLog {
		cm.db.AddQueryHook(NewQueryHook(os.Stdout))
	}
	if _, ok := os.LookupEnv("BUNDEBUG"); ok {
		cm.db.AddQueryHook(bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))
	}
	if cm.config.SlowQueryTime > 0 {
		cm.db.AddQueryHook(&slowQueryHook{slowTime: cm.config.SlowQueryTime, logger: cm.logger})
	}
}

// dial opens one new physical connection and verifies it with a ping.
func (cm *connectionManager) dial(ctx context.Context) (bun.Conn, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, cm.config.ConnectTimeout)
	defer cancel()

	conn, err := cm.db.Conn(ctxTimeout)
	if err != nil {
		return bun.Conn{}, ConnectionError("dial "+cm.config.Type, err)
	}
	if err := conn.PingContext(ctxTimeout); err != nil {
		_ = conn.Close()
		return bun.Conn{}, ConnectionError("ping "+cm.config.Type, err)
	}
	return conn, nil
}

func (cm *connectionManager) dialect() string {
	return cm.db.Dialect().Name().String()
}

func (cm *connectionManager) close() error {
	return cm.db.Close()
}
