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

package database_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomoncle/sqlrepo/database"
)

// sqliteConfig points at a fresh database file. A file is used rather than
// :memory: because every pooled connection would get its own in-memory
// database.
func sqliteConfig(t *testing.T, capacity int) *database.ConnectionConfig {
	t.Helper()
	return &database.ConnectionConfig{
		Type:         database.TypeSQLite,
		DSN:          filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns: capacity,
	}
}

func newTestPool(t *testing.T, capacity int) *database.Pool {
	t.Helper()
	pool, err := database.NewPool(sqliteConfig(t, capacity))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}
