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
	"fmt"
	"sync"
)

var (
	globalMu   sync.Mutex
	globalPool *Pool
)

// DefaultPool returns the process-wide pool, creating it from the
// environment on first use.
func DefaultPool() (*Pool, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPool != nil {
		return globalPool, nil
	}
	pool, err := NewPoolFactory().CreateFromEnv()
	if err != nil {
		return nil, err
	}
	globalPool = pool
	return pool, nil
}

// InitPool replaces the process-wide pool with one built from cfg. A
// previous pool is closed.
func InitPool(cfg *ConnectionConfig) (*Pool, error) {
	pool, err := NewPoolFactory().CreateFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	globalMu.Lock()
	previous := globalPool
	globalPool = pool
	globalMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return pool, nil
}

// ClosePool closes the process-wide pool if one was created.
func ClosePool() error {
	globalMu.Lock()
	pool := globalPool
	globalPool = nil
	globalMu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Close()
}

// GetPoolStats returns statistics of the process-wide pool.
func GetPoolStats() PoolStats {
	globalMu.Lock()
	pool := globalPool
	globalMu.Unlock()
	if pool == nil {
		return PoolStats{}
	}
	return pool.Stats()
}

// InitData runs the SQL scripts configured in cfg against pool.
func InitData(ctx context.Context, pool *Pool, cfg ScriptConfig) error {
	if pool == nil {
		return fmt.Errorf("database not initialized")
	}
	root := cfg.Filepath
	if root == "" {
		root = "configs/sql"
	}
	env := cfg.Environment
	if env == "" {
		env = "prod"
	}
	runner := NewScriptRunner(pool, env)
	runner.SetSQLRootPath(root)
	return runner.ExecuteInitialization(ctx)
}
