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
	"os"
	"strconv"
	"strings"
	"time"
)

// PoolFactory builds pools from a ConnectionConfig, filling in the
// connection string and tuning values from the environment. The SQLREPO_*
// variables win over the config values unless DisableEnvOverrides is
// called.
type PoolFactory struct {
	logger       Logger
	envOverrides bool
}

// NewPoolFactory returns a factory using the package logger.
func NewPoolFactory() *PoolFactory {
	return &PoolFactory{logger: GetLogger(), envOverrides: true}
}

// DisableEnvOverrides makes the factory use the config values as given.
// Callers that already resolved the environment themselves (the CLI does,
// with flags taking precedence) use this. The connection string is still
// read from DSNEnv when DSN is empty.
func (f *PoolFactory) DisableEnvOverrides() *PoolFactory {
	f.envOverrides = false
	return f
}

// CreateFromConfig resolves cfg against the environment and returns a pool
// for it. cfg is copied and left untouched.
func (f *PoolFactory) CreateFromConfig(cfg *ConnectionConfig) (*Pool, error) {
	if cfg == nil {
		return nil, ConfigurationError("create pool", fmt.Errorf("database configuration cannot be empty"))
	}
	resolved := *cfg
	if f.envOverrides {
		f.overrideFromEnv(&resolved)
	}

	if !isSupportedType(resolved.Type) {
		return nil, ConfigurationError("create pool",
			fmt.Errorf("unsupported database type: %s, supported types: %v", resolved.Type, supportedTypes))
	}
	if err := resolveDSN(&resolved); err != nil {
		return nil, err
	}

	pool, err := NewPool(&resolved)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Database pool created",
		"type", resolved.Type,
		"capacity", pool.Capacity(),
		"dialect", pool.Dialect(),
	)
	return pool, nil
}

// CreateFromEnv builds a pool from DefaultConnectionConfig and the
// SQLREPO_* environment variables.
func (f *PoolFactory) CreateFromEnv() (*Pool, error) {
	return f.CreateFromConfig(DefaultConnectionConfig())
}

// InitializePool creates the pool and verifies the store is reachable.
func (f *PoolFactory) InitializePool(ctx context.Context, cfg *ConnectionConfig) (*Pool, error) {
	pool, err := f.CreateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	f.logger.Info("Database initialization completed!")
	return pool, nil
}

// SetLogger sets the logger used by the factory.
func (f *PoolFactory) SetLogger(logger Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// overrideFromEnv overrides configuration values from environment variables.
func (f *PoolFactory) overrideFromEnv(cfg *ConnectionConfig) {
	if typ := os.Getenv(EnvDBType); typ != "" {
		cfg.Type = strings.ToLower(typ)
	}
	if maxIdle := os.Getenv(EnvMaxIdleConns); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			cfg.MaxIdleConns = val
		} else {
			f.logger.Warn("Ignoring invalid environment value", "key", EnvMaxIdleConns, "value", maxIdle)
		}
	}
	if enableQueryLog := os.Getenv(EnvEnableQueryLog); enableQueryLog != "" {
		cfg.EnableQueryLog = enableQueryLog == "true" || enableQueryLog == "1"
	}
	if slow := os.Getenv(EnvSlowQueryTime); slow != "" {
		if val, err := time.ParseDuration(slow); err == nil {
			cfg.SlowQueryTime = val
		} else {
			f.logger.Warn("Ignoring invalid environment value", "key", EnvSlowQueryTime, "value", slow)
		}
	}
}

// resolveDSN fills cfg.DSN from the variable named by cfg.DSNEnv when no
// explicit connection string is set.
func resolveDSN(cfg *ConnectionConfig) error {
	if cfg.DSN != "" {
		return nil
	}
	key := cfg.DSNEnv
	if key == "" {
		key = EnvConnectionString
	}
	dsn, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(dsn) == "" {
		return ConfigurationError("resolve connection string",
			fmt.Errorf("environment variable %s is not set", key))
	}
	cfg.DSN = dsn
	return nil
}

func isSupportedType(typ string) bool {
	for _, t := range supportedTypes {
		if typ == t {
			return true
		}
	}
	return false
}
