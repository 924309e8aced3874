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

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomoncle/sqlrepo/database"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

func withConfig(ctx context.Context, cfg *database.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFromContext(ctx context.Context) (*database.Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*database.Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// openPool creates the pool for the configured database and checks it is
// reachable. The config already holds flag and env values, so the factory
// does not apply its own env overrides. The caller closes it.
func openPool(ctx context.Context) (*database.Pool, *database.Config, error) {
	cfg, err := configFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	pool, err := database.NewPoolFactory().DisableEnvOverrides().InitializePool(ctx, &cfg.ConnectionConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return pool, cfg, nil
}
