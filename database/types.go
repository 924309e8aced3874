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
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables read by the factory.
const (
	EnvConnectionString = "SQLREPO_CONNECTION_STRING"
	EnvDBType           = "SQLREPO_DB_TYPE"
	EnvMaxIdleConns     = "SQLREPO_MAX_IDLE_CONNS"
	EnvEnableQueryLog   = "SQLREPO_ENABLE_QUERY_LOG"
	EnvSlowQueryTime    = "SQLREPO_SLOW_QUERY_TIME"
)

// Supported driver types.
const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypePgx      = "pgx"
	TypeSQLite   = "sqlite"
)

var supportedTypes = []string{TypeMySQL, TypePostgres, TypePgx, TypeSQLite}

// ConnectionConfig describes how to reach the store and how many idle
// connections the pool keeps.
type ConnectionConfig struct {
	Type string `yaml:"type" json:"type" validate:"required,oneof=mysql postgres pgx sqlite"`
	// DSN is the connection string. When empty it is read from the
	// environment variable named by DSNEnv.
	DSN    string `yaml:"dsn" json:"dsn"`
	DSNEnv string `yaml:"dsn_env" json:"dsn_env"`
	// MaxIdleConns is the pool capacity; zero means runtime.NumCPU().
	MaxIdleConns   int           `yaml:"max_idle_conns" json:"max_idle_conns" validate:"min=0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"min=0"`
	EnableQueryLog bool          `yaml:"enable_query_log" json:"enable_query_log"`
	SlowQueryTime  time.Duration `yaml:"slow_query_time" json:"slow_query_time" validate:"min=0"`
}

// ScriptConfig locates SQL scripts run by ExecScriptFile.
type ScriptConfig struct {
	Filepath    string `yaml:"filepath" json:"filepath"`
	Environment string `yaml:"environment" json:"environment"`
}

// Config aggregates connection and script settings.
type Config struct {
	ConnectionConfig ConnectionConfig `yaml:"connection" json:"connection"`
	ScriptConfig     ScriptConfig     `yaml:"script" json:"script"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:           TypeSQLite,
		DSNEnv:         EnvConnectionString,
		MaxIdleConns:   runtime.NumCPU(),
		ConnectTimeout: 10 * time.Second,
		SlowQueryTime:  2 * time.Second,
	}
}

// DefaultConfig returns a Config holding DefaultConnectionConfig.
func DefaultConfig() *Config {
	return &Config{
		ConnectionConfig: *DefaultConnectionConfig(),
		ScriptConfig:     ScriptConfig{Filepath: "configs/sql", Environment: "dev"},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig and validates
// the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ConfigurationError("load config", fmt.Errorf("failed to read config file: %w", err))
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ConfigurationError("load config", fmt.Errorf("failed to parse config file: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct constraints of the config.
func (c *Config) Validate() error {
	return c.ConnectionConfig.Validate()
}

// Validate checks the struct constraints of the connection config.
func (c *ConnectionConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return ConfigurationError("validate config", err)
	}
	return nil
}
