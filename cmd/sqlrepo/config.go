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
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tomoncle/sqlrepo/database"
)

func init() {
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("env", "dev")

	viper.SetDefault("database.type", database.TypeSQLite)
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.dsn_env", database.EnvConnectionString)
	viper.SetDefault("database.max_idle_conns", 0)
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("database.query_log", false)
	viper.SetDefault("database.slow_query_time", "2s")

	viper.SetDefault("script.path", "configs/sql")

	viper.SetDefault("log.level", "")
	viper.SetDefault("log.backend", "slog")
}

func readConfig(cmd *cobra.Command) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		slog.Warn("failed to bind flags", "err", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SQLREPO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvAliases()

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			slog.Warn("error reading config file", "err", err)
		}
	}
}

// bindEnvAliases lets the variables read by database.PoolFactory feed the
// same viper keys, so a flag still wins over them.
func bindEnvAliases() {
	_ = viper.BindEnv("database.type", "SQLREPO_DATABASE_TYPE", database.EnvDBType)
	_ = viper.BindEnv("database.max_idle_conns", "SQLREPO_DATABASE_MAX_IDLE_CONNS", database.EnvMaxIdleConns)
	_ = viper.BindEnv("database.query_log", "SQLREPO_DATABASE_QUERY_LOG", database.EnvEnableQueryLog)
	_ = viper.BindEnv("database.slow_query_time", "SQLREPO_DATABASE_SLOW_QUERY_TIME", database.EnvSlowQueryTime)
}

// loadConfig assembles the database config from viper. Validation happens
// when the pool is created.
func loadConfig() (*database.Config, error) {
	cfg := database.DefaultConfig()

	conn := &cfg.ConnectionConfig
	conn.Type = strings.ToLower(viper.GetString("database.type"))
	conn.DSN = viper.GetString("database.dsn")
	conn.DSNEnv = viper.GetString("database.dsn_env")
	conn.MaxIdleConns = viper.GetInt("database.max_idle_conns")
	conn.ConnectTimeout = viper.GetDuration("database.connect_timeout")
	conn.EnableQueryLog = viper.GetBool("database.query_log")
	conn.SlowQueryTime = viper.GetDuration("database.slow_query_time")

	cfg.ScriptConfig.Filepath = viper.GetString("script.path")
	cfg.ScriptConfig.Environment = viper.GetString("env")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
