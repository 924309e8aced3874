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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tomoncle/sqlrepo/mapping"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "sqlrepo",
	Short:   "Generic CRUD repository over SQL databases",
	Long: `sqlrepo maps tagged Go structs onto single tables and runs
create, read, update and delete statements for them over a small
connection pool. This command drives the repository against the
TblCustomers demo table.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		readConfig(cmd)
		setupLogging()
		if err := mapping.Register(&Customer{}); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cmd.SetContext(withConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres, pgx, mysql (default: sqlite, env: SQLREPO_DATABASE_TYPE or SQLREPO_DB_TYPE; the flag wins)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (env: SQLREPO_DATABASE_DSN or SQLREPO_CONNECTION_STRING)")
	rootCmd.PersistentFlags().Int("max-idle-conns", 0, "idle connections kept by the pool (default: number of CPUs, env: SQLREPO_MAX_IDLE_CONNS)")
	rootCmd.PersistentFlags().Bool("query-log", false, "print every statement")

	_ = viper.BindPFlag("database.type", rootCmd.PersistentFlags().Lookup("db-type"))
	_ = viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
	_ = viper.BindPFlag("database.max_idle_conns", rootCmd.PersistentFlags().Lookup("max-idle-conns"))
	_ = viper.BindPFlag("database.query_log", rootCmd.PersistentFlags().Lookup("query-log"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
