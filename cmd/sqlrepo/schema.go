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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tomoncle/sqlrepo/database"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Run SQL scripts against the database",
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply <file> [file...]",
	Short: "Execute SQL files, one transaction per file",
	Long: `Execute SQL files in the order given. Each file runs in its own
transaction; the first failing file stops the command.

Files are Go templates: {{.DIALECT}} is the bun dialect name (pg, mysql,
sqlite), {{.ENVIRONMENT}} the configured env and every environment
variable is available by name.

Examples:
  sqlrepo schema apply configs/sql/common/001_tbl_customers.sql`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSchemaApply,
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Execute the common and environment scripts under script.path",
	Long: `Execute <script.path>/common/*.sql followed by
<script.path>/environments/<env>/*.sql, ordered by numeric file prefix.`,
	Args: cobra.NoArgs,
	RunE: runSchemaInit,
}

func init() {
	schemaCmd.AddCommand(schemaApplyCmd, schemaInitCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaApply(cmd *cobra.Command, args []string) error {
	pool, cfg, err := openPool(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	for _, path := range args {
		result, err := database.ExecScriptFile(cmd.Context(), pool, path, cfg.ScriptConfig.Environment)
		if err != nil {
			return fmt.Errorf("apply %s: %w", path, err)
		}
		slog.Info("applied",
			"file", result.File,
			"statements", result.Statements,
			"rows_affected", result.RowsAffected,
			"duration", result.Duration,
		)
	}
	return nil
}

func runSchemaInit(cmd *cobra.Command, _ []string) error {
	pool, cfg, err := openPool(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	return database.InitData(cmd.Context(), pool, cfg.ScriptConfig)
}
