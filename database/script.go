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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/uptrace/bun"
)

var fileOrderPattern = regexp.MustCompile(`^(\d+)_`)

// ScriptRunner discovers SQL files under a root directory and executes
// them on a dedicated pool connection, one transaction per file.
//
// Layout:
//
//	<root>/common/*.sql
//	<root>/environments/<env>/*.sql
//
// Files are ordered by their numeric prefix ("001_schema.sql"), common
// files first.
type ScriptRunner struct {
	pool        *Pool
	environment string
	sqlRootPath string
	logger      Logger
}

// ScriptFile describes a SQL file to be executed.
type ScriptFile struct {
	Path        string
	Name        string
	Order       int
	Environment string
	ModTime     time.Time
}

// ScriptResult contains the outcome of executing a single SQL file.
type ScriptResult struct {
	File         string
	Statements   int
	RowsAffected int64
	Duration     time.Duration
	Err          error
}

// NewScriptRunner creates a runner for the given environment.
func NewScriptRunner(pool *Pool, environment string) *ScriptRunner {
	return &ScriptRunner{
		pool:        pool,
		environment: environment,
		sqlRootPath: "configs/sql",
		logger:      GetLogger(),
	}
}

// SetSQLRootPath sets the root directory from which SQL files are loaded.
func (s *ScriptRunner) SetSQLRootPath(path string) {
	s.sqlRootPath = path
}

// ExecuteInitialization runs all discovered SQL files in order and stops at
// the first failure.
func (s *ScriptRunner) ExecuteInitialization(ctx context.Context) error {
	s.logger.Info("Starting SQL initialization", "environment", s.environment, "sql_path", s.sqlRootPath)

	files, err := s.ScriptFiles()
	if err != nil {
		return fmt.Errorf("failed to get SQL files: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("No SQL files found to execute")
		return nil
	}

	for _, file := range files {
		result := s.ExecFile(ctx, file.Path)
		if result.Err != nil {
			s.logger.Error("SQL file execution failed", "file", result.File, "error", result.Err)
			return fmt.Errorf("SQL file execution failed %s: %w", result.File, result.Err)
		}
		s.logger.Info("SQL file executed successfully",
			"file", result.File,
			"statements", result.Statements,
			"duration", result.Duration.String(),
			"rows_affected", result.RowsAffected,
		)
	}

	s.logger.Info("SQL initialization completed", "total_files", len(files), "environment", s.environment)
	return nil
}

// ScriptFiles returns the SQL files from the common and environment dirs.
func (s *ScriptRunner) ScriptFiles() ([]ScriptFile, error) {
	var files []ScriptFile

	commonPath := filepath.Join(s.sqlRootPath, "common")
	if _, err := os.Stat(commonPath); err == nil {
		commonFiles, err := filesFromDir(commonPath, "common")
		if err != nil {
			return nil, fmt.Errorf("failed to get common SQL files: %w", err)
		}
		files = append(files, commonFiles...)
	}

	envPath := filepath.Join(s.sqlRootPath, "environments", s.environment)
	if _, err := os.Stat(envPath); err == nil {
		envFiles, err := filesFromDir(envPath, s.environment)
		if err != nil {
			return nil, fmt.Errorf("failed to get environment SQL files: %w", err)
		}
		files = append(files, envFiles...)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Environment != files[j].Environment {
			return files[i].Environment == "common"
		}
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// ExecFile renders and runs one SQL file.
func (s *ScriptRunner) ExecFile(ctx context.Context, path string) ScriptResult {
	start := time.Now()
	result := ScriptResult{File: path}

	content, err := os.ReadFile(path)
	if err != nil {
		result.Err = fmt.Errorf("failed to read file: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	rendered, err := renderScript(string(content), s.environment, s.pool.Dialect())
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	result.Statements, result.RowsAffected, result.Err = s.ExecScript(ctx, rendered)
	result.Duration = time.Since(start)
	return result
}

// ExecScript splits script into statements and executes them in a single
// transaction on a dedicated connection. It returns the number of
// statements executed and the total rows affected.
func (s *ScriptRunner) ExecScript(ctx context.Context, script string) (int, int64, error) {
	statements, err := SplitStatements(script)
	if err != nil {
		return 0, 0, ExecutionError("split script", "", err)
	}
	if len(statements) == 0 {
		return 0, 0, nil
	}

	conn, err := s.pool.AcquireDedicated(ctx)
	if err != nil {
		return 0, 0, err
	}

	var total int64
	err = conn.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range statements {
			res, execErr := tx.ExecContext(ctx, stmt)
			if execErr != nil {
				return ExecutionError("exec script", stmt, execErr)
			}
			n, _ := res.RowsAffected()
			total += n
		}
		return nil
	})
	s.pool.ReleaseOrDiscard(conn, err)
	if err != nil {
		return 0, 0, err
	}
	return len(statements), total, nil
}

// ExecScriptFile runs a single SQL file against pool with the given
// environment name available to the template.
func ExecScriptFile(ctx context.Context, pool *Pool, path, environment string) (ScriptResult, error) {
	result := NewScriptRunner(pool, environment).ExecFile(ctx, path)
	return result, result.Err
}

// SplitStatements splits a script on statement-terminating semicolons.
// Blank lines and "--" comment lines are dropped. Lines have no length
// limit beyond the script itself.
func SplitStatements(content string) ([]string, error) {
	var (
		statements []string
		current    strings.Builder
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		stmt = strings.TrimSuffix(stmt, ";")
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString(" ")
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	flush()
	return statements, nil
}

func filesFromDir(dir, environment string) ([]ScriptFile, error) {
	var files []ScriptFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, ScriptFile{
			Path:        path,
			Name:        d.Name(),
			Order:       fileOrder(d.Name()),
			Environment: environment,
			ModTime:     info.ModTime(),
		})
		return nil
	})
	return files, err
}

func fileOrder(filename string) int {
	if m := fileOrderPattern.FindStringSubmatch(filename); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 999
}

// renderScript expands {{.VAR}} references with environment variables plus
// ENVIRONMENT, DIALECT (bun dialect name: pg, mysql, sqlite) and TIMESTAMP.
func renderScript(content, environment, dialect string) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}
	tmpl, err := template.New("sql").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	vars := make(map[string]string)
	for _, env := range os.Environ() {
		if k, v, ok := strings.Cut(env, "="); ok {
			vars[k] = v
		}
	}
	vars["ENVIRONMENT"] = environment
	vars["DIALECT"] = dialect
	vars["TIMESTAMP"] = time.Now().Format("2006-01-02 15:04:05")

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
