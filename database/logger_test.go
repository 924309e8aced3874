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
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomoncle/sqlrepo/database"
)

func TestSlogLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := database.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Debug("debug message", "k", 1)
	assert.Contains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "k=1")

	buf.Reset()
	logger.SetLevel(database.LogLevelWarn)
	logger.Info("info message")
	assert.Empty(t, buf.String())
	logger.Warn("warn message")
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	logger.SetLevel(database.LogLevelError)
	logger.Warn("ignored")
	logger.Error("error message")
	assert.NotContains(t, buf.String(), "ignored")
	assert.Contains(t, buf.String(), "error message")
}

func TestInitLogger(t *testing.T) {
	previous := database.GetLogger()
	t.Cleanup(func() { database.InitLogger(previous) })

	custom := database.NewSlogLogger(nil)
	database.InitLogger(custom)
	assert.Same(t, custom, database.GetLogger())

	database.InitLogger(nil)
	assert.Same(t, custom, database.GetLogger(), "nil does not replace the logger")
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", database.LogLevelDebug.String())
	assert.Equal(t, "INFO", database.LogLevelInfo.String())
	assert.Equal(t, "WARN", database.LogLevelWarn.String())
	assert.Equal(t, "ERROR", database.LogLevelError.String())
}
