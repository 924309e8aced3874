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
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/viper"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/utils"
)

func setupLogging() {
	env := viper.GetString("env")

	isProd := env == "prod" || env == "production"

	levelStr := viper.GetString("log.level")
	if levelStr == "" {
		if isProd {
			levelStr = "info"
		} else {
			levelStr = "debug"
		}
	}
	level := parseLevel(levelStr)

	var h slog.Handler
	if isProd {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				return a
			},
		})
	} else {
		h = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo).Writer())

	// The logrus backend keeps the database package on its default logger.
	if strings.EqualFold(viper.GetString("log.backend"), "logrus") {
		utils.ConfigureConsoleWriter(os.Stderr)
		utils.ConfigureLogLevel(levelStr)
		if isProd {
			utils.ConfigureConsoleLogFormat("json")
		}
		return
	}

	dbLogger := database.NewSlogLogger(logger)
	dbLogger.SetLevel(toDatabaseLevel(level))
	database.InitLogger(dbLogger)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func toDatabaseLevel(level slog.Level) database.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return database.LogLevelDebug
	case level <= slog.LevelInfo:
		return database.LogLevelInfo
	case level <= slog.LevelWarn:
		return database.LogLevelWarn
	default:
		return database.LogLevelError
	}
}
