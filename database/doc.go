// Package database provides the connection pool, its factory and
// configuration, query hooks, error classification, logging and the SQL
// script runner, built on top of Bun.
package database
