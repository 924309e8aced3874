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
	"database/sql"
	"database/sql/driver"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/uptrace/bun"
)

// Conn is a single physical connection handed out by a Pool. A borrower
// owns it exclusively until it is given back with Release or Discard.
type Conn = bun.Conn

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Capacity int    `json:"capacity"`
	Idle     int    `json:"idle"`
	Opened   int64  `json:"opened"`
	Closed   int64  `json:"closed"`
	Reused   int64  `json:"reused"`
	Queries  int64  `json:"queries"`
	Failures int64  `json:"failures"`
	Dialect  string `json:"dialect"`
}

// Pool keeps up to capacity idle connections. It never limits how many
// connections are outstanding at once: when the idle set is empty a new
// connection is opened, and a connection returned to a full idle set is
// closed. The mutex only guards the idle slice; no I/O happens under it.
type Pool struct {
	manager  *connectionManager
	logger   Logger
	capacity int

	mu     sync.Mutex
	idle   []Conn
	closed bool

	opened atomic.Int64
	closes atomic.Int64
	reused atomic.Int64
}

// NewPool validates cfg and builds a pool for it. No connection is opened
// until the first acquisition.
func NewPool(cfg *ConnectionConfig) (*Pool, error) {
	if cfg == nil {
		return nil, ConfigurationError("new pool", errors.New("database configuration cannot be empty"))
	}
	if cfg.DSN == "" {
		return nil, ConfigurationError("new pool", errors.New("connection string is empty"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	capacity := cfg.MaxIdleConns
	if capacity <= 0 {
		capacity = runtime.NumCPU()
	}

	logger := GetLogger()
	manager, err := newConnectionManager(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Pool{
		manager:  manager,
		logger:   logger,
		capacity: capacity,
		idle:     make([]Conn, 0, capacity),
	}, nil
}

// Capacity returns the maximum number of idle connections retained.
func (p *Pool) Capacity() int { return p.capacity }

// Dialect returns the bun dialect name of the backing store.
func (p *Pool) Dialect() string { return p.manager.dialect() }

// AcquireShared returns an idle connection when one exists, otherwise it
// opens a new one.
func (p *Pool) AcquireShared(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Conn{}, ConnectionError("acquire shared", errPoolClosed)
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle[n-1] = Conn{}
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		p.reused.Add(1)
		return conn, nil
	}
	p.mu.Unlock()

	return p.open(ctx)
}

// AcquireDedicated always opens a brand-new connection, bypassing the idle
// set. The connection is still given back through Release.
func (p *Pool) AcquireDedicated(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return Conn{}, ConnectionError("acquire dedicated", errPoolClosed)
	}
	return p.open(ctx)
}

// Release puts conn back into the idle set, or closes it when the idle set
// is already at capacity.
func (p *Pool) Release(conn Conn) {
	if conn.Conn == nil {
		return
	}
	p.mu.Lock()
	if !p.closed && len(p.idle) < p.capacity {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.closeConn(conn)
}

// Discard closes conn without offering it to the idle set. Used for
// connections the driver reported as broken.
func (p *Pool) Discard(conn Conn) {
	if conn.Conn == nil {
		return
	}
	p.closeConn(conn)
}

// ReleaseOrDiscard releases conn unless err says the connection itself is
// no longer usable.
func (p *Pool) ReleaseOrDiscard(conn Conn, err error) {
	if IsBrokenConnection(err) {
		p.Discard(conn)
		return
	}
	p.Release(conn)
}

// IsBrokenConnection reports whether err means the connection must not be
// reused.
func IsBrokenConnection(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}

// Ping checks the store is reachable on a shared connection, which goes
// back to the idle set afterwards (or is discarded when broken).
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.AcquireShared(ctx)
	if err != nil {
		return err
	}
	err = conn.PingContext(ctx)
	p.ReleaseOrDiscard(conn, err)
	if err != nil {
		return ConnectionError("ping", err)
	}
	return nil
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	idle := len(p.idle)
	p.mu.Unlock()
	return PoolStats{
		Capacity: p.capacity,
		Idle:     idle,
		Opened:   p.opened.Load(),
		Closed:   p.closes.Load(),
		Reused:   p.reused.Load(),
		Queries:  p.manager.stats.queries.Load(),
		Failures: p.manager.stats.errors.Load(),
		Dialect:  p.manager.dialect(),
	}
}

// Close closes every idle connection and the dialer. Connections still
// borrowed are closed when they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range idle {
		p.closeConn(conn)
	}
	err := p.manager.close()
	if err != nil {
		p.logger.Error("Failed to close database", "error", err)
	} else {
		p.logger.Info("Database pool closed", "dialect", p.manager.dialect())
	}
	return err
}

func (p *Pool) open(ctx context.Context) (Conn, error) {
	conn, err := p.manager.dial(ctx)
	if err != nil {
		p.logger.Error("Failed to open database connection", "type", p.manager.config.Type, "error", err)
		return Conn{}, err
	}
	p.opened.Add(1)
	p.logger.Debug("Opened database connection", "type", p.manager.config.Type)
	return conn, nil
}

func (p *Pool) closeConn(conn Conn) {
	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		p.logger.Warn("Error closing database connection", "error", err)
	}
	p.closes.Add(1)
}

var errPoolClosed = errors.New("pool is closed")
