// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitedb

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// pool is a fixed-size SQLite connection pool with the pragmas the
// metadata databases want. Writes are already serialized by the
// dumper's per-stream ordering, so the pool stays small — extra
// connections only help concurrent readers, which the generator
// itself never has.
type pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// openPool creates the database file if needed and prepares every
// connection with the standard pragmas plus the onConnect callback
// (schema creation).
func openPool(path string, logger *slog.Logger, onConnect func(conn *sqlite.Conn) error) (*pool, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlitedb: path is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	inner, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: 2,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, onConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: opening %s: %w", path, err)
	}

	logger.Debug("metadata database opened", "path", path)
	return &pool{inner: inner, logger: logger, path: path}, nil
}

// take borrows a connection; the caller must put it back.
func (p *pool) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: take: %w", err)
	}
	return conn, nil
}

func (p *pool) put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// close blocks until borrowed connections are returned.
func (p *pool) close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("sqlitedb: closing %s: %w", p.path, err)
	}
	p.logger.Debug("metadata database closed", "path", p.path)
	return nil
}

// prepareConnection applies the standard pragmas and then the
// caller's setup. synchronous=OFF is deliberate: these databases are
// regenerable build outputs, and the generator rewrites them from
// scratch on every run.
func prepareConnection(conn *sqlite.Conn, onConnect func(*sqlite.Conn) error) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=OFF",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitedb: %s: %w", pragma, err)
		}
	}
	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitedb: preparing connection: %w", err)
		}
	}
	return nil
}
