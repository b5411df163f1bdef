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
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Manager owns one connection pool. Callers create it explicitly and pass
// it (or its *bun.DB) to whatever needs database access.
type Manager struct {
	config *ConnectionConfig
	logger Logger

	mu    sync.RWMutex
	db    *bun.DB
	sqlDB *sql.DB
}

// NewManager returns a Manager for config. A nil config falls back to
// DefaultConnectionConfig and a nil logger discards output.
func NewManager(config *ConnectionConfig, logger Logger) *Manager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Manager{config: config, logger: logger}
}

// Connect opens the pool and verifies it with a ping. Calling Connect on an
// already connected manager is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return nil
	}

	sqlDB, db, err := m.open()
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(m.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(m.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)

	timeout := m.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	m.db, m.sqlDB = db, sqlDB
	m.logger.Info("Database connected", "type", m.config.NormalizedType(), "target", m.config.Target())
	return nil
}

func (m *Manager) open() (*sql.DB, *bun.DB, error) {
	dsn, err := m.config.DSN()
	if err != nil {
		return nil, nil, err
	}

	var (
		sqlDB *sql.DB
		db    *bun.DB
	)
	switch m.config.NormalizedType() {
	case TypePostgres:
		if sqlDB, err = sql.Open("postgres", dsn); err != nil {
			return nil, nil, err
		}
		db = bun.NewDB(sqlDB, pgdialect.New())
	case TypeMySQL:
		if sqlDB, err = sql.Open("mysql", dsn); err != nil {
			return nil, nil, err
		}
		db = bun.NewDB(sqlDB, mysqldialect.New())
	case TypeSQLite:
		if sqlDB, err = sql.Open(sqliteshim.ShimName, dsn); err != nil {
			return nil, nil, err
		}
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedDatabase, m.config.Type)
	}

	if m.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.WithWriter(os.Stderr),
		))
	}
	db.AddQueryHook(NewQueryHook(m.logger, m.config.SlowQueryTime, m.config.ColorLogs))
	return sqlDB, db, nil
}

// Disconnect closes the pool. It is safe to call more than once.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.sqlDB = nil, nil
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	m.logger.Info("Database connection closed")
	return nil
}

func (m *Manager) Ping(ctx context.Context) error {
	db := m.DB()
	if db == nil {
		return ErrNotConnected
	}
	return db.PingContext(ctx)
}

// DB returns the bun handle, or nil when not connected.
func (m *Manager) DB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *Manager) Connected() bool {
	return m.DB() != nil
}

func (m *Manager) Config() *ConnectionConfig { return m.config }

func (m *Manager) Logger() Logger { return m.logger }

// Stats reports pool statistics; zero values when not connected.
func (m *Manager) Stats() sql.DBStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sqlDB == nil {
		return sql.DBStats{}
	}
	return m.sqlDB.Stats()
}
