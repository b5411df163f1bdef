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
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sqliteSchema = "../testdata/schema_sqlite.sql"

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

// recordLogger keeps every entry for assertions.
type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordLogger) add(level, msg string, kv []interface{}) {
	fields := make(map[string]interface{})
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (r *recordLogger) Debug(msg string, kv ...interface{}) { r.add("debug", msg, kv) }
func (r *recordLogger) Info(msg string, kv ...interface{})  { r.add("info", msg, kv) }
func (r *recordLogger) Warn(msg string, kv ...interface{})  { r.add("warn", msg, kv) }
func (r *recordLogger) Error(msg string, kv ...interface{}) { r.add("error", msg, kv) }

func (r *recordLogger) levels(msg string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.msg == msg {
			out = append(out, e.level)
		}
	}
	return out
}

func sqliteConfig(t *testing.T) *ConnectionConfig {
	t.Helper()
	return &ConnectionConfig{
		Type:           TypeSQLite,
		DBName:         filepath.Join(t.TempDir(), "scholar"),
		MaxIdleConns:   1,
		MaxOpenConns:   1,
		ConnectTimeout: 5 * time.Second,
	}
}

func openSQLite(t *testing.T, logger Logger) *Manager {
	t.Helper()
	m := NewManager(sqliteConfig(t), logger)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Disconnect() })
	return m
}
