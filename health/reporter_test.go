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

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/scholar/database"
	"github.com/uptrace/bun"
)

func newManager(t *testing.T) *database.Manager {
	t.Helper()
	m := database.NewManager(&database.ConnectionConfig{
		Type:           database.TypeSQLite,
		DBName:         filepath.Join(t.TempDir(), "health"),
		MaxIdleConns:   1,
		MaxOpenConns:   1,
		ConnectTimeout: 5 * time.Second,
	}, nil)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Disconnect() })
	return m
}

func schemaDB(t *testing.T) *bun.DB {
	t.Helper()
	m := newManager(t)
	_, err := database.NewSchemaLoader(m.DB(), nil, database.StatementErrorAbort).
		LoadFile(context.Background(), "../testdata/schema_sqlite.sql")
	require.NoError(t, err)
	return m.DB()
}

func fixedClock(r *Reporter) {
	r.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
}

func TestHealthyWithEmptyTables(t *testing.T) {
	r := NewReporter(schemaDB(t), nil, Options{Environment: "test", Version: "1.0.0"})
	fixedClock(r)

	code, status := r.Check(context.Background())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, DatabaseConnected, status.Database)
	assert.Equal(t, "2025-03-01T12:00:00Z", status.Timestamp)
	assert.Equal(t, &database.TableCounts{}, status.Stats)
	assert.False(t, status.Services.Kobo.Configured)

	b, err := json.Marshal(status)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, "test", doc["environment"])
	assert.Equal(t, "1.0.0", doc["version"])
	assert.NotContains(t, doc, "error")
	stats := doc["stats"].(map[string]interface{})
	for _, key := range []string{"fields", "lecturers", "students", "fieldAssignments"} {
		assert.EqualValues(t, 0, stats[key], key)
	}
	assert.Equal(t, map[string]interface{}{"kobo": map[string]interface{}{"configured": false}}, doc["services"])
}

func TestHealthyCountsRows(t *testing.T) {
	db := schemaDB(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, "INSERT INTO fields (code, name) VALUES ('a', 'A'), ('b', 'B')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO students (name, field_id) VALUES ('Kojo', 1)")
	require.NoError(t, err)

	code, status := NewReporter(db, nil, Options{}).Check(ctx)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, database.TableCounts{Fields: 2, Students: 1}, *status.Stats)
}

func TestKoboConfigured(t *testing.T) {
	assert.False(t, KoboConfig{}.Configured())
	assert.False(t, KoboConfig{APIURL: "https://kf.example.org", Token: "t"}.Configured())
	assert.False(t, KoboConfig{APIURL: "https://kf.example.org", Token: " ", FormUID: "f"}.Configured())
	assert.True(t, KoboConfig{APIURL: "https://kf.example.org", Token: "t", FormUID: "f"}.Configured())

	r := NewReporter(schemaDB(t), nil, Options{Kobo: KoboConfig{APIURL: "u", Token: "t", FormUID: "f"}})
	_, status := r.Check(context.Background())
	assert.True(t, status.Services.Kobo.Configured)
}

func TestUnhealthyWhenDatabaseClosed(t *testing.T) {
	m := newManager(t)
	db := m.DB()
	require.NoError(t, m.Disconnect())

	code, status := NewReporter(db, nil, Options{Environment: "test"}).Check(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, DatabaseDisconnected, status.Database)
	assert.NotEmpty(t, status.Error)
	assert.Nil(t, status.Stats)
	assert.Nil(t, status.Services)
	assert.Empty(t, status.Environment)
}

func TestUnhealthyWithoutSchema(t *testing.T) {
	code, status := NewReporter(newManager(t).DB(), nil, Options{}).Check(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, status.Error, "no such table")
}

func TestUnhealthyWithoutDatabase(t *testing.T) {
	code, status := NewReporter(nil, nil, Options{}).Check(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, database.ErrNotConnected.Error(), status.Error)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	r := NewReporter(nil, nil, Options{FailureThreshold: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		code, _ := r.Check(context.Background())
		require.Equal(t, http.StatusServiceUnavailable, code)
	}
	code, status := r.Check(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, status.Error, "circuit open")
}

func TestCancelledChecksDoNotOpenBreaker(t *testing.T) {
	r := NewReporter(schemaDB(t), nil, Options{FailureThreshold: 2, OpenTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		code, status := r.Check(ctx)
		require.Equal(t, http.StatusServiceUnavailable, code)
		assert.NotContains(t, status.Error, "circuit open")
	}

	code, status := r.Check(context.Background())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, status.Status)
}
