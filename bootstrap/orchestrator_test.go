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

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/scholar/database"
	"github.com/tomoncle/scholar/seed"
	"github.com/uptrace/bun"
)

const sqliteSchema = "../testdata/schema_sqlite.sql"

func sqliteConfig(name string) *database.ConnectionConfig {
	return &database.ConnectionConfig{
		Type:           database.TypeSQLite,
		DBName:         name,
		MaxIdleConns:   1,
		MaxOpenConns:   1,
		ConnectTimeout: 5 * time.Second,
	}
}

func defaultCatalog(t *testing.T) *seed.Catalog {
	t.Helper()
	c, err := seed.DefaultCatalog()
	require.NoError(t, err)
	return c
}

func runOnce(t *testing.T, dbName string, opts Options) (*Report, *database.Manager, error) {
	t.Helper()
	m := database.NewManager(sqliteConfig(dbName), nil)
	report, err := New(m, nil, opts).Run(context.Background())
	return report, m, err
}

func TestFirstRunCreatesAndSeeds(t *testing.T) {
	dbName := filepath.Join(t.TempDir(), "boot")
	report, m, err := runOnce(t, dbName, Options{SchemaPath: sqliteSchema, Catalog: defaultCatalog(t)})
	require.NoError(t, err)

	assert.Equal(t, []State{
		Disconnected, Connected, SchemaChecked, SchemaApplied,
		DataChecked, DataPopulated, Verified, Closed,
	}, report.States)
	assert.Empty(t, report.ExistingTables)
	require.NotNil(t, report.Schema)
	assert.Equal(t, 7, report.Schema.Applied)
	assert.Zero(t, report.Schema.Failed)
	require.NotNil(t, report.Seed)
	assert.EqualValues(t, 102, report.Seed.Qualifications)
	assert.Equal(t, Counts{Fields: 50, Lecturers: 30, Assignments: 102}, report.Counts)
	assert.False(t, m.Connected(), "connection released")
}

func TestSecondRunIsIdempotent(t *testing.T) {
	dbName := filepath.Join(t.TempDir(), "boot")
	opts := Options{SchemaPath: sqliteSchema, Catalog: defaultCatalog(t)}

	first, _, err := runOnce(t, dbName, opts)
	require.NoError(t, err)
	second, m, err := runOnce(t, dbName, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Counts, second.Counts)
	assert.True(t, second.Visited(SchemaSkipped))
	assert.True(t, second.Visited(DataSkipped))
	assert.False(t, second.Visited(SchemaApplied))
	assert.Nil(t, second.Schema)
	assert.Nil(t, second.Seed)
	assert.ElementsMatch(t, database.CoreTables, second.ExistingTables)
	assert.Equal(t, Closed, second.Final())

	require.NoError(t, m.Connect(context.Background()))
	defer m.Disconnect()

	var generalistFields []int64
	err = m.DB().NewSelect().
		TableExpr("lecturer_fields AS lf").
		ColumnExpr("COUNT(*)").
		Join("JOIN lecturers AS l ON l.id = lf.lecturer_id").
		Where("l.email IN (?)", bun.In([]string{
			"a.manu@university.edu", "k.asiedu@university.edu", "a.ofori@university.edu",
			"k.amponsah@university.edu", "e.adjei@university.edu",
		})).
		GroupExpr("lf.lecturer_id").
		Scan(context.Background(), &generalistFields)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 7, 7, 7, 7}, generalistFields)
}

func TestMissingSchemaFileIsFatal(t *testing.T) {
	dbName := filepath.Join(t.TempDir(), "boot")
	report, m, err := runOnce(t, dbName, Options{
		SchemaPath: filepath.Join(t.TempDir(), "missing.sql"),
		Catalog:    defaultCatalog(t),
	})
	require.Error(t, err)
	assert.Equal(t, Closed, report.Final())
	assert.False(t, report.Visited(SchemaApplied))
	assert.False(t, m.Connected())

	require.NoError(t, m.Connect(context.Background()))
	defer m.Disconnect()
	tables, err := database.NewDBInspector(m.DB()).ExistingTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables, "nothing executed")
}

func TestAbortPolicyStopsRun(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "broken.sql")
	require.NoError(t, os.WriteFile(schema, []byte("CREATE TABLE fields (id INTEGER);\nCREATE TABL oops;\n"), 0o600))

	report, m, err := runOnce(t, filepath.Join(t.TempDir(), "boot"), Options{
		SchemaPath:       schema,
		Catalog:          defaultCatalog(t),
		OnStatementError: database.StatementErrorAbort,
	})
	require.Error(t, err)
	assert.Equal(t, 1, report.Schema.Failed)
	assert.False(t, report.Visited(DataChecked))
	assert.Equal(t, Closed, report.Final())
	assert.False(t, m.Connected())
}

func TestConnectFailure(t *testing.T) {
	m := database.NewManager(&database.ConnectionConfig{Type: "oracle"}, nil)
	report, err := New(m, nil, Options{Catalog: defaultCatalog(t)}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []State{Disconnected, Closed}, report.States)
	assert.Equal(t, Closed, report.Final())
	assert.False(t, m.Connected())
}

func TestRunRequiresCatalog(t *testing.T) {
	_, err := New(database.NewManager(nil, nil), nil, Options{}).Run(context.Background())
	assert.Error(t, err)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, SchemaChecked.CanTransition(SchemaApplied))
	assert.True(t, SchemaChecked.CanTransition(SchemaSkipped))
	assert.False(t, SchemaChecked.CanTransition(DataPopulated))
	assert.True(t, DataChecked.CanTransition(Closed))
	assert.False(t, Closed.CanTransition(Closed))

	assert.Len(t, States(), 10)
	assert.Equal(t, "schema_applied", SchemaApplied.String())
	assert.Equal(t, "unknown", State(42).Name())
	assert.Equal(t, -1, State(-1).Number())
}
