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
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripRemovesConnectLines(t *testing.T) {
	text := "\\c scholar\n\\connect other\n\\copy fields FROM 'x.csv'\nCREATE TABLE t (id int);"
	out := Strip(text)

	assert.NotContains(t, out, `\c scholar`)
	assert.NotContains(t, out, `\connect`)
	assert.Contains(t, out, `\copy fields`)
	assert.Contains(t, out, "CREATE TABLE t (id int);")
}

func TestSplit(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"plain", "SELECT 1; SELECT 2;", []string{"SELECT 1", "SELECT 2"}},
		{"no terminator", "SELECT 1;\nSELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"blank fragments", ";;  ;\n SELECT 1 ;;", []string{"SELECT 1"}},
		{"quoted semicolon", "INSERT INTO t VALUES ('a;b'); SELECT 'it''s;'", []string{"INSERT INTO t VALUES ('a;b')", "SELECT 'it''s;'"}},
		{"quoted identifier", `SELECT "odd;name" FROM t;`, []string{`SELECT "odd;name" FROM t`}},
		{"line comment", "-- setup; first\nSELECT 1; -- trailing; note\n", []string{"SELECT 1"}},
		{"block comment", "/* a; b */ SELECT 1;", []string{"SELECT 1"}},
		{
			"dollar quoted",
			"CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END; $$ LANGUAGE plpgsql; SELECT 2;",
			[]string{"CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END; $$ LANGUAGE plpgsql", "SELECT 2"},
		},
		{
			"tagged dollar quote",
			"DO $body$ BEGIN PERFORM 1; END $body$; SELECT 3",
			[]string{"DO $body$ BEGIN PERFORM 1; END $body$", "SELECT 3"},
		},
		{"positional parameter", "SELECT $1; SELECT 2", []string{"SELECT $1", "SELECT 2"}},
		{"only comments", "-- nothing here\n/* or here */", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Split(tc.text))
		})
	}
}

func TestStatementsDropCreateDatabase(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			"statement",
			"CREATE DATABASE scholar\n  WITH ENCODING 'UTF8';\n\\c scholar\nCREATE TABLE t (id int);",
			[]string{"CREATE TABLE t (id int)"},
		},
		{
			"lower case",
			"create   database scholar; SELECT 1;",
			[]string{"SELECT 1"},
		},
		{
			"mentioned in a comment",
			"-- run CREATE DATABASE scholar by hand first\nCREATE TABLE fields (id INTEGER);\nCREATE TABLE lecturers (id INTEGER);\n",
			[]string{"CREATE TABLE fields (id INTEGER)", "CREATE TABLE lecturers (id INTEGER)"},
		},
		{
			"mentioned in a block comment",
			"/* CREATE DATABASE x */ CREATE TABLE a (id int);",
			[]string{"CREATE TABLE a (id int)"},
		},
		{
			"mentioned in a literal",
			"INSERT INTO notes VALUES ('see CREATE DATABASE docs; then run');",
			[]string{"INSERT INTO notes VALUES ('see CREATE DATABASE docs; then run')"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Statements(tc.text))
		})
	}
}

func TestApplyKeepsTableAfterCommentedCreateDatabase(t *testing.T) {
	m := openSQLite(t, nil)
	ctx := context.Background()

	text := "-- run CREATE DATABASE scholar by hand first\n" +
		"CREATE TABLE fields (id INTEGER PRIMARY KEY);\n" +
		"CREATE TABLE lecturers (id INTEGER PRIMARY KEY);\n"
	result, err := NewSchemaLoader(m.DB(), nil, StatementErrorAbort).Apply(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)

	tables, err := NewDBInspector(m.DB()).ExistingTables(ctx, "fields", "lecturers")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fields", "lecturers"}, tables)
}

func TestSplitProductionSchema(t *testing.T) {
	text, err := readFile("../configs/sql/schema.sql")
	require.NoError(t, err)

	statements := Statements(text)
	for _, stmt := range statements {
		assert.NotContains(t, strings.ToUpper(stmt), "CREATE DATABASE")
		assert.False(t, strings.HasPrefix(stmt, `\c`))
	}

	var function string
	for _, stmt := range statements {
		if strings.Contains(stmt, "FUNCTION touch_updated_at()") && strings.HasPrefix(stmt, "CREATE OR REPLACE") {
			function = stmt
		}
	}
	require.NotEmpty(t, function)
	assert.Contains(t, function, "RETURN NEW;")
	assert.True(t, strings.HasSuffix(function, "LANGUAGE plpgsql"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "CREATE TABLE t (id int)", Preview("CREATE TABLE t\n   (id int)"))

	long := Preview(strings.Repeat("x", 150))
	assert.Equal(t, strings.Repeat("x", previewLength)+"...", long)
}

func TestParseOnStatementError(t *testing.T) {
	p, err := ParseOnStatementError("")
	require.NoError(t, err)
	assert.Equal(t, StatementErrorContinue, p)

	p, err = ParseOnStatementError(" ABORT ")
	require.NoError(t, err)
	assert.Equal(t, StatementErrorAbort, p)
	assert.Equal(t, 1, p.Number())

	_, err = ParseOnStatementError("retry")
	assert.Error(t, err)
	assert.False(t, OnStatementError(7).IsValid())
}

func TestLoadFileAppliesSchema(t *testing.T) {
	log := &recordLogger{}
	m := openSQLite(t, log)
	ctx := context.Background()

	result, err := NewSchemaLoader(m.DB(), log, StatementErrorContinue).LoadFile(ctx, sqliteSchema)
	require.NoError(t, err)
	assert.Equal(t, sqliteSchema, result.Path)
	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 7, result.Applied)
	assert.Zero(t, result.Failed)

	tables, err := NewDBInspector(m.DB()).ExistingTables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, CoreTables, tables)
}

func TestReapplyContinuesAndWarns(t *testing.T) {
	log := &recordLogger{}
	m := openSQLite(t, log)
	ctx := context.Background()
	loader := NewSchemaLoader(m.DB(), log, StatementErrorContinue)

	_, err := loader.LoadFile(ctx, sqliteSchema)
	require.NoError(t, err)

	result, err := loader.LoadFile(ctx, sqliteSchema)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Failed)
	assert.Zero(t, result.Applied)
	for _, se := range result.Errors {
		assert.True(t, se.Kind.AlreadyExists(), se.Error())
		assert.LessOrEqual(t, len([]rune(se.Preview)), previewLength+3)
	}
	assert.Len(t, log.levels("Schema statement skipped"), 7)
	assert.Empty(t, log.levels("Schema statement failed"))
}

func TestApplyErrorPolicies(t *testing.T) {
	script := "CREATE TABLE a (id INTEGER);\nCREATE TABL broken (id INTEGER);\nCREATE TABLE b (id INTEGER);"
	ctx := context.Background()

	t.Run("continue", func(t *testing.T) {
		log := &recordLogger{}
		m := openSQLite(t, log)

		result, err := NewSchemaLoader(m.DB(), log, StatementErrorContinue).Apply(ctx, script)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 2, result.Applied)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, 2, result.Errors[0].Index)
		assert.Equal(t, []string{"error"}, log.levels("Schema statement failed"))

		tables, err := NewInspector(m.DB(), m.DB().Dialect().Name()).ExistingTables(ctx, "a", "b")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, tables)
	})

	t.Run("abort", func(t *testing.T) {
		log := &recordLogger{}
		m := openSQLite(t, log)

		result, err := NewSchemaLoader(m.DB(), log, StatementErrorAbort).Apply(ctx, script)
		require.Error(t, err)
		var se StatementError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 2, se.Index)
		assert.Equal(t, 1, result.Applied)

		tables, err := NewDBInspector(m.DB()).ExistingTables(ctx, "a", "b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, tables, "earlier statements are not rolled back")
	})
}

func TestLoadFileUnreadable(t *testing.T) {
	log := &recordLogger{}
	m := openSQLite(t, log)

	result, err := NewSchemaLoader(m.DB(), log, StatementErrorContinue).
		LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.sql"))
	assert.Error(t, err)
	assert.Nil(t, result)
}
