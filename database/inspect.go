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

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// CoreTables are the tables the service cannot run without.
var CoreTables = []string{"fields", "lecturers", "students", "lecturer_fields", "assignment_logs"}

// TableCounts holds row counts of the main tables.
type TableCounts struct {
	Fields         int64 `json:"fields"`
	Lecturers      int64 `json:"lecturers"`
	Students       int64 `json:"students"`
	LecturerFields int64 `json:"fieldAssignments"`
}

// Inspector reads catalog information and row counts. conn may be a *bun.DB
// or a single bun.Conn.
type Inspector struct {
	conn    bun.IConn
	dialect dialect.Name
}

func NewInspector(conn bun.IConn, name dialect.Name) *Inspector {
	return &Inspector{conn: conn, dialect: name}
}

// NewDBInspector inspects through db, a pool or a single connection.
func NewDBInspector(db bun.IDB) *Inspector {
	return NewInspector(db, db.Dialect().Name())
}

// ExistingTables returns which of names exist in the current schema.
func (i *Inspector) ExistingTables(ctx context.Context, names ...string) ([]string, error) {
	if len(names) == 0 {
		names = CoreTables
	}

	var query string
	switch i.dialect {
	case dialect.PG:
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name IN (?)"
	case dialect.MySQL:
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name IN (?)"
	case dialect.SQLite:
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name IN (?)"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabase, i.dialect)
	}

	rows, err := i.conn.QueryContext(ctx, query, bun.In(names))
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		found = append(found, name)
	}
	return found, rows.Err()
}

// Count returns the number of rows in table.
func (i *Inspector) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := i.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM ?", bun.Ident(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Counts gathers all table counts with a single round trip.
func (i *Inspector) Counts(ctx context.Context) (*TableCounts, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM fields) AS fields,
	(SELECT COUNT(*) FROM lecturers) AS lecturers,
	(SELECT COUNT(*) FROM students) AS students,
	(SELECT COUNT(*) FROM lecturer_fields) AS lecturer_fields`

	var c TableCounts
	if err := i.conn.QueryRowContext(ctx, query).Scan(&c.Fields, &c.Lecturers, &c.Students, &c.LecturerFields); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return &c, nil
}
