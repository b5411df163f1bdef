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
	"errors"
	"fmt"
	"time"

	"github.com/tomoncle/scholar/database"
	"github.com/tomoncle/scholar/seed"
)

// Options controls one bootstrap run.
type Options struct {
	SchemaPath       string
	Catalog          *seed.Catalog
	OnStatementError database.OnStatementError
}

// Counts are the verification figures of a run.
type Counts struct {
	Fields      int64 `json:"fields"`
	Lecturers   int64 `json:"lecturers"`
	Assignments int64 `json:"assignments"`
}

// Report describes what a run did.
type Report struct {
	States         []State
	ExistingTables []string
	Schema         *database.LoadResult
	Seed           *seed.Result
	Counts         Counts
	Duration       time.Duration
}

// Final is the last state reached.
func (r *Report) Final() State {
	if len(r.States) == 0 {
		return Disconnected
	}
	return r.States[len(r.States)-1]
}

// Visited reports whether the run passed through s.
func (r *Report) Visited(s State) bool {
	for _, v := range r.States {
		if v == s {
			return true
		}
	}
	return false
}

// Orchestrator runs the bootstrap state machine on one connection.
type Orchestrator struct {
	manager *database.Manager
	logger  database.Logger
	opts    Options
}

func New(manager *database.Manager, logger database.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = database.NopLogger()
	}
	return &Orchestrator{manager: manager, logger: logger, opts: opts}
}

type run struct {
	logger database.Logger
	report *Report
}

func (r *run) enter(s State) error {
	if cur := r.report.Final(); len(r.report.States) > 0 && !cur.CanTransition(s) {
		return fmt.Errorf("illegal bootstrap transition %s -> %s", cur, s)
	}
	r.report.States = append(r.report.States, s)
	r.logger.Debug("Bootstrap state", "state", s.Name(), "desc", s.Desc())
	return nil
}

// Run connects, applies the schema and seed data as needed, verifies the
// result and closes the connection. Any error aborts the run; the report
// still describes the states visited.
func (o *Orchestrator) Run(ctx context.Context) (report *Report, err error) {
	if o.opts.Catalog == nil {
		return nil, errors.New("bootstrap requires a seed catalog")
	}

	start := time.Now()
	r := &run{logger: o.logger, report: &Report{}}
	report = r.report
	_ = r.enter(Disconnected)

	if err = o.manager.Connect(ctx); err != nil {
		_ = r.enter(Closed)
		report.Duration = time.Since(start)
		o.logger.Error("Bootstrap failed", "state", Disconnected.Name(), "error", err)
		return report, err
	}
	defer func() {
		if cerr := o.manager.Disconnect(); cerr != nil && err == nil {
			err = cerr
		}
		_ = r.enter(Closed)
		report.Duration = time.Since(start)
		if err != nil {
			o.logger.Error("Bootstrap failed", "error", err, "duration", report.Duration.Round(time.Millisecond))
		}
	}()
	if err = r.enter(Connected); err != nil {
		return report, err
	}

	conn, err := o.manager.DB().Conn(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	inspector := database.NewDBInspector(conn)

	report.ExistingTables, err = inspector.ExistingTables(ctx, database.CoreTables...)
	if err != nil {
		return report, err
	}
	if err = r.enter(SchemaChecked); err != nil {
		return report, err
	}
	o.logger.Info("Existing tables", "found", len(report.ExistingTables), "expected", len(database.CoreTables))

	if len(report.ExistingTables) == 0 {
		loader := database.NewSchemaLoader(conn, o.logger, o.opts.OnStatementError)
		report.Schema, err = loader.LoadFile(ctx, o.opts.SchemaPath)
		if err != nil {
			return report, err
		}
		if err = r.enter(SchemaApplied); err != nil {
			return report, err
		}
	} else {
		if len(report.ExistingTables) < len(database.CoreTables) {
			o.logger.Warn("Schema is incomplete, not reapplying", "found", report.ExistingTables)
		}
		if err = r.enter(SchemaSkipped); err != nil {
			return report, err
		}
	}

	fields, err := inspector.Count(ctx, "fields")
	if err != nil {
		return report, err
	}
	if err = r.enter(DataChecked); err != nil {
		return report, err
	}

	if fields == 0 {
		o.logger.Info("No data found, populating catalog", "version", o.opts.Catalog.Version)
		report.Seed, err = seed.NewSeeder(conn, o.logger).Seed(ctx, o.opts.Catalog)
		if err != nil {
			return report, err
		}
		if err = r.enter(DataPopulated); err != nil {
			return report, err
		}
	} else {
		o.logger.Info("Data already exists", "fields", fields)
		if err = r.enter(DataSkipped); err != nil {
			return report, err
		}
	}

	for table, dst := range map[string]*int64{
		"fields":          &report.Counts.Fields,
		"lecturers":       &report.Counts.Lecturers,
		"lecturer_fields": &report.Counts.Assignments,
	} {
		if *dst, err = inspector.Count(ctx, table); err != nil {
			return report, err
		}
	}
	if err = r.enter(Verified); err != nil {
		return report, err
	}
	o.logger.Info("Database statistics",
		"fields", report.Counts.Fields,
		"lecturers", report.Counts.Lecturers,
		"field_assignments", report.Counts.Assignments,
	)
	return report, nil
}
