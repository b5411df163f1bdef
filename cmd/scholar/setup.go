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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tomoncle/scholar/bootstrap"
	"github.com/tomoncle/scholar/database"
	"github.com/tomoncle/scholar/seed"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the schema and seed reference data",
	Long: `Connect to the configured database, apply the schema file when none of
the core tables exist, seed fields, lecturers and their qualifications when
the fields table is empty, then report row counts.

Running setup twice is safe: the second run changes nothing.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := cfg.StatementErrorPolicy()
	if err != nil {
		return err
	}
	catalog, err := seed.LoadCatalog(cfg.Seed.Catalog)
	if err != nil {
		return err
	}

	dbLogger := database.NewLogger(logger)
	manager := database.NewManager(cfg.ConnectionConfig(), dbLogger)
	report, err := bootstrap.New(manager, dbLogger, bootstrap.Options{
		SchemaPath:       cfg.Schema.Path,
		Catalog:          catalog,
		OnStatementError: policy,
	}).Run(ctx)
	if err != nil {
		return fmt.Errorf("database setup failed: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"fields":      report.Counts.Fields,
		"lecturers":   report.Counts.Lecturers,
		"assignments": report.Counts.Assignments,
		"duration":    report.Duration.String(),
	}).Info("Database setup complete")
	return nil
}
