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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tomoncle/scholar/api"
	"github.com/tomoncle/scholar/database"
	"github.com/tomoncle/scholar/health"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Connect to the configured database and serve the HTTP API on PORT.

The process exits 1 when the database cannot be reached at startup. On
SIGINT or SIGTERM the server drains in-flight requests, then the database
connection is closed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbLogger := database.NewLogger(logger)
	manager := database.NewManager(cfg.ConnectionConfig(), dbLogger)
	if err := manager.Connect(ctx); err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer func() {
		if err := manager.Disconnect(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}()

	reporter := health.NewReporter(manager.DB(), dbLogger, cfg.HealthOptions())
	server := api.NewServer(cfg, manager.DB(), reporter, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fields := logrus.Fields{
		"port":        cfg.Port,
		"environment": cfg.Environment,
		"health":      fmt.Sprintf("http://localhost:%d/api/health", cfg.Port),
	}
	if cfg.Render {
		fields["hosting"] = "render"
	}
	logger.WithFields(fields).Info("Server listening")

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
