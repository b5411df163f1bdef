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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tomoncle/scholar/config"
	"github.com/tomoncle/scholar/utils"
)

var (
	// cfg and logger are built once by PersistentPreRunE and shared with
	// every subcommand.
	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scholar",
	Short: "Student-lecturer assignment record service",
	Long: `scholar keeps the records of the student-lecturer matching system.

Configuration is read from the environment and an optional .env file.
"setup" creates the schema and seeds the reference data, "serve" runs the
HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger = utils.NewLogger("scholar", utils.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Color:  cfg.Log.Color,
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the command line and exits 1 on any error.
func Execute() {
	os.Exit(run(os.Args[1:]))
}

// run executes args and returns the process exit code.
func run(args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.WithError(err).Error("scholar failed")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}
