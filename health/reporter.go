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

// Package health reports database readiness and service configuration.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tomoncle/scholar/database"
	"github.com/uptrace/bun"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	DatabaseConnected    = "connected"
	DatabaseDisconnected = "disconnected"
)

// KoboConfig holds the survey sync credentials. Only presence is reported.
type KoboConfig struct {
	APIURL  string
	Token   string
	FormUID string
}

// Configured is true when every credential is set.
func (k KoboConfig) Configured() bool {
	return strings.TrimSpace(k.APIURL) != "" &&
		strings.TrimSpace(k.Token) != "" &&
		strings.TrimSpace(k.FormUID) != ""
}

type Options struct {
	Environment string
	Version     string
	Kobo        KoboConfig
	// Timeout bounds one probe; zero means five seconds.
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker; zero means 3.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open; zero means 30 seconds.
	OpenTimeout time.Duration
}

type KoboStatus struct {
	Configured bool `json:"configured"`
}

type Services struct {
	Kobo KoboStatus `json:"kobo"`
}

// Status is the health document. Success and failure share the type; the
// fields that do not apply are omitted.
type Status struct {
	Status      string                `json:"status"`
	Timestamp   string                `json:"timestamp"`
	Environment string                `json:"environment,omitempty"`
	Database    string                `json:"database"`
	Version     string                `json:"version,omitempty"`
	Stats       *database.TableCounts `json:"stats,omitempty"`
	Services    *Services             `json:"services,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// Reporter probes the database through a circuit breaker so a dead database
// does not stall every caller for the full timeout.
type Reporter struct {
	db      *bun.DB
	logger  database.Logger
	opts    Options
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewReporter(db *bun.DB, logger database.Logger, opts Options) *Reporter {
	if logger == nil {
		logger = database.NopLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 3
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	threshold := opts.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "health-db",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		// A probe aborted by its caller says nothing about the database.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Health breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Reporter{db: db, logger: logger, opts: opts, breaker: breaker, now: time.Now}
}

// Check probes the database and returns the HTTP status code with the
// document to render. It never panics.
func (r *Reporter) Check(ctx context.Context) (code int, status *Status) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Health check panicked", "panic", p)
			code, status = r.unhealthy(fmt.Errorf("health check panicked: %v", p))
		}
	}()

	res, err := r.breaker.Execute(func() (interface{}, error) {
		return r.probe(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("circuit open, database probe suspended: %w", err)
		}
		r.logger.Error("Health check failed", "error", err)
		return r.unhealthy(err)
	}

	return http.StatusOK, &Status{
		Status:      StatusHealthy,
		Timestamp:   r.timestamp(),
		Environment: r.opts.Environment,
		Database:    DatabaseConnected,
		Version:     r.opts.Version,
		Stats:       res.(*database.TableCounts),
		Services:    &Services{Kobo: KoboStatus{Configured: r.opts.Kobo.Configured()}},
	}
}

// probe uses one dedicated connection: ping, then a single count query.
func (r *Reporter) probe(ctx context.Context) (*database.TableCounts, error) {
	if r.db == nil {
		return nil, database.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}
	return database.NewInspector(conn, r.db.Dialect().Name()).Counts(ctx)
}

func (r *Reporter) unhealthy(err error) (int, *Status) {
	return http.StatusServiceUnavailable, &Status{
		Status:    StatusUnhealthy,
		Timestamp: r.timestamp(),
		Database:  DatabaseDisconnected,
		Error:     err.Error(),
	}
}

func (r *Reporter) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}
