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

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/scholar/config"
	"github.com/tomoncle/scholar/health"
	"github.com/tomoncle/scholar/model"
	"github.com/tomoncle/scholar/utils"
	"github.com/uptrace/bun"
)

const msgEndpointNotFound = "Endpoint not found"

// Server wires routes and middleware onto an echo instance.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logrus.Logger
}

// errorBody is rendered under the "error" key of every failed response.
type errorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Stack   string `json:"stack,omitempty"`
}

// panicError carries the stack of a recovered panic to the error handler.
type panicError struct {
	err   error
	stack []byte
}

func (e *panicError) Error() string { return e.err.Error() }

func (e *panicError) Unwrap() error { return e.err }

// NewServer builds the HTTP server over db. db must already be connected.
func NewServer(cfg *config.Config, db *bun.DB, reporter *health.Reporter, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	model.Register(db)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, cfg: cfg, logger: logger}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.WithFields(logrus.Fields{
				"req_method": c.Request().Method,
				"req_uri":    c.Request().RequestURI,
			}).WithError(err).Error("Recovered from panic")
			return &panicError{err: err, stack: stack}
		},
	}))
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogLatency:   true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"req_method":   v.Method,
				"req_uri":      v.URI,
				"client_ip":    v.RemoteIP,
				"status_code":  v.Status,
				"latency_time": utils.Since(v.StartTime),
				"request_id":   v.RequestID,
			})
			switch {
			case v.Status >= http.StatusInternalServerError:
				entry.Error("Request failed")
			case v.Status >= http.StatusBadRequest:
				entry.Warn("Request rejected")
			default:
				entry.Info("Request completed")
			}
			return nil
		},
	}))

	h := NewHandler(db, reporter, cfg.Version)
	e.GET("/", h.Index)

	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/fields", h.ListFields)
	g.GET("/fields/:code", h.GetField)
	g.GET("/lecturers", h.ListLecturers)
	g.GET("/students", h.ListStudents)

	return s
}

// Echo exposes the underlying instance, mostly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.echo.ServeHTTP(w, r) }

// Start listens on addr and blocks. http.ErrServerClosed is returned after
// Shutdown.
func (s *Server) Start(addr string) error { return s.echo.Start(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

// handleError renders every error as {"error":{"message","status"}}. Stacks
// and internal messages are only shown outside production.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	production := s.cfg.IsProduction()
	body := errorBody{
		Status:  http.StatusInternalServerError,
		Message: http.StatusText(http.StatusInternalServerError),
	}

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		body.Status = he.Code
		if he == echo.ErrNotFound {
			body.Message = msgEndpointNotFound
		} else {
			body.Message = fmt.Sprint(he.Message)
		}
	case !production:
		body.Message = err.Error()
	}

	var pe *panicError
	if errors.As(err, &pe) && !production {
		body.Stack = string(pe.stack)
	}

	if body.Status >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"req_method":  c.Request().Method,
			"req_uri":     c.Request().RequestURI,
			"status_code": body.Status,
		}).WithError(err).Error("Request error")
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(body.Status)
	} else {
		writeErr = c.JSON(body.Status, echo.Map{"error": body})
	}
	if writeErr != nil {
		s.logger.WithError(writeErr).Error("Failed to write error response")
	}
}
