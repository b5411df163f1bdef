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
	"database/sql"
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var (
	selectColor = color.New(color.FgGreen)
	insertColor = color.New(color.FgBlue)
	updateColor = color.New(color.FgYellow)
	deleteColor = color.New(color.FgMagenta)
	otherColor  = color.New(color.FgRed)
	slowColor   = color.New(color.BgYellow, color.FgHiWhite)
)

// QueryHook reports failed and slow queries through Logger. Failures go to
// debug since callers decide whether an error matters; slow queries warn.
type QueryHook struct {
	logger   Logger
	slowTime time.Duration
	colored  bool
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a hook; slowTime <= 0 disables slow query reports.
// colored adds ANSI colors to labels and must stay off for JSON logs.
func NewQueryHook(logger Logger, slowTime time.Duration, colored bool) *QueryHook {
	if logger == nil {
		logger = NopLogger()
	}
	return &QueryHook{logger: logger, slowTime: slowTime, colored: colored}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	if event.Err != nil {
		if errors.Is(event.Err, sql.ErrNoRows) || errors.Is(event.Err, sql.ErrTxDone) {
			return
		}
		h.logger.Debug("Query failed",
			"operation", h.operationLabel(event.Operation()),
			"duration", duration.Round(time.Microsecond),
			"kind", ClassifyError(event.Err).String(),
			"error", event.Err,
		)
		return
	}

	if h.slowTime > 0 && duration > h.slowTime {
		h.logger.Warn(h.paint(slowColor, "slow query"),
			"duration", duration.Round(time.Microsecond),
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
	}
}

func (h *QueryHook) operationLabel(op string) string {
	switch op {
	case "SELECT":
		return h.paint(selectColor, op)
	case "INSERT":
		return h.paint(insertColor, op)
	case "UPDATE":
		return h.paint(updateColor, op)
	case "DELETE":
		return h.paint(deleteColor, op)
	default:
		return h.paint(otherColor, op)
	}
}

func (h *QueryHook) paint(c *color.Color, s string) string {
	if !h.colored {
		return s
	}
	return c.Sprint(s)
}
