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
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tomoncle/scholar"
	"github.com/tomoncle/scholar/health"
	"github.com/tomoncle/scholar/model"
	"github.com/tomoncle/scholar/repository"
	"github.com/tomoncle/scholar/types"
	"github.com/uptrace/bun"
)

const serviceName = "Student-Lecturer Matching System API"

type Handler struct {
	fields    scholar.Service[model.Field]
	lecturers scholar.Service[model.Lecturer]
	students  scholar.Service[model.Student]
	reporter  *health.Reporter
	version   string
}

func NewHandler(db bun.IDB, reporter *health.Reporter, version string) *Handler {
	return &Handler{
		fields:    scholar.NewService[model.Field](db),
		lecturers: scholar.NewService[model.Lecturer](db),
		students:  scholar.NewService[model.Student](db),
		reporter:  reporter,
		version:   version,
	}
}

// pageResponse is the envelope of every listing.
type pageResponse[T any] struct {
	Items      []*T `json:"items"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
}

func newPageResponse[T any](p *types.Pagination[T]) pageResponse[T] {
	return pageResponse[T]{
		Items:      p.Items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages(),
	}
}

func (h *Handler) Index(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": serviceName,
		"version": h.version,
		"endpoints": echo.Map{
			"health":    "/api/health",
			"fields":    "/api/fields",
			"lecturers": "/api/lecturers",
			"students":  "/api/students",
		},
	})
}

func (h *Handler) Health(c echo.Context) error {
	if h.reporter == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "health reporter not configured")
	}
	code, status := h.reporter.Check(c.Request().Context())
	return c.JSON(code, status)
}

// ListFields GET /api/fields
func (h *Handler) ListFields(c echo.Context) error {
	page, size, err := pageParams(c)
	if err != nil {
		return err
	}
	res, err := h.fields.Page(c.Request().Context(), types.NewPageRequestWithOrders(page, size, "f.code ASC"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newPageResponse(res))
}

// GetField GET /api/fields/:code
func (h *Handler) GetField(c echo.Context) error {
	field, err := h.fields.Get(c.Request().Context(), "code", c.Param("code"))
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Field not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, field)
}

// ListLecturers GET /api/lecturers, each with the fields they supervise.
func (h *Handler) ListLecturers(c echo.Context) error {
	page, size, err := pageParams(c)
	if err != nil {
		return err
	}
	res, err := h.lecturers.Page(
		c.Request().Context(),
		types.NewPageRequestWithOrders(page, size, "l.name ASC"),
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Relation("Fields", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("f.code ASC")
			})
		},
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newPageResponse(res))
}

// ListStudents GET /api/students?field_id=&status=
func (h *Handler) ListStudents(c echo.Context) error {
	page, size, err := pageParams(c)
	if err != nil {
		return err
	}

	var filter *types.QueryFilter
	if raw := c.QueryParam("field_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "field_id must be a positive integer")
		}
		filter = types.NewQueryFilter("s.field_id = ?", id)
	}
	if status := c.QueryParam("status"); status != "" {
		if status != model.StudentPending && status != model.StudentAssigned {
			return echo.NewHTTPError(http.StatusBadRequest, "status must be pending or assigned")
		}
		if filter == nil {
			filter = types.NewQueryFilter("s.status = ?", status)
		} else {
			filter = types.NewQueryFilter(filter.Schema+" AND s.status = ?", append(filter.Args, status)...)
		}
	}

	res, err := h.students.Page(
		c.Request().Context(),
		types.NewPageRequest(page, size, filter, []string{"s.id ASC"}),
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Relation("Field").Relation("Lecturer")
		},
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newPageResponse(res))
}

// pageParams reads ?page= and ?page_size=. Missing values fall back to the
// defaults; oversized pages are clamped by the page request.
func pageParams(c echo.Context) (int, int, error) {
	page, err := intParam(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	size, err := intParam(c, "page_size", types.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return n, nil
}
