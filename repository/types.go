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

package repository

import (
	"context"
	"errors"

	"github.com/tomoncle/scholar/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var ErrNotFound = errors.New("record not found")

// QueryOption customises a select before it runs, e.g. to load relations.
type QueryOption func(*bun.SelectQuery) *bun.SelectQuery

// ReadRepository defines read operations for a generic entity type.
type ReadRepository[T any] interface {
	// GetOne returns the entity whose column equals value, or ErrNotFound.
	GetOne(ctx context.Context, column string, value any, opts ...QueryOption) (*T, error)

	GetAll(ctx context.Context, opts ...QueryOption) ([]*T, error)

	List(ctx context.Context, filter *types.QueryFilter, opts ...QueryOption) ([]*T, error)

	Count(ctx context.Context, filter *types.QueryFilter) (int, error)

	// ResolveIDs maps natural keys held in column to primary keys. Keys that
	// do not exist are absent from the result.
	ResolveIDs(ctx context.Context, column string, keys []string) (map[string]int64, error)
}

// WriteRepository defines insert operations.
type WriteRepository[T any] interface {
	Create(ctx context.Context, entity ...*T) error

	// InsertIgnore inserts entities and silently skips rows that collide on
	// conflictKeys. It returns the number of rows actually inserted.
	InsertIgnore(ctx context.Context, conflictKeys []string, entity ...*T) (int64, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest, opts ...QueryOption) (*types.Pagination[T], error)
}

// Repository combines reads, writes and pagination and exposes the select
// builder for advanced use cases.
type Repository[T any] interface {
	ReadRepository[T]
	WriteRepository[T]
	PageQueryRepository[T]
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
}
