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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tomoncle/scholar/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db bun.IDB
}

// NewRepository returns a generic repository over db, which may be a *bun.DB,
// a bun.Conn or a bun.Tx.
func NewRepository[T any](db bun.IDB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db}
}

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func apply(q *bun.SelectQuery, opts []QueryOption) *bun.SelectQuery {
	for _, opt := range opts {
		if opt != nil {
			q = opt(q)
		}
	}
	return q
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, column string, value any, opts ...QueryOption) (*T, error) {
	var entity T
	q := r.db.NewSelect().Model(&entity).Where("?TableAlias.? = ?", bun.Ident(column), value).Limit(1)
	if err := apply(q, opts).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context, opts ...QueryOption) ([]*T, error) {
	entities := make([]*T, 0)
	err := apply(r.db.NewSelect().Model(&entities), opts).Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter, opts ...QueryOption) ([]*T, error) {
	entities := make([]*T, 0)
	query := r.db.NewSelect().Model(&entities)
	if filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	if err := apply(query, opts).Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	query := r.db.NewSelect().Model((*T)(nil))
	if filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	return query.Count(ctx)
}

func (r *baseRepositoryImpl[T]) ResolveIDs(ctx context.Context, column string, keys []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return ids, nil
	}
	var rows []struct {
		ID  int64  `bun:"id"`
		Key string `bun:"natural_key"`
	}
	err := r.db.NewSelect().
		Model((*T)(nil)).
		ColumnExpr("?TableAlias.id AS id").
		ColumnExpr("?TableAlias.? AS natural_key", bun.Ident(column)).
		Where("?TableAlias.? IN (?)", bun.Ident(column), bun.In(keys)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", column, err)
	}
	for _, row := range rows {
		ids[row.Key] = row.ID
	}
	return ids, nil
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest, opts ...QueryOption) (*types.Pagination[T], error) {
	var entities []*T
	query := r.db.NewSelect().Model(&entities)
	if pageRequest.GetFilter() != nil {
		query = query.Where(pageRequest.GetFilter().Schema, pageRequest.GetFilter().Args...)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	err = apply(query, opts).
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Order(pageRequest.GetOrders()...).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	if entities != nil {
		pagination.Items = entities
	}
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	if len(entity) == 0 {
		return nil
	}
	entities := append([]*T(nil), entity...)
	_, err := r.db.NewInsert().Model(&entities).Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) InsertIgnore(ctx context.Context, conflictKeys []string, entity ...*T) (int64, error) {
	if len(entity) == 0 {
		return 0, nil
	}
	entities := append([]*T(nil), entity...)

	// RETURNING is suppressed: skipped rows would misalign returned ids.
	q := r.db.NewInsert().Model(&entities).Returning("NULL")
	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		if len(conflictKeys) == 0 {
			q = q.On("CONFLICT DO NOTHING")
		} else {
			placeholders := make([]string, len(conflictKeys))
			args := make([]interface{}, len(conflictKeys))
			for i, k := range conflictKeys {
				placeholders[i] = "?"
				args[i] = bun.Ident(k)
			}
			q = q.On("CONFLICT ("+strings.Join(placeholders, ", ")+") DO NOTHING", args...)
		}
	case features.Has(feature.InsertIgnore):
		q = q.Ignore()
	default:
		return 0, fmt.Errorf("dialect %s supports neither ON CONFLICT nor INSERT IGNORE", r.db.Dialect().Name())
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
