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

package scholar

import (
	"context"

	"github.com/tomoncle/scholar/repository"
	"github.com/tomoncle/scholar/types"
	"github.com/uptrace/bun"
)

// Service is the read-side facade the HTTP layer works against.
type Service[T any] interface {
	// Get returns the entity whose column equals value.
	Get(ctx context.Context, column string, value any, opts ...repository.QueryOption) (*T, error)

	// All returns all entities.
	All(ctx context.Context, opts ...repository.QueryOption) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter, opts ...repository.QueryOption) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest, opts ...repository.QueryOption) (*types.Pagination[T], error)

	// Count returns the number of entities matching filter.
	Count(ctx context.Context, filter *types.QueryFilter) (int, error)
}

type baseServiceImpl[T any] struct {
	repo repository.Repository[T]
}

// NewService returns a Service backed by the generic repository over db.
func NewService[T any](db bun.IDB) Service[T] {
	return &baseServiceImpl[T]{repo: repository.NewRepository[T](db)}
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, column string, value any, opts ...repository.QueryOption) (*T, error) {
	return s.repo.GetOne(ctx, column, value, opts...)
}

func (s *baseServiceImpl[T]) All(ctx context.Context, opts ...repository.QueryOption) ([]*T, error) {
	return s.repo.GetAll(ctx, opts...)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter, opts ...repository.QueryOption) ([]*T, error) {
	return s.repo.List(ctx, filter, opts...)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest, opts ...repository.QueryOption) (*types.Pagination[T], error) {
	return s.repo.Page(ctx, page, opts...)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	return s.repo.Count(ctx, filter)
}
