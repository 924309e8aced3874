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

// Package sqlrepo is the entry point of the generic CRUD layer: a Service
// bound to the process-wide pool configured from the environment.
package sqlrepo

import (
	"context"
	"sync"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/repository"
	"github.com/tomoncle/sqlrepo/types"
)

// Service is the CRUD surface for one record type T keyed by ID.
type Service[T any, ID any] interface {
	// Get returns a single entity by its identifier, or nil when absent.
	Get(ctx context.Context, id ID) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save inserts a new entity.
	Save(ctx context.Context, model *T) (bool, error)

	// Update writes the non-null fields of model to an existing entity.
	Update(ctx context.Context, id ID, model *T) (bool, error)

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id ID) (bool, error)
}

type baseServiceImpl[T any, ID any] struct {
	pool func() (*database.Pool, error)
	repo repository.Repository[T, ID]
	err  error
	once sync.Once
}

// NewService returns a Service using the generic repository backed by
// database.DefaultPool. The pool and the metadata of T are resolved on the
// first call, and a failure there is returned by every call.
func NewService[T any, ID any]() Service[T, ID] {
	return &baseServiceImpl[T, ID]{pool: database.DefaultPool}
}

// NewServiceWithPool returns a Service bound to an explicit pool.
func NewServiceWithPool[T any, ID any](pool *database.Pool) Service[T, ID] {
	return &baseServiceImpl[T, ID]{pool: func() (*database.Pool, error) { return pool, nil }}
}

func (s *baseServiceImpl[T, ID]) baseRepo() (repository.Repository[T, ID], error) {
	s.once.Do(func() {
		pool, err := s.pool()
		if err != nil {
			s.err = err
			return
		}
		s.repo, s.err = repository.NewRepository[T, ID](pool)
	})
	return s.repo, s.err
}

func (s *baseServiceImpl[T, ID]) Get(ctx context.Context, id ID) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, id)
}

func (s *baseServiceImpl[T, ID]) All(ctx context.Context) ([]*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.FindAll(ctx)
}

func (s *baseServiceImpl[T, ID]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Page(ctx, page)
}

func (s *baseServiceImpl[T, ID]) Save(ctx context.Context, model *T) (bool, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return false, err
	}
	return repo.Create(ctx, model)
}

func (s *baseServiceImpl[T, ID]) Update(ctx context.Context, id ID, model *T) (bool, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return false, err
	}
	return repo.Update(ctx, id, model)
}

func (s *baseServiceImpl[T, ID]) Delete(ctx context.Context, id ID) (bool, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return false, err
	}
	return repo.Delete(ctx, id)
}
