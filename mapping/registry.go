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

package mapping

import (
	"errors"
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = newModelRegistry()

// ModelRegistry records the tables of known record types so their metadata
// is computed at startup rather than on first use.
type ModelRegistry interface {
	Register(models ...any) error
	Tables() []*Table
}

type modelRegistry struct {
	tables map[reflect.Type]*Table
	mutex  sync.RWMutex
}

func newModelRegistry() ModelRegistry {
	return &modelRegistry{tables: make(map[reflect.Type]*Table)}
}

// Register resolves the metadata of each model, which may be a value or a
// pointer of the record type. All models are attempted; the errors are
// joined.
func (r *modelRegistry) Register(models ...any) error {
	var errs []error
	for _, model := range models {
		t, err := Lookup(reflect.TypeOf(model))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.mutex.Lock()
		r.tables[t.Type] = t
		r.mutex.Unlock()
	}
	return errors.Join(errs...)
}

// Tables returns the registered tables ordered by table name.
func (r *modelRegistry) Tables() []*Table {
	r.mutex.RLock()
	result := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		result = append(result, t)
	}
	r.mutex.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Type.String() < result[j].Type.String()
	})
	return result
}

// Register adds models to the default registry.
func Register(models ...any) error {
	return defaultRegistry.Register(models...)
}

// Registered returns the tables of the default registry.
func Registered() []*Table {
	return defaultRegistry.Tables()
}
