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
	"cmp"
	"reflect"
	"slices"
	"sync"
)

// SQLModel is a model whose table is created by migration 001. Instance
// returns a Bun struct pointer; lower Priority tables are created first.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

type modelRegistry struct {
	mu     sync.RWMutex
	models []SQLModel
	seen   map[reflect.Type]bool
}

var models = newModelRegistry()

func newModelRegistry() *modelRegistry {
	return &modelRegistry{seen: map[reflect.Type]bool{}}
}

// Register keeps the first model registered for each Go type.
func (r *modelRegistry) Register(m SQLModel) {
	typ := reflect.TypeOf(m.Instance())
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seen[typ] {
		r.seen[typ] = true
		r.models = append(r.models, m)
	}
}

// Models returns the registered models by ascending priority, ties kept in
// registration order.
func (r *modelRegistry) Models() []SQLModel {
	r.mu.RLock()
	out := slices.Clone(r.models)
	r.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b SQLModel) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	return out
}

type modelAdapter struct {
	instance interface{}
	priority int
}

func (a modelAdapter) Instance() interface{} { return a.instance }
func (a modelAdapter) Priority() int         { return a.priority }

// NewModelAdapter wraps a struct pointer and its creation priority.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return modelAdapter{instance: instance, priority: priority}
}

// RegisteredModel adds m to the models created by migrations.
func RegisteredModel(m SQLModel) {
	models.Register(m)
}

// RegisteredModelInstances returns the struct pointers of every registered
// model in creation order.
func RegisteredModelInstances() []interface{} {
	ms := models.Models()
	out := make([]interface{}, len(ms))
	for i, m := range ms {
		out[i] = m.Instance()
	}
	return out
}
