/*
 * Copyright 2025 Carver Automation Corporation.
 *
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

// Package component assigns stable numeric ids to named attachment kinds and
// stores attachments of those kinds on devices and packets.
package component

import (
	"strings"
	"sync"
)

// Registry maps a case-insensitive component name to a dense id.
// Ids start at 0, follow registration order, and are never removed.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]int
	names  []string
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int),
	}
}

// Register returns the id for name, assigning the next id on first use.
func (r *Registry) Register(name string) int {
	key := strings.ToLower(name)

	r.mu.RLock()
	id, ok := r.byName[key]
	r.mu.RUnlock()

	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have won the race between the two locks
	if id, ok = r.byName[key]; ok {
		return id
	}

	id = len(r.names)
	r.byName[key] = id
	r.names = append(r.names, key)

	return id
}

// Lookup returns the id of an already registered name.
func (r *Registry) Lookup(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[strings.ToLower(name)]

	return id, ok
}

// Name returns the lower-cased name registered for id.
func (r *Registry) Name(id int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || id >= len(r.names) {
		return "", false
	}

	return r.names[id], true
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.names)
}
