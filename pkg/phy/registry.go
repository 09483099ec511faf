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

package phy

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/packet"
)

var (
	errNilFactory       = errors.New("phy factory is nil")
	errNilHandler       = errors.New("phy factory returned no handler")
	errDuplicateHandler = errors.New("phy handler already registered")
	errIDMismatch       = errors.New("phy handler reports a different id")
)

// Registry owns the handler instances. Ids are dense, follow registration
// order and are never reused; handlers are never removed.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	byName   map[string]int
	logger   logger.Logger
}

// NewRegistry creates an empty phy registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		byName: make(map[string]int),
		logger: log,
	}
}

// Register builds a handler with the next id and stores it.
func (r *Registry) Register(factory Factory, tracker Tracker) (int, error) {
	if factory == nil {
		return -1, errNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := len(r.handlers)

	h, err := factory(id, tracker)
	if err != nil {
		return -1, fmt.Errorf("failed to create phy handler %d: %w", id, err)
	}

	if h == nil {
		return -1, errNilHandler
	}

	if h.ID() != id {
		return -1, fmt.Errorf("%w: want %d, got %d", errIDMismatch, id, h.ID())
	}

	key := strings.ToLower(h.Name())
	if _, ok := r.byName[key]; ok {
		return -1, fmt.Errorf("%w: %s", errDuplicateHandler, h.Name())
	}

	r.handlers = append(r.handlers, h)
	r.byName[key] = id

	r.logger.Info().
		Int("phy_id", id).
		Str("phy", h.Name()).
		Msg("Registered phy handler")

	return id, nil
}

// Get returns the handler registered under id.
func (r *Registry) Get(id int) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || id >= len(r.handlers) {
		return nil, false
	}

	return r.handlers[id], true
}

// Lookup resolves a handler name to its id.
func (r *Registry) Lookup(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[strings.ToLower(name)]

	return id, ok
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.handlers)
}

func (r *Registry) snapshot() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Handler(nil), r.handlers...)
}

// TimerKick runs every handler's periodic hook in registration order.
func (r *Registry) TimerKick() {
	for _, h := range r.snapshot() {
		h.TimerKick()
	}
}

// Classify offers p to each handler in registration order and returns the
// first classification along with the id of the handler that produced it.
func (r *Registry) Classify(p *packet.Packet) (*packet.CommonInfo, int, bool) {
	for _, h := range r.snapshot() {
		info, ok := h.Classify(p)
		if ok && info != nil {
			info.Phy = h.ID()
			return info, h.ID(), true
		}
	}

	return nil, -1, false
}
