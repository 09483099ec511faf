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

// Package tags persists user-assigned device tags as YAML.
package tags

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/models"
)

// FileName is the name of the tag file inside the config directory.
const FileName = "tag.yaml"

// ErrPersistence wraps any failure to read or write the tag file.
var ErrPersistence = errors.New("tag persistence failure")

// Store keeps device tags in memory and mirrors them to dir/tag.yaml.
type Store struct {
	path   string
	logger logger.Logger

	mu   sync.RWMutex
	tags map[models.MacAddr]map[string]string
}

// NewStore returns an empty store backed by dir.
func NewStore(dir string, log logger.Logger) *Store {
	return &Store{
		path:   filepath.Join(dir, FileName),
		logger: log,
		tags:   make(map[models.MacAddr]map[string]string),
	}
}

// Path is the location of the backing file.
func (s *Store) Path() string { return s.path }

// Load replaces the in-memory tags with the file contents. A missing file
// is an empty store. Entries with unparseable addresses are skipped.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPersistence, s.path, err)
	}

	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse %s: %w", ErrPersistence, s.path, err)
	}

	loaded := make(map[models.MacAddr]map[string]string, len(raw))

	for key, values := range raw {
		mac, err := models.ParseMAC(key)
		if err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Skipping tag entry")
			continue
		}

		if len(values) == 0 {
			continue
		}

		loaded[mac] = copyValues(values)
	}

	s.mu.Lock()
	s.tags = loaded
	s.mu.Unlock()

	s.logger.Debug().Str("path", s.path).Int("devices", len(loaded)).Msg("Loaded tags")

	return nil
}

// Save writes every tag to the backing file, creating the directory when needed.
func (s *Store) Save() error {
	s.mu.RLock()
	raw := make(map[string]map[string]string, len(s.tags))

	for mac, values := range s.tags {
		raw[mac.String()] = copyValues(values)
	}
	s.mu.RUnlock()

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", ErrPersistence, filepath.Dir(s.path), err)
	}

	tmp := s.path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("%w: rename %s: %w", ErrPersistence, s.path, err)
	}

	return nil
}

// Get returns a copy of the tags of one device, or nil.
func (s *Store) Get(key models.MacAddr) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.tags[key]
	if !ok {
		return nil
	}

	return copyValues(values)
}

func (s *Store) Set(key models.MacAddr, tag, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.tags[key]
	if !ok {
		values = make(map[string]string)
		s.tags[key] = values
	}

	values[tag] = value
}

// Clear removes one tag and reports whether it existed.
func (s *Store) Clear(key models.MacAddr, tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.tags[key]
	if !ok {
		return false
	}

	if _, ok := values[tag]; !ok {
		return false
	}

	delete(values, tag)

	if len(values) == 0 {
		delete(s.tags, key)
	}

	return true
}

// All returns a deep copy of every device's tags.
func (s *Store) All() map[models.MacAddr]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.MacAddr]map[string]string, len(s.tags))
	for mac, values := range s.tags {
		out[mac] = copyValues(values)
	}

	return out
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
