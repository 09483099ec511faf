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

// Package protocol renders records as space separated field lists for the
// text protocol, memoizing field values per render scope.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorToken replaces the whole record when a request names an unknown field.
const ErrorToken = "\x01Unknown field\x01"

// Delimiter wraps string fields that may contain whitespace.
const Delimiter = "\x01"

var (
	// ErrUnknownField is returned with ErrorToken when a field id is out of range.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownFieldName is returned when a field list names a field the schema lacks.
	ErrUnknownFieldName = errors.New("unknown field name")
	// ErrSourceType is returned when a protocol is handed a record of the wrong type.
	ErrSourceType     = errors.New("unexpected record type")
	errEmptyFieldList = errors.New("empty field list")
)

// Cache memoizes rendered field values for one record. One cache is shared
// by every recipient of the same send so each field is computed once.
type Cache struct {
	values map[int]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{values: make(map[int]string)}
}

// Get returns the cached value for a field id.
func (c *Cache) Get(id int) (string, bool) {
	v, ok := c.values[id]
	return v, ok
}

// Set stores the rendered value for a field id.
func (c *Cache) Set(id int, v string) {
	c.values[id] = v
}

// Len returns the number of cached fields.
func (c *Cache) Len() int {
	return len(c.values)
}

// Field names one column of a schema and how to render it from a record.
type Field[T any] struct {
	Name  string
	Value func(T) string
}

// Schema is the ordered, numbered field set of one record type.
type Schema[T any] struct {
	name   string
	fields []Field[T]
	index  map[string]int
}

// NewSchema builds a schema; field ids are the positions in fields.
func NewSchema[T any](name string, fields []Field[T]) *Schema[T] {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[strings.ToLower(f.Name)] = i
	}

	return &Schema[T]{
		name:   name,
		fields: fields,
		index:  index,
	}
}

// Name returns the protocol name of the schema.
func (s *Schema[T]) Name() string {
	return s.name
}

// NumFields returns the number of fields; valid ids are [0, NumFields).
func (s *Schema[T]) NumFields() int {
	return len(s.fields)
}

// FieldNames returns the field names in id order.
func (s *Schema[T]) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}

	return names
}

// FieldID resolves a field name to its id.
func (s *Schema[T]) FieldID(name string) (int, bool) {
	id, ok := s.index[strings.ToLower(name)]
	return id, ok
}

// Render writes the requested fields of src in request order, each followed
// by one space. An out of range id replaces the whole output with ErrorToken.
// A nil cache renders without sharing values beyond this call.
func (s *Schema[T]) Render(ids []int, cache *Cache, src T) (string, error) {
	if cache == nil {
		cache = NewCache()
	}

	var b strings.Builder

	for _, id := range ids {
		if id < 0 || id >= len(s.fields) {
			return ErrorToken, fmt.Errorf("%w: %s field %d", ErrUnknownField, s.name, id)
		}

		v, ok := cache.Get(id)
		if !ok {
			v = s.fields[id].Value(src)
			cache.Set(id, v)
		}

		b.WriteString(v)
		b.WriteByte(' ')
	}

	return b.String(), nil
}

// Protocol wraps the schema for registration with a network server.
func (s *Schema[T]) Protocol(enable func(sessionID string)) *Protocol {
	return &Protocol{
		Name:   s.name,
		Fields: s.FieldNames(),
		Render: func(ids []int, cache *Cache, data any) (string, error) {
			src, ok := data.(T)
			if !ok {
				return ErrorToken, fmt.Errorf("%w: %s got %T", ErrSourceType, s.name, data)
			}

			return s.Render(ids, cache, src)
		},
		Enable: enable,
	}
}

// RenderFunc renders an untyped record for a protocol.
type RenderFunc func(ids []int, cache *Cache, data any) (string, error)

// Protocol is what a record producer registers with the network server.
type Protocol struct {
	Name   string
	Fields []string
	Render RenderFunc
	// Enable, when set, runs after a session subscribes to the protocol.
	Enable func(sessionID string)
}

// ParseFields resolves a comma separated list of field names against the
// protocol. "*" selects every field in id order.
func (p *Protocol) ParseFields(list string) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, errEmptyFieldList
	}

	if list == "*" {
		ids := make([]int, len(p.Fields))
		for i := range ids {
			ids[i] = i
		}

		return ids, nil
	}

	parts := strings.Split(list, ",")
	ids := make([]int, 0, len(parts))

	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		id := -1

		for i, f := range p.Fields {
			if strings.EqualFold(f, name) {
				id = i
				break
			}
		}

		if id < 0 {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownFieldName, p.Name, name)
		}

		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, errEmptyFieldList
	}

	return ids, nil
}

// FormatInt renders a signed integer field.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// FormatUint renders an unsigned integer field.
func FormatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// FormatFloat renders a floating point field with six decimals.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// FormatBool renders a flag as 1 or 0.
func FormatBool(v bool) string {
	if v {
		return "1"
	}

	return "0"
}

// Quote wraps a free-form string in Delimiter.
func Quote(s string) string {
	return Delimiter + s + Delimiter
}
