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

package component

// Table holds at most one attachment per component id. The zero value is
// ready to use. A Table is not safe for concurrent use; its owner guards it.
type Table struct {
	entries map[int]any
}

// Insert stores v under id, replacing any previous attachment.
func (t *Table) Insert(id int, v any) {
	if t.entries == nil {
		t.entries = make(map[int]any)
	}

	t.entries[id] = v
}

// Has reports whether an attachment is stored under id.
func (t *Table) Has(id int) bool {
	_, ok := t.entries[id]
	return ok
}

// Remove drops the attachment stored under id.
func (t *Table) Remove(id int) {
	delete(t.entries, id)
}

// Len returns the number of attachments.
func (t *Table) Len() int {
	return len(t.entries)
}

// Fetch returns the attachment stored under id as a T. It returns false when
// nothing is stored or the stored value is of another type.
func Fetch[T any](t *Table, id int) (T, bool) {
	var zero T

	if t == nil {
		return zero, false
	}

	raw, ok := t.entries[id]
	if !ok {
		return zero, false
	}

	v, ok := raw.(T)
	if !ok {
		return zero, false
	}

	return v, true
}
