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

// Package tracker keeps the table of devices seen in captured traffic,
// classifies packets onto them and broadcasts changed devices once per cycle.
package tracker

import (
	"sync"

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/models"
)

// Device is one physically distinct transmitter, keyed by hardware address.
type Device struct {
	Key models.MacAddr

	phyType int

	// dirty is guarded by the owning tracker's lock.
	dirty bool

	mu         sync.RWMutex
	components component.Table
}

func newDevice(key models.MacAddr, phy int) *Device {
	return &Device{Key: key, phyType: phy}
}

// PhyType is the id of the phy handler that first classified the device.
func (d *Device) PhyType() int {
	return d.phyType
}

// HasComponent reports whether a component is attached under id.
func (d *Device) HasComponent(id int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.components.Has(id)
}

// SetComponent attaches v under id, replacing any previous value.
func (d *Device) SetComponent(id int, v any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.components.Insert(id, v)
}

// FetchComponent returns the component stored under id when it has type T.
// A missing or mistyped component yields the zero value and false.
func FetchComponent[T any](d *Device, id int) (T, bool) {
	if d == nil {
		var zero T
		return zero, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	return component.Fetch[T](&d.components, id)
}

// Tags is the TAGS device component.
type Tags struct {
	Values map[string]string
}
