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

package packet

import (
	"sort"
	"sync"

	"github.com/carverauto/devicetracker/pkg/component"
)

// Position is a stage of the packet chain. Stages run in ascending order.
type Position int

const (
	PositionPostCapture Position = iota
	PositionLLCDissect
	PositionDecrypt
	PositionDataDissect
	PositionClassifier
	PositionTracker
	PositionLogging
	numPositions
)

// Handler processes a packet and reports whether it acted on it.
type Handler func(p *Packet) bool

// Refs are the component ids of the attachments every chain knows about.
type Refs struct {
	LinkFrame int
	Common    int
	Radio     int
	GPS       int
	Strings   int
	Device    int
}

type chainEntry struct {
	id       int
	name     string
	priority int
	handler  Handler
}

// Chain dispatches packets through the registered handlers. Within a
// position, lower priorities run first; equal priorities keep registration order.
type Chain struct {
	mu         sync.RWMutex
	positions  [numPositions][]*chainEntry
	nextID     int
	components *component.Registry
	refs       Refs
}

// NewChain creates a chain with the standard packet components registered.
func NewChain() *Chain {
	reg := component.NewRegistry()

	return &Chain{
		components: reg,
		refs: Refs{
			LinkFrame: reg.Register(ComponentLinkFrame),
			Common:    reg.Register(ComponentCommon),
			Radio:     reg.Register(ComponentRadio),
			GPS:       reg.Register(ComponentGPS),
			Strings:   reg.Register(ComponentStrings),
			Device:    reg.Register(ComponentDevice),
		},
	}
}

// Refs returns the ids of the standard packet components.
func (c *Chain) Refs() Refs {
	return c.refs
}

// RegisterPacketComponent returns the id for a packet attachment kind.
func (c *Chain) RegisterPacketComponent(name string) int {
	return c.components.Register(name)
}

// RegisterHandler adds a handler at pos and returns an id for RemoveHandler.
func (c *Chain) RegisterHandler(name string, h Handler, pos Position, priority int) int {
	if pos < 0 || pos >= numPositions {
		pos = PositionLogging
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++

	entry := &chainEntry{id: c.nextID, name: name, priority: priority, handler: h}

	// copy so in-flight ProcessPacket calls keep iterating their own slice
	list := make([]*chainEntry, 0, len(c.positions[pos])+1)
	list = append(list, c.positions[pos]...)
	list = append(list, entry)

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].priority < list[j].priority
	})

	c.positions[pos] = list

	return entry.id
}

// RemoveHandler unregisters a handler. Unknown ids are ignored.
func (c *Chain) RemoveHandler(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for pos := range c.positions {
		list := c.positions[pos]

		for i, entry := range list {
			if entry.id != id {
				continue
			}

			trimmed := make([]*chainEntry, 0, len(list)-1)
			trimmed = append(trimmed, list[:i]...)
			trimmed = append(trimmed, list[i+1:]...)
			c.positions[pos] = trimmed

			return
		}
	}
}

// HandlerCount returns the number of handlers registered at pos.
func (c *Chain) HandlerCount(pos Position) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if pos < 0 || pos >= numPositions {
		return 0
	}

	return len(c.positions[pos])
}

// ProcessPacket runs every handler over p in position and priority order.
func (c *Chain) ProcessPacket(p *Packet) {
	if p == nil {
		return
	}

	c.mu.RLock()
	snapshot := c.positions
	c.mu.RUnlock()

	for _, list := range snapshot {
		for _, entry := range list {
			entry.handler(p)
		}
	}
}
