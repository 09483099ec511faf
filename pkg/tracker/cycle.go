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

package tracker

import (
	"context"
	"time"

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/protocol"
)

// TimerKick runs one periodic cycle: broadcast the devices that changed,
// tick every phy handler, recompute packet rates and broadcast TRACKINFO.
// An invocation that overlaps a running cycle is skipped. After Shutdown
// it does nothing and asks not to be called again.
func (t *DeviceTracker) TimerKick() bool {
	if !t.cycleMu.TryLock() {
		t.logger.Debug().Msg("Skipping overlapping tracker cycle")
		return true
	}
	defer t.cycleMu.Unlock()

	if t.stopped {
		return false
	}

	start := time.Now()

	for _, d := range t.drainDirty() {
		sent, ok := t.newPackets(d)
		if !ok {
			continue
		}

		t.server.SendToAll(ProtoCommon, d)

		// Packets classified while the record was out stay counted.
		d.mu.Lock()
		if c, ok := component.Fetch[*CommonComponent](&d.components, t.commonRef); ok {
			c.NewPackets -= min(sent, c.NewPackets)
		}
		d.mu.Unlock()
	}

	t.phys.TimerKick()
	t.updateRates()

	t.server.SendToAll(ProtoTrackInfo, t)

	recordCycle(context.Background(), time.Since(start))

	return true
}

func (t *DeviceTracker) newPackets(d *Device) (uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := component.Fetch[*CommonComponent](&d.components, t.commonRef)
	if !ok {
		return 0, false
	}

	return c.NewPackets, true
}

// drainDirty takes the queue and clears every queued device's dirty flag.
func (t *DeviceTracker) drainDirty() []*Device {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue := t.dirty
	t.dirty = nil

	for _, d := range queue {
		d.dirty = false
	}

	return queue
}

// DirtyLen reports how many devices wait for the next cycle.
func (t *DeviceTracker) DirtyLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.dirty)
}

func (t *DeviceTracker) updateRates() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.packetRate = max(t.numPackets-t.lastPackets, 0)
	t.lastPackets = t.numPackets

	for phyID, n := range t.phyPackets {
		t.phyPacketRate[phyID] = max(n-t.lastPhyPackets[phyID], 0)
		t.lastPhyPackets[phyID] = n
	}
}

// BlitDevices replays every classified device to one session, or to all
// sessions when sessionID is empty.
func (t *DeviceTracker) BlitDevices(sessionID string) {
	for _, d := range t.Devices() {
		if !d.HasComponent(t.commonRef) {
			continue
		}

		if sessionID == "" {
			t.server.SendToAll(ProtoCommon, d)
			continue
		}

		t.server.SendToClient(sessionID, ProtoCommon, d, protocol.NewCache())
	}
}

// RenderCommon renders a device with the COMMON schema. Used by callers
// that are not a network session, such as tests and the record mirror.
func (t *DeviceTracker) RenderCommon(ids []int, cache *protocol.Cache, d *Device) (string, error) {
	return t.commonSchema.Render(ids, cache, d)
}

// CommonFieldID resolves a COMMON field name to its id.
func (t *DeviceTracker) CommonFieldID(name string) (int, bool) {
	return t.commonSchema.FieldID(name)
}

// RenderTrackInfo renders the tracker's counters with the TRACKINFO schema.
func (t *DeviceTracker) RenderTrackInfo(ids []int, cache *protocol.Cache) (string, error) {
	return t.trackInfoSchema.Render(ids, cache, t)
}
