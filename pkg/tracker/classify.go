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

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/packet"
)

// StringRecord is the source of one STRING protocol record.
type StringRecord struct {
	Device models.MacAddr
	Phy    int
	Source models.MacAddr
	Dest   models.MacAddr
	String string
}

// PhyClassifier offers a packet that has no common attachment yet to each
// phy handler in registration order and attaches the first result.
func (t *DeviceTracker) PhyClassifier(p *packet.Packet) bool {
	if p == nil || p.Filtered || p.Has(t.refs.Common) {
		return false
	}

	info, _, ok := t.phys.Classify(p)
	if !ok {
		return false
	}

	p.Insert(t.refs.Common, info)

	return true
}

// CommonClassifier maps a packet onto its device, creating the device on
// first sight, and folds the packet into the device's CommonComponent.
// Packets without a common attachment are not handled.
func (t *DeviceTracker) CommonClassifier(p *packet.Packet) bool {
	if p == nil {
		return false
	}

	info, ok := component.Fetch[*packet.CommonInfo](p.Components(), t.refs.Common)
	if !ok || info == nil {
		if p.Filtered {
			t.countFiltered(models.PhyAny)
		}

		return false
	}

	if p.Filtered {
		t.countFiltered(info.Phy)
		recordPacket(context.Background(), info.Phy, outcomeFiltered)

		return false
	}

	l1, _ := component.Fetch[*packet.Layer1Info](p.Components(), t.refs.Radio)
	fix, _ := component.Fetch[*packet.GPSInfo](p.Components(), t.refs.GPS)

	t.mu.Lock()

	dev, created := t.getOrCreateLocked(info.Device, info.Phy)

	// Per-technology counters follow the packet's phy; the device keeps
	// the phy it was first seen with.
	t.numPackets++
	t.phyPackets[info.Phy]++

	if info.Error {
		t.numErrorPackets++
		t.phyErrorPackets[info.Phy]++
	}

	t.mu.Unlock()

	dev.mu.Lock()

	common, ok := component.Fetch[*CommonComponent](&dev.components, t.commonRef)
	if !ok {
		common = newCommonComponent(dev.phyType, p.Timestamp)
		dev.components.Insert(t.commonRef, common)
	}

	common.update(p.Timestamp, info, l1, fix)

	dev.mu.Unlock()

	if created {
		t.attachStoredTags(dev)
		recordDeviceCreated(context.Background(), dev.phyType)

		t.logger.Debug().
			Str("device", dev.Key.String()).
			Int("phy", dev.phyType).
			Msg("New device")
	}

	p.Insert(t.refs.Device, &packet.DeviceInfo{Key: dev.Key, Phy: dev.phyType})

	t.markDirty(dev)
	recordPacket(context.Background(), info.Phy, outcomeClassified)

	return true
}

// StringCollector broadcasts a STRING record for every string extracted
// from a packet that was resolved to a device.
func (t *DeviceTracker) StringCollector(p *packet.Packet) bool {
	if p == nil {
		return false
	}

	devInfo, ok := component.Fetch[*packet.DeviceInfo](p.Components(), t.refs.Device)
	if !ok || devInfo == nil {
		return false
	}

	common, ok := component.Fetch[*packet.CommonInfo](p.Components(), t.refs.Common)
	if !ok || common == nil {
		return false
	}

	strs, ok := component.Fetch[*packet.StringInfo](p.Components(), t.refs.Strings)
	if !ok || strs == nil {
		return false
	}

	for _, s := range strs.Strings {
		t.server.SendToAll(ProtoString, &StringRecord{
			Device: devInfo.Key,
			Phy:    devInfo.Phy,
			Source: common.Source,
			Dest:   common.Dest,
			String: s,
		})
	}

	return true
}

// MarkDirty queues d for the next cycle's broadcast.
func (t *DeviceTracker) MarkDirty(d *Device) {
	if d != nil {
		t.markDirty(d)
	}
}

func (t *DeviceTracker) markDirty(d *Device) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d.dirty {
		return
	}

	d.dirty = true
	t.dirty = append(t.dirty, d)
}

func (t *DeviceTracker) countFiltered(phyID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.numFilterPackets++

	if phyID != models.PhyAny {
		t.phyFilterPackets[phyID]++
	}
}
