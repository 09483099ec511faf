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
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/protocol"
)

// TagRecord is the source of one DEVTAG protocol record. An empty Value
// announces a cleared tag.
type TagRecord struct {
	Device models.MacAddr
	Tag    string
	Value  string
}

func (t *DeviceTracker) tagsComponentRef() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tagsRef < 0 {
		t.tagsRef = t.components.Register(ComponentTags)
	}

	return t.tagsRef
}

// SetTag stores a tag for key, attaches it to the device when the device is
// known and broadcasts the change.
func (t *DeviceTracker) SetTag(key models.MacAddr, tag, value string) error {
	if t.tagStore == nil {
		return errNoTagStore
	}

	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errEmptyTag
	}

	t.tagStore.Set(key, tag, value)
	t.refreshDeviceTags(key)
	t.server.SendToAll(ProtoDevTag, &TagRecord{Device: key, Tag: tag, Value: value})

	return nil
}

// ClearTag removes a tag and broadcasts it with an empty value. It reports
// whether the tag existed.
func (t *DeviceTracker) ClearTag(key models.MacAddr, tag string) (bool, error) {
	if t.tagStore == nil {
		return false, errNoTagStore
	}

	if !t.tagStore.Clear(key, strings.TrimSpace(tag)) {
		return false, nil
	}

	t.refreshDeviceTags(key)
	t.server.SendToAll(ProtoDevTag, &TagRecord{Device: key, Tag: tag})

	return true, nil
}

// Client commands for editing tags.
const (
	CmdAddDevTag = "ADDDEVTAG"
	CmdDelDevTag = "DELDEVTAG"
)

func (t *DeviceTracker) registerTagCommands(reg CommandRegistrar) error {
	if err := reg.RegisterCommand(CmdAddDevTag, t.addDevTagCommand); err != nil {
		return fmt.Errorf("failed to register %s: %w", CmdAddDevTag, err)
	}

	if err := reg.RegisterCommand(CmdDelDevTag, t.delDevTagCommand); err != nil {
		return fmt.Errorf("failed to register %s: %w", CmdDelDevTag, err)
	}

	return nil
}

// addDevTagCommand handles "ADDDEVTAG <mac> <tag> <value...>". The value
// may contain spaces and may be empty.
func (t *DeviceTracker) addDevTagCommand(sessionID string, args []string) error {
	if len(args) < 2 {
		return errTagArgs
	}

	key, err := models.ParseMAC(args[0])
	if err != nil {
		return err
	}

	if err := t.SetTag(key, args[1], strings.Join(args[2:], " ")); err != nil {
		return err
	}

	t.logger.Info().
		Str("session", sessionID).
		Str("device", key.String()).
		Str("tag", args[1]).
		Msg("Device tag set")

	return nil
}

// delDevTagCommand handles "DELDEVTAG <mac> <tag>".
func (t *DeviceTracker) delDevTagCommand(sessionID string, args []string) error {
	if len(args) != 2 {
		return errTagArgs
	}

	key, err := models.ParseMAC(args[0])
	if err != nil {
		return err
	}

	existed, err := t.ClearTag(key, args[1])
	if err != nil {
		return err
	}

	if !existed {
		return errNoSuchTag
	}

	t.logger.Info().
		Str("session", sessionID).
		Str("device", key.String()).
		Str("tag", args[1]).
		Msg("Device tag cleared")

	return nil
}

func (t *DeviceTracker) refreshDeviceTags(key models.MacAddr) {
	dev, ok := t.FetchDevice(key)
	if !ok {
		return
	}

	t.attachStoredTags(dev)
	t.markDirty(dev)
}

// attachStoredTags copies the stored tags of a device into its TAGS component.
func (t *DeviceTracker) attachStoredTags(d *Device) {
	if t.tagStore == nil {
		return
	}

	values := t.tagStore.Get(d.Key)
	if len(values) > 0 {
		d.SetComponent(t.tagsComponentRef(), &Tags{Values: maps.Clone(values)})
		return
	}

	t.mu.Lock()
	ref := t.tagsRef
	t.mu.Unlock()

	if ref >= 0 && d.HasComponent(ref) {
		d.SetComponent(ref, &Tags{Values: map[string]string{}})
	}
}

// DeviceTags returns the tags attached to a device.
func (t *DeviceTracker) DeviceTags(d *Device) map[string]string {
	tags, ok := FetchComponent[*Tags](d, t.tagsComponentRef())
	if !ok || tags == nil {
		return nil
	}

	return maps.Clone(tags.Values)
}

// BlitTags replays every stored tag to one session.
func (t *DeviceTracker) BlitTags(sessionID string) {
	if t.tagStore == nil {
		return
	}

	all := t.tagStore.All()

	keys := slices.SortedFunc(maps.Keys(all), func(a, b models.MacAddr) int {
		return strings.Compare(a.String(), b.String())
	})

	for _, key := range keys {
		for _, tag := range slices.Sorted(maps.Keys(all[key])) {
			t.server.SendToClient(sessionID, ProtoDevTag,
				&TagRecord{Device: key, Tag: tag, Value: all[key][tag]}, protocol.NewCache())
		}
	}
}

// LoadTags reads the tag store and attaches tags to known devices.
func (t *DeviceTracker) LoadTags() error {
	if t.tagStore == nil {
		return errNoTagStore
	}

	if err := t.tagStore.Load(); err != nil {
		t.logger.Error().Err(err).Msg("Failed to load device tags")
		return err
	}

	for _, d := range t.Devices() {
		t.attachStoredTags(d)
	}

	return nil
}

// SaveTags writes the tag store. Failures are logged and returned; the
// in-memory tags are kept.
func (t *DeviceTracker) SaveTags() error {
	if t.tagStore == nil {
		return errNoTagStore
	}

	if err := t.tagStore.Save(); err != nil {
		t.logger.Error().Err(err).Msg("Could not save tags")
		return err
	}

	return nil
}
