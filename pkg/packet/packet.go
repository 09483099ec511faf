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

// Package packet carries per-packet attachments through an ordered chain of
// handlers, from capture through classification to logging.
package packet

import (
	"time"

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/models"
)

// Component names registered by every chain.
const (
	ComponentLinkFrame = "LINKFRAME"
	ComponentCommon    = "COMMON"
	ComponentRadio     = "RADIODATA"
	ComponentGPS       = "GPS"
	ComponentStrings   = "STRINGS"
	ComponentDevice    = "DEVICE"
)

// Type is the basic classification of a frame.
type Type int

const (
	TypeUnknown Type = iota
	TypeManagement
	TypePhy
	TypeData
)

// Packet is one captured frame and whatever upstream stages attached to it.
type Packet struct {
	Timestamp time.Time
	// Filtered packets are counted but not classified.
	Filtered bool

	components component.Table
}

// New creates a packet stamped with ts.
func New(ts time.Time) *Packet {
	return &Packet{Timestamp: ts}
}

// Insert attaches v under the component id.
func (p *Packet) Insert(id int, v any) {
	p.components.Insert(id, v)
}

// Has reports whether the packet carries the component id.
func (p *Packet) Has(id int) bool {
	return p.components.Has(id)
}

// Components exposes the attachment table for typed access with component.Fetch.
func (p *Packet) Components() *component.Table {
	return &p.components
}

// LinkFrame is the raw frame handed over by a capture source.
type LinkFrame struct {
	LinkType int
	Data     []byte
}

// CommonInfo is the technology independent summary produced by a phy classifier.
type CommonInfo struct {
	Type     Type
	Phy      int
	Device   models.MacAddr
	Source   models.MacAddr
	Dest     models.MacAddr
	Error    bool
	Crypt    bool
	Datasize int64
	Channel  int
	// Frequency in kHz.
	Frequency int
}

// Layer1Info carries radio level measurements. Zero means not reported.
type Layer1Info struct {
	SignalDBM  int
	NoiseDBM   int
	SignalRSSI int
	NoiseRSSI  int
	FreqMHz    int
	Channel    int
}

// GPSInfo is the location fix at capture time. Fix is 0/1 for none, 2 for 2d, 3 for 3d.
type GPSInfo struct {
	Fix   int
	Lat   float64
	Lon   float64
	Alt   float64
	Speed float64
}

// Valid reports whether the fix carries a usable position.
func (g *GPSInfo) Valid() bool {
	return g != nil && g.Fix >= 2
}

// StringInfo holds printable strings extracted from the payload.
type StringInfo struct {
	Strings []string
}

// DeviceInfo is attached by the classifier once the packet is resolved to a device.
type DeviceInfo struct {
	Key models.MacAddr
	Phy int
}
