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

// Package dot11 classifies 802.11 frames captured with a radiotap header.
package dot11

import (
	"net"
	"sync/atomic"

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/packet"
	"github.com/carverauto/devicetracker/pkg/phy"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Name is the handler name reported to the phy registry.
const Name = "IEEE802.11"

// MinStringLength is the shortest printable run kept from a cleartext payload.
const MinStringLength = 5

// Handler decodes radiotap and plain 802.11 link frames.
type Handler struct {
	id      int
	tracker phy.Tracker
	refs    packet.Refs
	logger  logger.Logger

	frames atomic.Int64
	rate   atomic.Int64
}

var _ phy.Handler = (*Handler)(nil)

// NewFactory returns a phy.Factory building 802.11 handlers that use the
// packet component ids in refs.
func NewFactory(refs packet.Refs, log logger.Logger) phy.Factory {
	return func(id int, tracker phy.Tracker) (phy.Handler, error) {
		return &Handler{
			id:      id,
			tracker: tracker,
			refs:    refs,
			logger:  log,
		}, nil
	}
}

func (*Handler) Name() string { return Name }

func (h *Handler) ID() int { return h.id }

// Rate is the number of frames classified during the previous cycle.
func (h *Handler) Rate() int64 {
	return h.rate.Load()
}

// TimerKick rolls the per-cycle frame count.
func (h *Handler) TimerKick() {
	n := h.frames.Swap(0)
	h.rate.Store(n)

	if n > 0 && h.logger != nil {
		h.logger.Debug().
			Int64("frames", n).
			Int("devices", h.tracker.NumDevices(h.id)).
			Msg("802.11 cycle")
	}
}

// Classify decodes the packet's link frame. Radio measurements and
// printable payload strings are attached to the packet as side effects.
func (h *Handler) Classify(p *packet.Packet) (*packet.CommonInfo, bool) {
	frame, ok := component.Fetch[*packet.LinkFrame](p.Components(), h.refs.LinkFrame)
	if !ok || frame == nil || len(frame.Data) == 0 {
		return nil, false
	}

	linkType := layers.LinkType(frame.LinkType)
	if linkType != layers.LinkTypeIEEE80211Radio && linkType != layers.LinkTypeIEEE802_11 {
		return nil, false
	}

	decoded := gopacket.NewPacket(frame.Data, linkType, gopacket.NoCopy)

	dot11Layer, ok := decoded.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if !ok {
		return nil, false
	}

	info := &packet.CommonInfo{
		Phy:    h.id,
		Type:   frameType(dot11Layer.Type),
		Crypt:  dot11Layer.Flags.WEP(),
		Dest:   macOrZero(dot11Layer.Address1),
		Source: macOrZero(dot11Layer.Address2),
	}

	info.Device = info.Source
	if info.Device.IsZero() {
		// ACK and CTS frames only carry a receiver address.
		info.Device = info.Dest
	}

	if info.Device.IsZero() {
		return nil, false
	}

	if info.Type == packet.TypeData {
		info.Datasize = int64(len(dot11Layer.Payload))

		if !info.Crypt {
			if strs := ExtractStrings(dot11Layer.Payload, MinStringLength); len(strs) > 0 {
				p.Insert(h.refs.Strings, &packet.StringInfo{Strings: strs})
			}
		}
	}

	if rt, ok := decoded.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap); ok {
		l1 := radioInfo(rt)
		info.Error = rt.Flags.BadFCS()
		info.Channel = l1.Channel
		info.Frequency = l1.FreqMHz * 1000

		p.Insert(h.refs.Radio, l1)
	}

	h.frames.Add(1)

	return info, true
}

func frameType(t layers.Dot11Type) packet.Type {
	switch t.MainType() {
	case layers.Dot11TypeMgmt:
		return packet.TypeManagement
	case layers.Dot11TypeCtrl:
		return packet.TypePhy
	case layers.Dot11TypeData:
		return packet.TypeData
	default:
		return packet.TypeUnknown
	}
}

func macOrZero(hw net.HardwareAddr) models.MacAddr {
	mac, _ := models.MacFromHardwareAddr(hw)
	return mac
}

func radioInfo(rt *layers.RadioTap) *packet.Layer1Info {
	l1 := &packet.Layer1Info{}

	if rt.Present.Channel() {
		l1.FreqMHz = int(rt.ChannelFrequency)
		l1.Channel = FrequencyToChannel(l1.FreqMHz)
	}

	if rt.Present.DBMAntennaSignal() {
		l1.SignalDBM = int(rt.DBMAntennaSignal)
	}

	if rt.Present.DBMAntennaNoise() {
		l1.NoiseDBM = int(rt.DBMAntennaNoise)
	}

	if rt.Present.DBAntennaSignal() {
		l1.SignalRSSI = int(rt.DBAntennaSignal)
	}

	if rt.Present.DBAntennaNoise() {
		l1.NoiseRSSI = int(rt.DBAntennaNoise)
	}

	return l1
}

// FrequencyToChannel maps a center frequency in MHz to its 802.11 channel, or 0.
func FrequencyToChannel(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return (mhz - 2407) / 5
	case mhz >= 5000 && mhz <= 5895:
		return (mhz - 5000) / 5
	case mhz >= 5955 && mhz <= 7115:
		return (mhz - 5950) / 5
	default:
		return 0
	}
}

// ExtractStrings returns every run of at least minLen printable ASCII bytes.
func ExtractStrings(payload []byte, minLen int) []string {
	var (
		out   []string
		start = -1
	)

	flush := func(end int) {
		if start >= 0 && end-start >= minLen {
			out = append(out, string(payload[start:end]))
		}

		start = -1
	}

	for i, b := range payload {
		if b >= 0x20 && b < 0x7f {
			if start < 0 {
				start = i
			}

			continue
		}

		flush(i)
	}

	flush(len(payload))

	return out
}
