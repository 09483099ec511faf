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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/protocol"
)

type commonValue func(d *Device, c *CommonComponent) string

// commonField reads the device's CommonComponent under its lock. A device
// that has not been classified yet renders as a zeroed component.
func commonField(ref int, name string, value commonValue) protocol.Field[*Device] {
	return protocol.Field[*Device]{
		Name: name,
		Value: func(d *Device) string {
			d.mu.RLock()
			defer d.mu.RUnlock()

			c, ok := component.Fetch[*CommonComponent](&d.components, ref)
			if !ok {
				c = &CommonComponent{PhyType: d.phyType}
			}

			return value(d, c)
		},
	}
}

func unixSeconds(ts time.Time) string {
	if ts.IsZero() {
		return "0"
	}

	return protocol.FormatInt(ts.Unix())
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func utoa(v uint64) string {
	return protocol.FormatUint(v)
}

func ftoa(v float64) string {
	return protocol.FormatFloat(v)
}

// freqHistogram renders "freq:count*" for every frequency, lowest first.
func freqHistogram(m map[int]uint64) string {
	freqs := make([]int, 0, len(m))
	for f := range m {
		freqs = append(freqs, f)
	}

	sort.Ints(freqs)

	var b strings.Builder

	for _, f := range freqs {
		b.WriteString(strconv.Itoa(f))
		b.WriteByte(':')
		b.WriteString(utoa(m[f]))
		b.WriteByte('*')
	}

	return b.String()
}

func newCommonSchema(ref int) *protocol.Schema[*Device] {
	f := func(name string, value commonValue) protocol.Field[*Device] {
		return commonField(ref, name, value)
	}

	return protocol.NewSchema(ProtoCommon, []protocol.Field[*Device]{
		f("phytype", func(_ *Device, c *CommonComponent) string { return itoa(c.PhyType) }),
		f("macaddr", func(d *Device, _ *CommonComponent) string { return d.Key.String() }),
		f("firsttime", func(_ *Device, c *CommonComponent) string { return unixSeconds(c.FirstTime) }),
		f("lasttime", func(_ *Device, c *CommonComponent) string { return unixSeconds(c.LastTime) }),
		f("packets", func(_ *Device, c *CommonComponent) string { return utoa(c.Packets) }),
		f("llcpackets", func(_ *Device, c *CommonComponent) string { return utoa(c.LLCPackets) }),
		f("errorpackets", func(_ *Device, c *CommonComponent) string { return utoa(c.ErrorPackets) }),
		f("datapackets", func(_ *Device, c *CommonComponent) string { return utoa(c.DataPackets) }),
		f("cryptpackets", func(_ *Device, c *CommonComponent) string { return utoa(c.CryptPackets) }),
		f("datasize", func(_ *Device, c *CommonComponent) string { return utoa(c.Datasize) }),
		f("newpackets", func(_ *Device, c *CommonComponent) string { return utoa(c.NewPackets) }),
		f("channel", func(_ *Device, c *CommonComponent) string { return itoa(c.Channel) }),
		f("frequency", func(_ *Device, c *CommonComponent) string { return itoa(c.Frequency) }),
		f("freqmhz", func(_ *Device, c *CommonComponent) string { return freqHistogram(c.FreqMHz) }),
		f("gpsfixed", func(_ *Device, c *CommonComponent) string { return protocol.FormatBool(c.GPS.Valid) }),
		f("minlat", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.MinLat) }),
		f("minlon", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.MinLon) }),
		f("minalt", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.MinAlt) }),
		f("minspd", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.MinSpd) }),
		f("maxlat", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.MaxLat) }),
		f("maxlon", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.MaxLon) }),
		f("maxalt", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.MaxAlt) }),
		f("maxspd", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.MaxSpd) }),
		f("signaldbm", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.LastSignalDBM) }),
		f("noisedbm", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.LastNoiseDBM) }),
		f("minsignaldbm", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.MinSignalDBM) }),
		f("minnoisedbm", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.MinNoiseDBM) }),
		f("maxsignaldbm", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.MaxSignalDBM) }),
		f("maxnoisedbm", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.MaxNoiseDBM) }),
		f("signalrssi", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.LastSignalRSSI) }),
		f("noiserssi", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.LastNoiseRSSI) }),
		f("minsignalrssi", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.MinSignalRSSI) }),
		f("minnoiserssi", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.MinNoiseRSSI) }),
		f("maxsignalrssi", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.MaxSignalRSSI) }),
		f("maxnoiserssi", func(_ *Device, c *CommonComponent) string { return itoa(c.SNR.MaxNoiseRSSI) }),
		f("bestlat", func(_ *Device, c *CommonComponent) string { return ftoa(c.SNR.PeakLat) }),
		f("bestlon", func(_ *Device, c *CommonComponent) string { return ftoa(c.SNR.PeakLon) }),
		f("bestalt", func(_ *Device, c *CommonComponent) string { return ftoa(c.SNR.PeakAlt) }),
		f("agglat", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.AggLat) }),
		f("agglon", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.AggLon) }),
		f("aggalt", func(_ *Device, c *CommonComponent) string { return ftoa(c.GPS.AggAlt) }),
		f("aggpoints", func(_ *Device, c *CommonComponent) string { return protocol.FormatInt(c.GPS.AggPoints) }),
	})
}

// TRACKINFO always reports across every phy.
func newTrackInfoSchema() *protocol.Schema[*DeviceTracker] {
	f := func(name string, value func(t *DeviceTracker) int64) protocol.Field[*DeviceTracker] {
		return protocol.Field[*DeviceTracker]{
			Name:  name,
			Value: func(t *DeviceTracker) string { return protocol.FormatInt(value(t)) },
		}
	}

	return protocol.NewSchema(ProtoTrackInfo, []protocol.Field[*DeviceTracker]{
		f("devices", func(t *DeviceTracker) int64 { return int64(t.NumDevices(models.PhyAny)) }),
		f("packets", func(t *DeviceTracker) int64 { return t.NumPackets(models.PhyAny) }),
		f("datapackets", func(t *DeviceTracker) int64 { return t.NumDataPackets(models.PhyAny) }),
		f("cryptpackets", func(t *DeviceTracker) int64 { return t.NumCryptPackets(models.PhyAny) }),
		f("errorpackets", func(t *DeviceTracker) int64 { return t.NumErrorPackets(models.PhyAny) }),
		f("filterpackets", func(t *DeviceTracker) int64 { return t.NumFilterPackets(models.PhyAny) }),
		f("packetrate", func(t *DeviceTracker) int64 { return t.PacketRate(models.PhyAny) }),
	})
}

func newStringSchema() *protocol.Schema[*StringRecord] {
	return protocol.NewSchema(ProtoString, []protocol.Field[*StringRecord]{
		{Name: "device", Value: func(r *StringRecord) string { return r.Device.String() }},
		{Name: "phy", Value: func(r *StringRecord) string { return itoa(r.Phy) }},
		{Name: "source", Value: func(r *StringRecord) string { return r.Source.String() }},
		{Name: "dest", Value: func(r *StringRecord) string { return r.Dest.String() }},
		{Name: "string", Value: func(r *StringRecord) string { return protocol.Quote(r.String) }},
	})
}

func newDevTagSchema() *protocol.Schema[*TagRecord] {
	return protocol.NewSchema(ProtoDevTag, []protocol.Field[*TagRecord]{
		{Name: "macaddr", Value: func(r *TagRecord) string { return r.Device.String() }},
		{Name: "tag", Value: func(r *TagRecord) string { return protocol.Quote(r.Tag) }},
		{Name: "value", Value: func(r *TagRecord) string { return protocol.Quote(r.Value) }},
	})
}
