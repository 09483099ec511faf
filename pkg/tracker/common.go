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
	"time"

	"github.com/carverauto/devicetracker/pkg/packet"
)

// GPSAggregate summarizes every fix seen alongside a device's packets.
type GPSAggregate struct {
	Valid                          bool
	MinLat, MinLon, MinAlt, MinSpd float64
	MaxLat, MaxLon, MaxAlt, MaxSpd float64
	// Running sums for the centroid; divide by AggPoints.
	AggLat, AggLon, AggAlt float64
	AggPoints              int64
}

func (g *GPSAggregate) merge(fix *packet.GPSInfo) {
	if !g.Valid {
		g.Valid = true
		g.MinLat, g.MaxLat = fix.Lat, fix.Lat
		g.MinLon, g.MaxLon = fix.Lon, fix.Lon
		g.MinAlt, g.MaxAlt = fix.Alt, fix.Alt
		g.MinSpd, g.MaxSpd = fix.Speed, fix.Speed
	} else {
		g.MinLat, g.MaxLat = min(g.MinLat, fix.Lat), max(g.MaxLat, fix.Lat)
		g.MinLon, g.MaxLon = min(g.MinLon, fix.Lon), max(g.MaxLon, fix.Lon)
		g.MinAlt, g.MaxAlt = min(g.MinAlt, fix.Alt), max(g.MaxAlt, fix.Alt)
		g.MinSpd, g.MaxSpd = min(g.MinSpd, fix.Speed), max(g.MaxSpd, fix.Speed)
	}

	g.AggLat += fix.Lat
	g.AggLon += fix.Lon
	g.AggAlt += fix.Alt
	g.AggPoints++
}

// SignalAggregate tracks last/min/max signal and noise in dBm and RSSI,
// plus where the strongest signal was heard.
type SignalAggregate struct {
	LastSignalDBM, LastNoiseDBM int
	MinSignalDBM, MaxSignalDBM  int
	MinNoiseDBM, MaxNoiseDBM    int

	LastSignalRSSI, LastNoiseRSSI int
	MinSignalRSSI, MaxSignalRSSI  int
	MinNoiseRSSI, MaxNoiseRSSI    int

	PeakLat, PeakLon, PeakAlt float64

	seenSignalDBM, seenNoiseDBM   bool
	seenSignalRSSI, seenNoiseRSSI bool
}

// merge folds one radio sample in and reports whether it set a new signal peak.
func (s *SignalAggregate) merge(l1 *packet.Layer1Info) bool {
	peak := false

	if l1.SignalDBM != 0 {
		if !s.seenSignalDBM || l1.SignalDBM > s.MaxSignalDBM {
			peak = true
		}

		s.LastSignalDBM = l1.SignalDBM
		s.MinSignalDBM, s.MaxSignalDBM = mergeRange(s.seenSignalDBM, s.MinSignalDBM, s.MaxSignalDBM, l1.SignalDBM)
		s.seenSignalDBM = true
	}

	if l1.NoiseDBM != 0 {
		s.LastNoiseDBM = l1.NoiseDBM
		s.MinNoiseDBM, s.MaxNoiseDBM = mergeRange(s.seenNoiseDBM, s.MinNoiseDBM, s.MaxNoiseDBM, l1.NoiseDBM)
		s.seenNoiseDBM = true
	}

	if l1.SignalRSSI != 0 {
		// RSSI decides the peak only for sources that never report dBm.
		if !s.seenSignalDBM && (!s.seenSignalRSSI || l1.SignalRSSI > s.MaxSignalRSSI) {
			peak = true
		}

		s.LastSignalRSSI = l1.SignalRSSI
		s.MinSignalRSSI, s.MaxSignalRSSI = mergeRange(s.seenSignalRSSI, s.MinSignalRSSI, s.MaxSignalRSSI, l1.SignalRSSI)
		s.seenSignalRSSI = true
	}

	if l1.NoiseRSSI != 0 {
		s.LastNoiseRSSI = l1.NoiseRSSI
		s.MinNoiseRSSI, s.MaxNoiseRSSI = mergeRange(s.seenNoiseRSSI, s.MinNoiseRSSI, s.MaxNoiseRSSI, l1.NoiseRSSI)
		s.seenNoiseRSSI = true
	}

	return peak
}

func mergeRange(seen bool, lo, hi, v int) (int, int) {
	if !seen {
		return v, v
	}

	return min(lo, v), max(hi, v)
}

// CommonComponent is the COMMON device component every classified device carries.
type CommonComponent struct {
	PhyType   int
	FirstTime time.Time
	LastTime  time.Time

	Packets      uint64
	LLCPackets   uint64
	ErrorPackets uint64
	DataPackets  uint64
	CryptPackets uint64
	// NewPackets counts packets since the device was last broadcast.
	NewPackets uint64
	Datasize   uint64

	Channel int
	// Frequency in kHz, as reported by the classifier.
	Frequency int
	// FreqMHz is a packet histogram keyed by MHz.
	FreqMHz map[int]uint64

	GPS GPSAggregate
	SNR SignalAggregate
}

func newCommonComponent(phy int, ts time.Time) *CommonComponent {
	return &CommonComponent{
		PhyType:   phy,
		FirstTime: ts,
		LastTime:  ts,
		FreqMHz:   make(map[int]uint64),
	}
}

// update folds one classified packet into the component.
func (c *CommonComponent) update(ts time.Time, info *packet.CommonInfo, l1 *packet.Layer1Info, fix *packet.GPSInfo) {
	c.Packets++
	c.NewPackets++

	switch info.Type {
	case packet.TypeManagement, packet.TypePhy:
		c.LLCPackets++
	case packet.TypeData:
		c.DataPackets++
	case packet.TypeUnknown:
	}

	if info.Error {
		c.ErrorPackets++
	}

	if info.Crypt {
		c.CryptPackets++
	}

	if info.Datasize > 0 {
		c.Datasize += uint64(info.Datasize)
	}

	if ts.After(c.LastTime) {
		c.LastTime = ts
	}

	if info.Channel != 0 {
		c.Channel = info.Channel
	}

	if info.Frequency != 0 {
		c.Frequency = info.Frequency
	}

	freq := info.Frequency / 1000

	if l1 != nil {
		if l1.Channel != 0 && info.Channel == 0 {
			c.Channel = l1.Channel
		}

		if l1.FreqMHz != 0 {
			freq = l1.FreqMHz
		}
	}

	if freq != 0 {
		if c.FreqMHz == nil {
			c.FreqMHz = make(map[int]uint64)
		}

		c.FreqMHz[freq]++
	}

	if fix.Valid() {
		c.GPS.merge(fix)
	}

	if l1 != nil && c.SNR.merge(l1) && fix.Valid() {
		c.SNR.PeakLat = fix.Lat
		c.SNR.PeakLon = fix.Lon
		c.SNR.PeakAlt = fix.Alt
	}
}
