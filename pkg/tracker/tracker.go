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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/packet"
	"github.com/carverauto/devicetracker/pkg/phy"
	"github.com/carverauto/devicetracker/pkg/protocol"
	"github.com/carverauto/devicetracker/pkg/timer"
)

// Protocol names registered with the network server.
const (
	ProtoCommon    = "COMMON"
	ProtoTrackInfo = "TRACKINFO"
	ProtoString    = "STRING"
	ProtoDevTag    = "DEVTAG"
)

// Device component names owned by the tracker.
const (
	ComponentCommon = "COMMON"
	ComponentTags   = "TAGS"
)

const (
	// Late in the classifier stage so phy specific classifiers run first.
	commonClassifierPriority = 100
	// Early in the logging stage.
	stringCollectorPriority = -100
)

var (
	errNilServer      = errors.New("tracker requires a server")
	errNilChain       = errors.New("tracker requires a packet chain")
	errAlreadyStarted = errors.New("tracker already started")
	errNoTagStore     = errors.New("no tag store configured")
	errEmptyTag       = errors.New("tag name is empty")
	errTagArgs        = errors.New("expected <mac> <tag> [value]")
	errNoSuchTag      = errors.New("no such tag")
)

// Config wires a DeviceTracker to its collaborators.
type Config struct {
	Server Server
	Chain  *packet.Chain
	Timers *timer.TimeTracker
	Tags   TagStore
	Logger logger.Logger
	// TickInterval defaults to one second.
	TickInterval time.Duration
}

// DeviceTracker owns every Device and the counters derived from classification.
type DeviceTracker struct {
	logger   logger.Logger
	server   Server
	chain    *packet.Chain
	refs     packet.Refs
	timers   *timer.TimeTracker
	tagStore TagStore
	interval time.Duration

	components *component.Registry
	phys       *phy.Registry
	commonRef  int

	commonSchema    *protocol.Schema[*Device]
	trackInfoSchema *protocol.Schema[*DeviceTracker]
	stringSchema    *protocol.Schema[*StringRecord]
	devTagSchema    *protocol.Schema[*TagRecord]

	mu      sync.Mutex
	devices map[models.MacAddr]*Device
	ordered []*Device
	dirty   []*Device
	tagsRef int

	numPackets       int64
	numErrorPackets  int64
	numFilterPackets int64
	phyPackets       map[int]int64
	phyErrorPackets  map[int]int64
	phyFilterPackets map[int]int64

	lastPackets    int64
	lastPhyPackets map[int]int64
	packetRate     int64
	phyPacketRate  map[int]int64

	// cycleMu keeps a single TimerKick in flight and guards stopped.
	cycleMu sync.Mutex
	stopped bool

	lifecycleMu sync.Mutex
	started     bool
	timerID     int
	hookIDs     []int
}

var _ phy.Tracker = (*DeviceTracker)(nil)

// New builds a tracker, registers its device components and its protocols with the server.
func New(cfg Config) (*DeviceTracker, error) {
	if cfg.Server == nil {
		return nil, errNilServer
	}

	if cfg.Chain == nil {
		return nil, errNilChain
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewTestLogger()
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	t := &DeviceTracker{
		logger:           cfg.Logger,
		server:           cfg.Server,
		chain:            cfg.Chain,
		refs:             cfg.Chain.Refs(),
		timers:           cfg.Timers,
		tagStore:         cfg.Tags,
		interval:         cfg.TickInterval,
		components:       component.NewRegistry(),
		phys:             phy.NewRegistry(cfg.Logger),
		devices:          make(map[models.MacAddr]*Device),
		tagsRef:          -1,
		phyPackets:       make(map[int]int64),
		phyErrorPackets:  make(map[int]int64),
		phyFilterPackets: make(map[int]int64),
		lastPhyPackets:   make(map[int]int64),
		phyPacketRate:    make(map[int]int64),
		timerID:          -1,
	}

	t.commonRef = t.RegisterDeviceComponent(ComponentCommon)

	t.commonSchema = newCommonSchema(t.commonRef)
	t.trackInfoSchema = newTrackInfoSchema()
	t.stringSchema = newStringSchema()
	t.devTagSchema = newDevTagSchema()

	protocols := []*protocol.Protocol{
		t.commonSchema.Protocol(t.BlitDevices),
		t.trackInfoSchema.Protocol(nil),
		t.stringSchema.Protocol(nil),
		t.devTagSchema.Protocol(t.BlitTags),
	}

	for _, p := range protocols {
		if err := t.server.RegisterProtocol(p); err != nil {
			return nil, fmt.Errorf("failed to register protocol %s: %w", p.Name, err)
		}
	}

	if reg, ok := cfg.Server.(CommandRegistrar); ok {
		if err := t.registerTagCommands(reg); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Start hooks the tracker into the packet chain and schedules the periodic cycle.
func (t *DeviceTracker) Start(_ context.Context) error {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	if t.started {
		return errAlreadyStarted
	}

	t.hookIDs = append(t.hookIDs,
		t.chain.RegisterHandler("phy_classifier", t.PhyClassifier, packet.PositionLLCDissect, 0),
		t.chain.RegisterHandler("common_classifier", t.CommonClassifier, packet.PositionClassifier, commonClassifierPriority),
		t.chain.RegisterHandler("string_collector", t.StringCollector, packet.PositionLogging, stringCollectorPriority),
	)

	if t.timers != nil {
		id, err := t.timers.RegisterTimer(t.interval, t.TimerKick)
		if err != nil {
			t.removeHooksLocked()
			return fmt.Errorf("failed to register tracker timer: %w", err)
		}

		t.timerID = id
	}

	t.started = true

	t.cycleMu.Lock()
	t.stopped = false
	t.cycleMu.Unlock()

	t.logger.Info().
		Dur("tick_interval", t.interval).
		Int("phy_handlers", t.phys.Len()).
		Msg("Device tracker started")

	return nil
}

// Shutdown removes the timer and chain hooks, then saves tags.
// No callback reaches the tracker once it returns.
func (t *DeviceTracker) Shutdown() error {
	t.lifecycleMu.Lock()

	if t.started {
		if t.timers != nil && t.timerID >= 0 {
			t.timers.RemoveTimer(t.timerID)
			t.timerID = -1
		}

		t.removeHooksLocked()
		t.started = false
	}

	t.lifecycleMu.Unlock()

	// Waits out a running cycle; later fires see stopped and do nothing.
	t.cycleMu.Lock()
	t.stopped = true
	t.cycleMu.Unlock()

	if t.tagStore == nil {
		return nil
	}

	return t.SaveTags()
}

func (t *DeviceTracker) removeHooksLocked() {
	for _, id := range t.hookIDs {
		t.chain.RemoveHandler(id)
	}

	t.hookIDs = nil
}

// RegisterDeviceComponent returns the id for a named device component.
func (t *DeviceTracker) RegisterDeviceComponent(name string) int {
	return t.components.Register(name)
}

// RegisterPhyHandler builds a phy handler bound to this tracker and returns its id.
func (t *DeviceTracker) RegisterPhyHandler(factory phy.Factory) (int, error) {
	return t.phys.Register(factory, t)
}

// Phys exposes the phy handler registry.
func (t *DeviceTracker) Phys() *phy.Registry {
	return t.phys
}

// CommonRef is the device component id of CommonComponent.
func (t *DeviceTracker) CommonRef() int {
	return t.commonRef
}

// GetOrCreate returns the device for key, creating it as a phy device when unseen.
func (t *DeviceTracker) GetOrCreate(key models.MacAddr, phyID int) (*Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.getOrCreateLocked(key, phyID)
}

func (t *DeviceTracker) getOrCreateLocked(key models.MacAddr, phyID int) (*Device, bool) {
	if d, ok := t.devices[key]; ok {
		return d, false
	}

	d := newDevice(key, phyID)
	t.devices[key] = d
	t.ordered = append(t.ordered, d)

	return d, true
}

// FetchDevice looks a device up without creating it.
func (t *DeviceTracker) FetchDevice(key models.MacAddr) (*Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices[key]

	return d, ok
}

// Devices returns the devices in first-seen order.
func (t *DeviceTracker) Devices() []*Device {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Device, len(t.ordered))
	copy(out, t.ordered)

	return out
}

// NumDevices counts devices, all of them for models.PhyAny.
func (t *DeviceTracker) NumDevices(phyID int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if phyID == models.PhyAny {
		return len(t.devices)
	}

	n := 0

	for _, d := range t.ordered {
		if d.phyType == phyID {
			n++
		}
	}

	return n
}

// NumPackets is the number of classified packets.
func (t *DeviceTracker) NumPackets(phyID int) int64 {
	return t.counter(phyID, &t.numPackets, t.phyPackets)
}

// NumErrorPackets is the number of classified packets flagged as errors.
func (t *DeviceTracker) NumErrorPackets(phyID int) int64 {
	return t.counter(phyID, &t.numErrorPackets, t.phyErrorPackets)
}

// NumFilterPackets is the number of packets dropped by upstream filters.
func (t *DeviceTracker) NumFilterPackets(phyID int) int64 {
	return t.counter(phyID, &t.numFilterPackets, t.phyFilterPackets)
}

// PacketRate is the packet count delta over the last cycle.
func (t *DeviceTracker) PacketRate(phyID int) int64 {
	return t.counter(phyID, &t.packetRate, t.phyPacketRate)
}

func (t *DeviceTracker) counter(phyID int, total *int64, perPhy map[int]int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if phyID == models.PhyAny {
		return *total
	}

	return perPhy[phyID]
}

// NumDataPackets sums the data packet counters of matching devices.
func (t *DeviceTracker) NumDataPackets(phyID int) int64 {
	return t.sumCommon(phyID, func(c *CommonComponent) uint64 { return c.DataPackets })
}

// NumCryptPackets sums the encrypted packet counters of matching devices.
func (t *DeviceTracker) NumCryptPackets(phyID int) int64 {
	return t.sumCommon(phyID, func(c *CommonComponent) uint64 { return c.CryptPackets })
}

func (t *DeviceTracker) sumCommon(phyID int, value func(*CommonComponent) uint64) int64 {
	var total uint64

	for _, d := range t.Devices() {
		if phyID != models.PhyAny && d.phyType != phyID {
			continue
		}

		d.mu.RLock()
		if c, ok := component.Fetch[*CommonComponent](&d.components, t.commonRef); ok {
			total += value(c)
		}
		d.mu.RUnlock()
	}

	return int64(total)
}
