package tracker

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/packet"
	"github.com/carverauto/devicetracker/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testMAC = "AA:BB:CC:DD:EE:FF"

func TestNewRegistersProtocols(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{ProtoCommon, ProtoTrackInfo, ProtoString, ProtoDevTag} {
		assert.Contains(t, env.server.protocols, name)
	}

	assert.Len(t, env.server.protocols[ProtoCommon].Fields, 42)
	assert.Len(t, env.server.protocols[ProtoTrackInfo].Fields, 7)
	assert.Len(t, env.server.protocols[ProtoString].Fields, 5)
	assert.Len(t, env.server.protocols[ProtoDevTag].Fields, 3)
	assert.NotNil(t, env.server.protocols[ProtoCommon].Enable)
}

func TestNewFailsWhenProtocolRegistrationFails(t *testing.T) {
	ctrl := gomock.NewController(t)

	server := NewMockServer(ctrl)
	server.EXPECT().RegisterProtocol(gomock.Any()).Return(errors.New("taken"))

	_, err := New(Config{Server: server, Chain: packet.NewChain()})
	require.Error(t, err)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Chain: packet.NewChain()})
	require.ErrorIs(t, err, errNilServer)

	_, err = New(Config{Server: newFakeServer()})
	require.ErrorIs(t, err, errNilChain)
}

func TestGetOrCreateReturnsSameDevice(t *testing.T) {
	env := newTestEnv(t)
	key := models.MustParseMAC(testMAC)

	first, created := env.tracker.GetOrCreate(key, 0)
	require.True(t, created)

	second, created := env.tracker.GetOrCreate(key, 1)
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Equal(t, 0, second.PhyType())

	found, ok := env.tracker.FetchDevice(key)
	require.True(t, ok)
	assert.Same(t, first, found)

	_, ok = env.tracker.FetchDevice(models.MustParseMAC("00:11:22:33:44:55"))
	assert.False(t, ok)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	env := newTestEnv(t)
	key := models.MustParseMAC(testMAC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		devices = make(map[*Device]struct{})
		creates int
	)

	for range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			d, created := env.tracker.GetOrCreate(key, 0)

			mu.Lock()
			defer mu.Unlock()

			devices[d] = struct{}{}
			if created {
				creates++
			}
		}()
	}

	wg.Wait()

	assert.Len(t, devices, 1)
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, env.tracker.NumDevices(models.PhyAny))
}

func TestConcurrentClassificationCreatesOneDevice(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 50 {
				env.tracker.CommonClassifier(env.packet(testMAC, 0))
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, env.tracker.NumDevices(models.PhyAny))
	assert.Equal(t, uint64(400), env.common(t, testMAC).Packets)
	assert.Equal(t, int64(400), env.tracker.NumPackets(models.PhyAny))
	assert.Equal(t, 1, env.tracker.DirtyLen())
}

func TestCountByPhy(t *testing.T) {
	env := newTestEnv(t)

	const wifi, bt = 0, 1

	env.classify(t, env.packet(testMAC, wifi))
	env.classify(t, env.packet(testMAC, wifi))
	env.classify(t, env.packet(testMAC, bt, withFlags(true, false)))

	assert.Equal(t, 1, env.tracker.NumDevices(models.PhyAny))
	assert.Equal(t, 1, env.tracker.NumDevices(wifi))
	assert.Equal(t, 0, env.tracker.NumDevices(bt))

	// Packet counters follow each packet's phy, not the device's.
	assert.Equal(t, int64(3), env.tracker.NumPackets(models.PhyAny))
	assert.Equal(t, int64(2), env.tracker.NumPackets(wifi))
	assert.Equal(t, int64(1), env.tracker.NumPackets(bt))
	assert.Equal(t, int64(0), env.tracker.NumErrorPackets(wifi))
	assert.Equal(t, int64(1), env.tracker.NumErrorPackets(bt))
}

func TestRegisterDeviceComponent(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, 0, env.tracker.CommonRef())
	assert.Equal(t, 0, env.tracker.RegisterDeviceComponent("COMMON"))
	assert.Equal(t, 0, env.tracker.RegisterDeviceComponent("common"))
	assert.Equal(t, 1, env.tracker.RegisterDeviceComponent("STRINGS"))
}

func TestRenderFreshDevice(t *testing.T) {
	env := newTestEnv(t)

	d, _ := env.tracker.GetOrCreate(models.MustParseMAC(testMAC), 0)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF 0 ", env.render(t, d, "macaddr,packets"))

	zero, _ := env.tracker.GetOrCreate(models.MacAddr{}, 0)
	assert.Equal(t, "00:00:00:00:00:00 0 ", env.render(t, zero, "macaddr,packets"))
	assert.Equal(t, "0 0 ", env.render(t, zero, "firsttime,gpsfixed"))
}

func TestRenderUnknownField(t *testing.T) {
	env := newTestEnv(t)

	d, _ := env.tracker.GetOrCreate(models.MustParseMAC(testMAC), 0)

	out, err := env.tracker.RenderCommon([]int{9999}, protocol.NewCache(), d)
	require.ErrorIs(t, err, protocol.ErrUnknownField)
	assert.Equal(t, protocol.ErrorToken, out)

	out, err = env.tracker.RenderCommon([]int{1, 4, 42}, protocol.NewCache(), d)
	require.ErrorIs(t, err, protocol.ErrUnknownField)
	assert.Equal(t, "\x01Unknown field\x01", out)
}

func TestRenderOrderAndIdempotence(t *testing.T) {
	env := newTestEnv(t)

	env.classify(t, env.packet(testMAC, 0, withType(packet.TypeData), withFlags(true, true)))
	env.classify(t, env.packet(testMAC, 0, withType(packet.TypeManagement)))

	d, _ := env.tracker.FetchDevice(models.MustParseMAC(testMAC))

	list := "packets,macaddr,packets,datapackets,llcpackets,errorpackets,cryptpackets,datasize"
	first := env.render(t, d, list)
	assert.Equal(t, "2 AA:BB:CC:DD:EE:FF 2 1 1 1 1 200 ", first)
	assert.Equal(t, first, env.render(t, d, list))
}

func TestRenderSharesCache(t *testing.T) {
	env := newTestEnv(t)
	env.classify(t, env.packet(testMAC, 0))

	d, _ := env.tracker.FetchDevice(models.MustParseMAC(testMAC))
	packetsID, ok := env.tracker.CommonFieldID("packets")
	require.True(t, ok)

	cache := protocol.NewCache()
	_, err := env.tracker.RenderCommon([]int{packetsID}, cache, d)
	require.NoError(t, err)

	env.classify(t, env.packet(testMAC, 0))

	// The cache outlives the mutation, so the first value is reused.
	out, err := env.tracker.RenderCommon([]int{packetsID}, cache, d)
	require.NoError(t, err)
	assert.Equal(t, "1 ", out)

	out, err = env.tracker.RenderCommon([]int{packetsID}, protocol.NewCache(), d)
	require.NoError(t, err)
	assert.Equal(t, "2 ", out)
}

func TestCountersAreMonotonic(t *testing.T) {
	env := newTestEnv(t)
	rng := rand.New(rand.NewSource(7))

	var prev CommonComponent

	for range 200 {
		p := env.packet(testMAC, 0,
			withType(packet.Type(rng.Intn(4))),
			withFlags(rng.Intn(2) == 0, rng.Intn(3) == 0))
		env.classify(t, p)

		c := *env.common(t, testMAC)
		assert.GreaterOrEqual(t, c.Packets, prev.Packets)
		assert.GreaterOrEqual(t, c.ErrorPackets, prev.ErrorPackets)
		assert.GreaterOrEqual(t, c.DataPackets, prev.DataPackets)
		assert.GreaterOrEqual(t, c.CryptPackets, prev.CryptPackets)
		prev = c
	}

	assert.Equal(t, int64(prev.DataPackets), env.tracker.NumDataPackets(models.PhyAny))
	assert.Equal(t, int64(prev.CryptPackets), env.tracker.NumCryptPackets(models.PhyAny))
	assert.Equal(t, int64(prev.ErrorPackets), env.tracker.NumErrorPackets(models.PhyAny))
	assert.Equal(t, int64(prev.ErrorPackets), env.tracker.NumErrorPackets(0))
}

func TestGPSAggregateBounds(t *testing.T) {
	env := newTestEnv(t)
	rng := rand.New(rand.NewSource(42))

	const fixes = 25

	var lats, lons []float64

	for range fixes {
		fix := packet.GPSInfo{
			Fix:   3,
			Lat:   40 + rng.Float64(),
			Lon:   -74 + rng.Float64(),
			Alt:   rng.Float64() * 100,
			Speed: rng.Float64() * 10,
		}
		lats = append(lats, fix.Lat)
		lons = append(lons, fix.Lon)

		env.classify(t, env.packet(testMAC, 0, withGPS(fix)))
	}

	// A packet without a fix must not move the aggregate.
	env.classify(t, env.packet(testMAC, 0, withGPS(packet.GPSInfo{Fix: 1, Lat: 90})))

	c := env.common(t, testMAC)
	require.True(t, c.GPS.Valid)
	assert.Equal(t, int64(fixes), c.GPS.AggPoints)

	for i := range lats {
		assert.LessOrEqual(t, c.GPS.MinLat, lats[i])
		assert.GreaterOrEqual(t, c.GPS.MaxLat, lats[i])
		assert.LessOrEqual(t, c.GPS.MinLon, lons[i])
		assert.GreaterOrEqual(t, c.GPS.MaxLon, lons[i])
	}

	assert.LessOrEqual(t, c.GPS.MinAlt, c.GPS.MaxAlt)
	assert.LessOrEqual(t, c.GPS.MinSpd, c.GPS.MaxSpd)
}

func TestSignalAggregateAndPeakLocation(t *testing.T) {
	env := newTestEnv(t)

	env.classify(t, env.packet(testMAC, 0,
		withRadio(packet.Layer1Info{SignalDBM: -70, NoiseDBM: -95, SignalRSSI: 30, FreqMHz: 2412}),
		withGPS(packet.GPSInfo{Fix: 3, Lat: 1, Lon: 2, Alt: 3})))
	env.classify(t, env.packet(testMAC, 0,
		withRadio(packet.Layer1Info{SignalDBM: -40, NoiseDBM: -90, FreqMHz: 2412}),
		withGPS(packet.GPSInfo{Fix: 3, Lat: 4, Lon: 5, Alt: 6})))
	env.classify(t, env.packet(testMAC, 0,
		withRadio(packet.Layer1Info{SignalDBM: -80, FreqMHz: 5180}),
		withGPS(packet.GPSInfo{Fix: 2, Lat: 7, Lon: 8})))

	c := env.common(t, testMAC)
	assert.Equal(t, -80, c.SNR.LastSignalDBM)
	assert.Equal(t, -80, c.SNR.MinSignalDBM)
	assert.Equal(t, -40, c.SNR.MaxSignalDBM)
	assert.Equal(t, -95, c.SNR.MinNoiseDBM)
	assert.Equal(t, -90, c.SNR.MaxNoiseDBM)
	assert.Equal(t, 30, c.SNR.MaxSignalRSSI)
	assert.InDelta(t, 4.0, c.SNR.PeakLat, 1e-9)
	assert.InDelta(t, 5.0, c.SNR.PeakLon, 1e-9)

	d, _ := env.tracker.FetchDevice(models.MustParseMAC(testMAC))
	assert.Equal(t, "2412:2*5180:1* -40 4.000000 3 ", env.render(t, d, "freqmhz,maxsignaldbm,bestlat,aggpoints"))
}

func TestFilteredPacketsAreCountedNotClassified(t *testing.T) {
	env := newTestEnv(t)

	p := env.packet(testMAC, 2)
	p.Filtered = true

	assert.False(t, env.tracker.CommonClassifier(p))
	assert.Equal(t, 0, env.tracker.NumDevices(models.PhyAny))
	assert.Equal(t, int64(1), env.tracker.NumFilterPackets(models.PhyAny))
	assert.Equal(t, int64(1), env.tracker.NumFilterPackets(2))
	assert.Equal(t, int64(0), env.tracker.NumPackets(models.PhyAny))

	bare := packet.New(p.Timestamp)
	bare.Filtered = true
	assert.False(t, env.tracker.CommonClassifier(bare))
	assert.Equal(t, int64(2), env.tracker.NumFilterPackets(models.PhyAny))
}

func TestPacketWithoutCommonIsNotHandled(t *testing.T) {
	env := newTestEnv(t)

	assert.False(t, env.tracker.CommonClassifier(nil))
	assert.False(t, env.tracker.CommonClassifier(packet.New(env.packet(testMAC, 0).Timestamp)))

	wrongType := packet.New(env.packet(testMAC, 0).Timestamp)
	wrongType.Insert(env.refs.Common, "not a common record")
	assert.False(t, env.tracker.CommonClassifier(wrongType))

	assert.Equal(t, 0, env.tracker.NumDevices(models.PhyAny))
}

func TestClassifierAttachesDeviceInfo(t *testing.T) {
	env := newTestEnv(t)

	p := env.packet(testMAC, 3)
	env.classify(t, p)

	assert.True(t, p.Has(env.refs.Device))

	first := env.common(t, testMAC)
	assert.Equal(t, p.Timestamp, first.FirstTime)
	assert.Equal(t, 3, first.PhyType)
}
