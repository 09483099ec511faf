package tracker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/packet"
	"github.com/carverauto/devicetracker/pkg/phy"
	"github.com/carverauto/devicetracker/pkg/protocol"
	"github.com/stretchr/testify/require"
)

var testTime = time.Unix(1700000000, 0)

type sentRecord struct {
	proto   string
	session string
	line    string
	data    any
}

// fakeServer renders every record with a fixed field list per protocol.
type fakeServer struct {
	mu        sync.Mutex
	protocols map[string]*protocol.Protocol
	fields    map[string][]int
	commands  map[string]func(string, []string) error
	sent      []sentRecord
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		protocols: make(map[string]*protocol.Protocol),
		fields:    make(map[string][]int),
		commands:  make(map[string]func(string, []string) error),
	}
}

func (f *fakeServer) RegisterCommand(verb string, fn func(sessionID string, args []string) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.commands[verb]; ok {
		return errors.New("duplicate command " + verb)
	}

	f.commands[verb] = fn

	return nil
}

func (f *fakeServer) run(verb, sessionID string, args ...string) error {
	f.mu.Lock()
	fn := f.commands[verb]
	f.mu.Unlock()

	return fn(sessionID, args)
}

func (f *fakeServer) RegisterProtocol(p *protocol.Protocol) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.protocols[p.Name] = p

	return nil
}

func (f *fakeServer) render(proto string, data any, cache *protocol.Cache) string {
	f.mu.Lock()
	p := f.protocols[proto]
	ids, ok := f.fields[proto]
	f.mu.Unlock()

	if !ok {
		ids, _ = p.ParseFields("*")
	}

	line, _ := p.Render(ids, cache, data)

	return line
}

func (f *fakeServer) SendToAll(proto string, data any) {
	line := f.render(proto, data, protocol.NewCache())

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, sentRecord{proto: proto, line: line, data: data})
}

func (f *fakeServer) SendToClient(sessionID, proto string, data any, cache *protocol.Cache) {
	line := f.render(proto, data, cache)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, sentRecord{proto: proto, session: sessionID, line: line, data: data})
}

func (f *fakeServer) setFields(t *testing.T, proto, list string) {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	ids, err := f.protocols[proto].ParseFields(list)
	require.NoError(t, err)

	f.fields[proto] = ids
}

func (f *fakeServer) records(proto string) []sentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []sentRecord

	for _, r := range f.sent {
		if r.proto == proto {
			out = append(out, r)
		}
	}

	return out
}

func (f *fakeServer) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = nil
}

// memTagStore keeps tags in memory.
type memTagStore struct {
	mu      sync.Mutex
	tags    map[models.MacAddr]map[string]string
	saveErr error
	saves   int
}

func newMemTagStore() *memTagStore {
	return &memTagStore{tags: make(map[models.MacAddr]map[string]string)}
}

func (m *memTagStore) Load() error { return nil }

func (m *memTagStore) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++

	return m.saveErr
}

func (m *memTagStore) Get(key models.MacAddr) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.tags[key]))
	for k, v := range m.tags[key] {
		out[k] = v
	}

	return out
}

func (m *memTagStore) Set(key models.MacAddr, tag, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tags[key] == nil {
		m.tags[key] = make(map[string]string)
	}

	m.tags[key][tag] = value
}

func (m *memTagStore) Clear(key models.MacAddr, tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tags[key][tag]; !ok {
		return false
	}

	delete(m.tags[key], tag)

	if len(m.tags[key]) == 0 {
		delete(m.tags, key)
	}

	return true
}

func (m *memTagStore) All() map[models.MacAddr]map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[models.MacAddr]map[string]string, len(m.tags))

	for key, tags := range m.tags {
		out[key] = make(map[string]string, len(tags))
		for k, v := range tags {
			out[key][k] = v
		}
	}

	return out
}

// stubPhy classifies every packet whose link frame starts with its marker byte.
type stubPhy struct {
	name   string
	id     int
	marker byte
	refs   packet.Refs
	kicks  int
	mu     sync.Mutex
}

func (s *stubPhy) Name() string { return s.name }
func (s *stubPhy) ID() int      { return s.id }

func (s *stubPhy) Classify(p *packet.Packet) (*packet.CommonInfo, bool) {
	frame, ok := component.Fetch[*packet.LinkFrame](p.Components(), s.refs.LinkFrame)
	if !ok || len(frame.Data) < 7 || frame.Data[0] != s.marker {
		return nil, false
	}

	var mac models.MacAddr
	copy(mac[:], frame.Data[1:7])

	return &packet.CommonInfo{Type: packet.TypeData, Device: mac, Source: mac, Datasize: int64(len(frame.Data))}, true
}

func (s *stubPhy) TimerKick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kicks++
}

func (s *stubPhy) Kicks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.kicks
}

func stubFactory(name string, marker byte, refs packet.Refs, out **stubPhy) phy.Factory {
	return func(id int, _ phy.Tracker) (phy.Handler, error) {
		h := &stubPhy{name: name, id: id, marker: marker, refs: refs}
		*out = h

		return h, nil
	}
}

type testEnv struct {
	tracker *DeviceTracker
	server  *fakeServer
	chain   *packet.Chain
	refs    packet.Refs
	tags    *memTagStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	server := newFakeServer()
	chain := packet.NewChain()
	tags := newMemTagStore()

	tr, err := New(Config{
		Server: server,
		Chain:  chain,
		Tags:   tags,
		Logger: logger.NewTestLogger(),
	})
	require.NoError(t, err)

	return &testEnv{tracker: tr, server: server, chain: chain, refs: chain.Refs(), tags: tags}
}

type pktOpt func(p *packet.Packet, info *packet.CommonInfo, refs packet.Refs)

func withType(ty packet.Type) pktOpt {
	return func(_ *packet.Packet, info *packet.CommonInfo, _ packet.Refs) { info.Type = ty }
}

func withFlags(errFlag, crypt bool) pktOpt {
	return func(_ *packet.Packet, info *packet.CommonInfo, _ packet.Refs) {
		info.Error = errFlag
		info.Crypt = crypt
	}
}

func withRadio(l1 packet.Layer1Info) pktOpt {
	return func(p *packet.Packet, _ *packet.CommonInfo, refs packet.Refs) { p.Insert(refs.Radio, &l1) }
}

func withGPS(fix packet.GPSInfo) pktOpt {
	return func(p *packet.Packet, _ *packet.CommonInfo, refs packet.Refs) { p.Insert(refs.GPS, &fix) }
}

func withStrings(s ...string) pktOpt {
	return func(p *packet.Packet, _ *packet.CommonInfo, refs packet.Refs) {
		p.Insert(refs.Strings, &packet.StringInfo{Strings: s})
	}
}

func (e *testEnv) packet(mac string, phyID int, opts ...pktOpt) *packet.Packet {
	p := packet.New(testTime)
	info := &packet.CommonInfo{
		Phy:      phyID,
		Device:   models.MustParseMAC(mac),
		Source:   models.MustParseMAC(mac),
		Dest:     models.MustParseMAC("FF:FF:FF:FF:FF:FF"),
		Datasize: 100,
	}

	for _, opt := range opts {
		opt(p, info, e.refs)
	}

	p.Insert(e.refs.Common, info)

	return p
}

func (e *testEnv) classify(t *testing.T, p *packet.Packet) {
	t.Helper()
	require.True(t, e.tracker.CommonClassifier(p))
}

func (e *testEnv) render(t *testing.T, d *Device, list string) string {
	t.Helper()

	ids, err := e.server.protocols[ProtoCommon].ParseFields(list)
	require.NoError(t, err)

	out, err := e.tracker.RenderCommon(ids, protocol.NewCache(), d)
	require.NoError(t, err)

	return out
}

func (e *testEnv) common(t *testing.T, mac string) *CommonComponent {
	t.Helper()

	d, ok := e.tracker.FetchDevice(models.MustParseMAC(mac))
	require.True(t, ok)

	c, ok := FetchComponent[*CommonComponent](d, e.tracker.CommonRef())
	require.True(t, ok)

	return c
}
