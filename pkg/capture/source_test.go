package capture

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devicetracker/pkg/component"
	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/packet"
)

var base = time.Unix(1700000000, 0).UTC()

type collector struct {
	mu     sync.Mutex
	frames []*packet.LinkFrame
	times  []time.Time
}

func (c *collector) attach(chain *packet.Chain) {
	refs := chain.Refs()

	chain.RegisterHandler("collector", func(p *packet.Packet) bool {
		f, ok := component.Fetch[*packet.LinkFrame](p.Components(), refs.LinkFrame)
		if !ok {
			return false
		}

		c.mu.Lock()
		c.frames = append(c.frames, f)
		c.times = append(c.times, p.Timestamp)
		c.mu.Unlock()

		return true
	}, packet.PositionPostCapture, 0)
}

func writePcap(t *testing.T, n int) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeIEEE80211Radio))

	for i := range n {
		data := []byte{byte(i), 1, 2, 3}
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(i) * time.Second),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}

	return buf.Bytes()
}

func writePcapNg(t *testing.T, n int) []byte {
	t.Helper()

	var buf bytes.Buffer

	w, err := pcapgo.NewNgWriter(&buf, layers.LinkTypeIEEE802_11)
	require.NoError(t, err)

	for i := range n {
		data := []byte{0xf0, byte(i)}
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(i) * time.Second),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}

	require.NoError(t, w.Flush())

	return buf.Bytes()
}

func TestReplayPcap(t *testing.T) {
	chain := packet.NewChain()
	c := &collector{}
	c.attach(chain)

	src := NewSource(chain, 1, logger.NewTestLogger())
	require.NoError(t, src.Replay(context.Background(), bytes.NewReader(writePcap(t, 5))))

	assert.Equal(t, int64(5), src.Frames())
	require.Len(t, c.frames, 5)

	for i, f := range c.frames {
		assert.Equal(t, int(layers.LinkTypeIEEE80211Radio), f.LinkType)
		assert.Equal(t, byte(i), f.Data[0])
		assert.True(t, base.Add(time.Duration(i)*time.Second).Equal(c.times[i]))
	}
}

func TestReplayPcapNgWithWorkers(t *testing.T) {
	chain := packet.NewChain()
	c := &collector{}
	c.attach(chain)

	src := NewSource(chain, 4, logger.NewTestLogger())
	require.NoError(t, src.Replay(context.Background(), bytes.NewReader(writePcapNg(t, 50))))

	assert.Equal(t, int64(50), src.Frames())
	assert.Len(t, c.frames, 50)

	for _, f := range c.frames {
		assert.Equal(t, int(layers.LinkTypeIEEE802_11), f.LinkType)
	}
}

func TestReplayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cap.pcap")
	require.NoError(t, os.WriteFile(path, writePcap(t, 3), 0o600))

	chain := packet.NewChain()
	src := NewSource(chain, 0, logger.NewTestLogger())

	require.NoError(t, src.ReplayFile(context.Background(), path))
	assert.Equal(t, int64(3), src.Frames())

	require.Error(t, src.ReplayFile(context.Background(), filepath.Join(t.TempDir(), "missing.pcap")))
}

func TestReplayRejectsGarbage(t *testing.T) {
	src := NewSource(packet.NewChain(), 1, logger.NewTestLogger())

	err := src.Replay(context.Background(), bytes.NewReader([]byte("definitely not a capture")))
	require.ErrorIs(t, err, errUnknownFormat)

	err = src.Replay(context.Background(), bytes.NewReader(nil))
	require.ErrorIs(t, err, errUnknownFormat)
}

type endlessReader struct{}

func (endlessReader) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return []byte{1}, gopacket.CaptureInfo{Timestamp: base}, nil
}

func (endlessReader) LinkType() layers.LinkType { return layers.LinkTypeIEEE802_11 }

func TestRunStopsOnCancel(t *testing.T) {
	chain := packet.NewChain()
	src := NewSource(chain, 2, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- src.Run(ctx, endlessReader{}) }()

	require.Eventually(t, func() bool { return src.Frames() > 10 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not stop")
	}
}
