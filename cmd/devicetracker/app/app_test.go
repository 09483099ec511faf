package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devicetracker/pkg/logger"
	"github.com/carverauto/devicetracker/pkg/models"
	"github.com/carverauto/devicetracker/pkg/tags"
)

// dataFrame is an 802.11 data frame from AA:BB:CC:DD:EE:FF to the AP, FCS included.
func dataFrame() []byte {
	f := []byte{0x08, 0x01, 0, 0}
	f = append(f, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55)
	f = append(f, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF)
	f = append(f, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55)
	f = append(f, 0x10, 0x00)
	f = append(f, []byte("hello world")...)

	return append(f, 0, 0, 0, 0)
}

func writeCapture(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, f.Close()) }()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeIEEE802_11))

	data := dataFrame()
	require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Unix(1700000000, 0),
		CaptureLength: len(data),
		Length:        len(data),
	}, data))
}

func testConfig(t *testing.T) *models.TrackerConfig {
	t.Helper()

	dir := t.TempDir()
	cfg := &models.TrackerConfig{
		ListenAddr:   "127.0.0.1:0",
		TickInterval: models.Duration(20 * time.Millisecond),
		ConfigDir:    filepath.Join(dir, "conf"),
		CaptureFile:  filepath.Join(dir, "cap.pcap"),
		Logging:      &logger.Config{Level: "error", Output: "stderr"},
	}
	require.NoError(t, cfg.Validate())

	writeCapture(t, cfg.CaptureFile)

	return cfg
}

func TestServiceReplaysCaptureAndSavesTags(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := newService(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, svc.source)

	done := make(chan error, 1)

	go func() { done <- svc.run(ctx, logger.NewTestLogger()) }()

	require.Eventually(t, func() bool {
		return svc.tracker.NumDevices(models.PhyAny) == 1
	}, 5*time.Second, 10*time.Millisecond)

	mac := models.MustParseMAC("AA:BB:CC:DD:EE:FF")
	require.NoError(t, svc.tracker.SetTag(mac, "name", "laptop"))

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}

	_, err = os.Stat(filepath.Join(cfg.ConfigDir, tags.FileName))
	require.NoError(t, err)

	store := tags.NewStore(cfg.ConfigDir, logger.NewTestLogger())
	require.NoError(t, store.Load())
	assert.Equal(t, map[string]string{"name": "laptop"}, store.Get(mac))
}

func TestRunRejectsMissingConfig(t *testing.T) {
	err := Run(context.Background(), Options{ConfigPath: filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
}
