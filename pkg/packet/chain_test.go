package packet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devicetracker/pkg/component"
)

func TestChainRunsPositionsThenPriorities(t *testing.T) {
	chain := NewChain()

	var order []string

	record := func(name string) Handler {
		return func(*Packet) bool {
			order = append(order, name)
			return true
		}
	}

	chain.RegisterHandler("logging", record("logging"), PositionLogging, -100)
	chain.RegisterHandler("classifier-late", record("classifier-late"), PositionClassifier, 100)
	chain.RegisterHandler("classifier-early", record("classifier-early"), PositionClassifier, -10)
	chain.RegisterHandler("llc", record("llc"), PositionLLCDissect, 0)

	chain.ProcessPacket(New(time.Now()))

	assert.Equal(t, []string{"llc", "classifier-early", "classifier-late", "logging"}, order)
}

func TestChainRemoveHandler(t *testing.T) {
	chain := NewChain()
	calls := 0

	id := chain.RegisterHandler("count", func(*Packet) bool {
		calls++
		return true
	}, PositionClassifier, 0)

	require.Equal(t, 1, chain.HandlerCount(PositionClassifier))

	chain.ProcessPacket(New(time.Now()))
	chain.RemoveHandler(id)
	chain.RemoveHandler(id)
	chain.ProcessPacket(New(time.Now()))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, chain.HandlerCount(PositionClassifier))
}

func TestChainStandardComponents(t *testing.T) {
	chain := NewChain()
	refs := chain.Refs()

	assert.Equal(t, refs.Common, chain.RegisterPacketComponent("common"))
	assert.Equal(t, refs.Strings, chain.RegisterPacketComponent("Strings"))
	assert.NotEqual(t, refs.Common, refs.Radio)

	extra := chain.RegisterPacketComponent("MANGLEDATA")
	assert.Equal(t, refs.Device+1, extra)
}

func TestPacketAttachments(t *testing.T) {
	chain := NewChain()
	refs := chain.Refs()

	pkt := New(time.Unix(100, 0))
	pkt.Insert(refs.GPS, &GPSInfo{Fix: 3, Lat: 1, Lon: 2})

	gps, ok := component.Fetch[*GPSInfo](pkt.Components(), refs.GPS)
	require.True(t, ok)
	assert.True(t, gps.Valid())

	_, ok = component.Fetch[*CommonInfo](pkt.Components(), refs.Common)
	assert.False(t, ok)

	var noFix *GPSInfo
	assert.False(t, noFix.Valid())
	assert.False(t, (&GPSInfo{Fix: 1}).Valid())
}

func TestProcessNilPacket(t *testing.T) {
	chain := NewChain()
	chain.RegisterHandler("panic", func(*Packet) bool {
		t.Fatal("handler must not run for nil packets")
		return false
	}, PositionPostCapture, 0)

	chain.ProcessPacket(nil)
}
