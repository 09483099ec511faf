package component

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAssignsDenseIDs(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, 0, r.Register("COMMON"))
	assert.Equal(t, 0, r.Register("COMMON"))
	assert.Equal(t, 1, r.Register("STRINGS"))
	assert.Equal(t, 2, r.Len())
}

func TestRegistryIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()

	id := r.Register("RadioData")
	assert.Equal(t, id, r.Register("radiodata"))
	assert.Equal(t, id, r.Register("RADIODATA"))

	got, ok := r.Lookup("RADIOdata")
	require.True(t, ok)
	assert.Equal(t, id, got)

	name, ok := r.Name(id)
	require.True(t, ok)
	assert.Equal(t, "radiodata", name)

	_, ok = r.Name(42)
	assert.False(t, ok)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryConcurrentRegister(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup

	ids := make([]int, 64)

	for i := range ids {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			ids[i] = r.Register(fmt.Sprintf("comp-%d", i%4))
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 4, r.Len())

	for i, id := range ids {
		assert.Equal(t, ids[i%4], id)
	}
}

type gpsRecord struct{ lat float64 }

func TestFetchChecksType(t *testing.T) {
	var table Table

	_, ok := Fetch[*gpsRecord](&table, 0)
	assert.False(t, ok, "empty table")

	table.Insert(0, &gpsRecord{lat: 1.5})

	got, ok := Fetch[*gpsRecord](&table, 0)
	require.True(t, ok)
	assert.InDelta(t, 1.5, got.lat, 0)

	_, ok = Fetch[string](&table, 0)
	assert.False(t, ok, "type mismatch is absence, not a panic")

	assert.True(t, table.Has(0))
	table.Remove(0)
	assert.False(t, table.Has(0))
	assert.Equal(t, 0, table.Len())

	_, ok = Fetch[*gpsRecord](nil, 0)
	assert.False(t, ok)
}
