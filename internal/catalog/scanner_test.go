package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/kf-flash-catalog/internal/flash"
)

func writeRawHeader(t *testing.T, sim *flash.Simulator, addr uint32, hdr Header) {
	t.Helper()

	require.NoError(t, sim.EraseSubsector(addr))

	encoded := EncodeHeader(hdr)
	page := make([]byte, sim.PageSize())
	copy(page, encoded[:])
	for i := len(encoded); i < len(page); i++ {
		page[i] = 0xFF
	}

	require.NoError(t, sim.PageWrite(page, addr, len(page)))
}

func TestRebuildEmptyCatalogFindsNoFeatures(t *testing.T) {
	cat, _ := newTestCatalog(t, 4)

	n, err := cat.Rebuild()
	assert.NoError(t, err)
	assert.Equal(t, uint32(0), n)
}

func TestRebuildCountsUsedSkipsRemoved(t *testing.T) {
	cat, sim := newTestCatalog(t, 4)

	slot0 := cat.geometry.SlotBase(0)
	slot1 := cat.geometry.SlotBase(1)
	slot2 := cat.geometry.SlotBase(2)

	writeRawHeader(t, sim, slot0, Header{Status: StatusUsed, FeatureIndex: 0, ROMAddress: slot0 + HeaderSize, ROMSize: 16, RAMAddress: 0x20000000, RAMSize: 64})
	writeRawHeader(t, sim, slot1, Header{Status: StatusRemoved, FeatureIndex: 1, ROMAddress: slot1 + HeaderSize, ROMSize: 16, RAMAddress: 0x20000100, RAMSize: 64})
	writeRawHeader(t, sim, slot2, Header{Status: StatusUsed, FeatureIndex: 1, ROMAddress: slot2 + HeaderSize, ROMSize: 16, RAMAddress: 0x20000200, RAMSize: 64})

	n, err := cat.Rebuild()
	assert.NoError(t, err)
	assert.Equal(t, uint32(2), n)
}

func TestRebuildCompactsStaleFeatureIndex(t *testing.T) {
	cat, sim := newTestCatalog(t, 4)

	slot0 := cat.geometry.SlotBase(0)
	slot1 := cat.geometry.SlotBase(1)

	// slot0 was freed; slot1 is the surviving feature but still carries its
	// original index of 1. A rebuild should compact it down to 0.
	writeRawHeader(t, sim, slot0, Header{Status: StatusRemoved, FeatureIndex: 0})
	writeRawHeader(t, sim, slot1, Header{Status: StatusUsed, FeatureIndex: 1, ROMAddress: slot1 + HeaderSize, ROMSize: 16, RAMAddress: 0x20000000, RAMSize: 64})

	n, err := cat.Rebuild()
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), n)

	hdr, err := cat.readHeader(slot1)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0), hdr.FeatureIndex)
	assert.Equal(t, StatusUsed, hdr.Status)
	assert.Equal(t, uint32(16), hdr.ROMSize)
}

func TestRebuildStopsAtFirstFreeSlot(t *testing.T) {
	cat, sim := newTestCatalog(t, 4)

	slot0 := cat.geometry.SlotBase(0)
	slot2 := cat.geometry.SlotBase(2)

	writeRawHeader(t, sim, slot0, Header{Status: StatusUsed, FeatureIndex: 0, ROMAddress: slot0 + HeaderSize, ROMSize: 16, RAMAddress: 0x20000000, RAMSize: 64})
	// slot1 left FREE (untouched). slot2 is USED but unreachable by a
	// forward scan that stops at the first FREE slot.
	writeRawHeader(t, sim, slot2, Header{Status: StatusUsed, FeatureIndex: 1, ROMAddress: slot2 + HeaderSize, ROMSize: 16, RAMAddress: 0x20000100, RAMSize: 64})

	n, err := cat.Rebuild()
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), n)
}

func TestFirstFreeSlot(t *testing.T) {
	cat, sim := newTestCatalog(t, 4)

	slot0 := cat.geometry.SlotBase(0)
	writeRawHeader(t, sim, slot0, Header{Status: StatusUsed, FeatureIndex: 0})

	base, ok := cat.firstFreeSlot()
	assert.True(t, ok)
	assert.Equal(t, cat.geometry.SlotBase(1), base)
}
