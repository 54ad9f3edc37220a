package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrationEmptyBootHasNoFeatures(t *testing.T) {
	cat, _ := newTestCatalog(t, 4)

	assert.Equal(t, uint32(0), cat.NbFeatures())
	assert.False(t, cat.FeatureHandle(0).Valid())
}

func TestIntegrationInstallCopyFlushLookup(t *testing.T) {
	cat, sim := newTestCatalog(t, 4)

	payload := []byte("feature image bytes")
	h, err := cat.AllocateFeature(uint32(len(payload)), 128)
	require.NoError(t, err)

	romAddr, ok := cat.FeatureAddressROM(h)
	require.True(t, ok)

	require.NoError(t, cat.CopyToROM(romAddr, payload))
	require.NoError(t, cat.FlushCopyToROM())

	got, err := sim.Read(romAddr, len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	ramAddr, ok := cat.FeatureAddressRAM(h)
	require.True(t, ok)
	assert.Equal(t, cat.ramBase, ramAddr)

	// A fresh boot scan must rediscover the same handle at index 0.
	n, err := cat.Rebuild()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	assert.Equal(t, h, cat.FeatureHandle(0))
}

func TestIntegrationIndexCompactionAcrossFreeAndRebuild(t *testing.T) {
	cat, _ := newTestCatalog(t, 4)

	first, err := cat.AllocateFeature(64, 64)
	require.NoError(t, err)
	second, err := cat.AllocateFeature(64, 64)
	require.NoError(t, err)
	third, err := cat.AllocateFeature(64, 64)
	require.NoError(t, err)

	require.NoError(t, cat.FreeFeature(first))

	n, err := cat.Rebuild()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	// second and third survive, now compacted to indices 0 and 1.
	assert.Equal(t, second, cat.FeatureHandle(0))
	assert.Equal(t, third, cat.FeatureHandle(1))
}

func TestIntegrationPowerLossAfterEraseLooksLikeFreeSlot(t *testing.T) {
	cat, sim := newTestCatalog(t, 4)

	slot0 := cat.geometry.SlotBase(0)

	// Simulate a crash between erasing the slot and programming its
	// header: the subsector is erased but never written.
	require.NoError(t, sim.EraseSubsector(slot0))

	n, err := cat.Rebuild()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n)
	assert.False(t, cat.FeatureHandle(0).Valid())
}

func TestIntegrationRAMArenaExhaustionSurfacesAsError(t *testing.T) {
	cat, _ := newTestCatalog(t, 4)
	cat.ramSize = 200

	_, err := cat.AllocateFeature(64, 100)
	require.NoError(t, err)

	_, err = cat.AllocateFeature(64, 150)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrRAMOverflow))
}

func TestIntegrationFreeThenReinstallReusesRAMRegion(t *testing.T) {
	cat, _ := newTestCatalog(t, 4)

	first, err := cat.AllocateFeature(64, 100)
	require.NoError(t, err)
	firstRAM, ok := cat.FeatureAddressRAM(first)
	require.True(t, ok)

	require.NoError(t, cat.FreeFeature(first))

	// A smaller request after the free reuses the removed region instead
	// of growing the arena's high-water mark.
	second, err := cat.AllocateFeature(64, 80)
	require.NoError(t, err)
	secondRAM, ok := cat.FeatureAddressRAM(second)
	require.True(t, ok)

	assert.Equal(t, firstRAM, secondRAM)
}

func TestIntegrationAllocateFeatureReusesSameSlotAfterFree(t *testing.T) {
	cat, _ := newTestCatalog(t, 1)

	first, err := cat.AllocateFeature(64, 64)
	require.NoError(t, err)
	require.NoError(t, cat.FreeFeature(first))

	second, err := cat.AllocateFeature(64, 64)
	require.NoError(t, err)

	assert.Equal(t, uint32(first), uint32(second))
}
