package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/kf-flash-catalog/internal/flash"
)

// newTestCatalog builds a Catalog over a fresh Simulator with a 1MiB KF
// area split into maxFeatures slots and a small RAM arena, already
// rebuilt against the (empty) flash image.
func newTestCatalog(t *testing.T, maxFeatures uint32) (*Catalog, *flash.Simulator) {
	t.Helper()

	sim, err := flash.NewSimulator(0, 8*1024*1024, 256, 4096, 0, 4*256*1024)
	require.NoError(t, err)

	cat, err := New(sim, Options{
		MaxFeatures: maxFeatures,
		RAMAlign:    256,
		RAMBase:     0x20000000,
		RAMSize:     64 * 1024,
	})
	require.NoError(t, err)

	_, err = cat.Rebuild()
	require.NoError(t, err)

	return cat, sim
}
