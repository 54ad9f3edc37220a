package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, uint32(256), cfg.PageSize)
	assert.Equal(t, uint32(4096), cfg.SubsectorSize)
	assert.Equal(t, uint32(100*1024), cfg.RAMBufferSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kf.ini")

	contents := "[kf]\n" +
		"flash_base = 134217728\n" +
		"flash_size = 8388608\n" +
		"kf_start = 134217728\n" +
		"max_nb_dynamic_features = 4\n"

	assert.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, uint32(134217728), cfg.FlashBase)
	assert.Equal(t, uint32(8388608), cfg.FlashSize)
	assert.Equal(t, uint32(4), cfg.MaxFeatures)
	// Unset keys keep their defaults.
	assert.Equal(t, uint32(256), cfg.PageSize)
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	cfg := Default()
	cfg.SubsectorSize = 300 // not a multiple of page_size

	assert.Error(t, cfg.Validate())
}
