// Package config loads the build/link-time configuration that, on the
// original microcontroller target, would be fixed at compile or link time:
// flash geometry, the KF region bounds, the RAM arena size, magic numbers,
// and the maximum number of dynamic features.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Config mirrors the build-time options of spec.md §6 one-to-one.
type Config struct {
	Raw *ini.File

	FlashBase     uint32
	FlashSize     uint32
	PageSize      uint32
	SubsectorSize uint32

	KFStart     uint32
	KFBlockSize uint32

	RAMBufferSize uint32
	RAMAlignSize  uint32

	UsedMagic    uint32
	RemovedMagic uint32

	MaxFeatures uint32
}

// Default returns the configuration with the defaults spec.md §6 lists for
// options it does not otherwise pin down.
func Default() *Config {
	const kfBlockSize = 4 * 1024 * 1024

	return &Config{
		Raw:           ini.Empty(),
		FlashBase:     0,
		FlashSize:     kfBlockSize,
		PageSize:      256,
		SubsectorSize: 4096,
		KFStart:       0,
		KFBlockSize:   kfBlockSize,
		RAMBufferSize: 100 * 1024,
		RAMAlignSize:  256,
		UsedMagic:     0x181C77E8,
		RemovedMagic:  0x003ADCA7,
		MaxFeatures:   1,
	}
}

// Load reads an ini file at path, overlaying its [kf] section onto the
// defaults. A missing path is not an error: Default() is returned as-is,
// mirroring how a board without a configuration file still links against
// its build-time constants.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	parsed, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	cfg.Raw = parsed

	section := parsed.Section("kf")

	cfg.FlashBase = uint32(section.Key("flash_base").MustUint(uint(cfg.FlashBase)))
	cfg.FlashSize = uint32(section.Key("flash_size").MustUint(uint(cfg.FlashSize)))
	cfg.PageSize = uint32(section.Key("page_size").MustUint(uint(cfg.PageSize)))
	cfg.SubsectorSize = uint32(section.Key("subsector_size").MustUint(uint(cfg.SubsectorSize)))
	cfg.KFStart = uint32(section.Key("kf_start").MustUint(uint(cfg.KFStart)))
	cfg.KFBlockSize = uint32(section.Key("kf_block_size").MustUint(uint(cfg.KFBlockSize)))
	cfg.RAMBufferSize = uint32(section.Key("ram_buffer_size").MustUint(uint(cfg.RAMBufferSize)))
	cfg.RAMAlignSize = uint32(section.Key("ram_align_size").MustUint(uint(cfg.RAMAlignSize)))
	cfg.UsedMagic = uint32(section.Key("used_magic").MustUint(uint(cfg.UsedMagic)))
	cfg.RemovedMagic = uint32(section.Key("removed_magic").MustUint(uint(cfg.RemovedMagic)))
	cfg.MaxFeatures = uint32(section.Key("max_nb_dynamic_features").MustUint(uint(cfg.MaxFeatures)))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the cross-field constraints the geometry and catalog
// packages rely on.
func (c *Config) Validate() error {
	if c.PageSize == 0 || c.SubsectorSize == 0 {
		return fmt.Errorf("config: page_size and subsector_size must be non-zero")
	}

	if c.SubsectorSize%c.PageSize != 0 {
		return fmt.Errorf("config: subsector_size %d must be a multiple of page_size %d", c.SubsectorSize, c.PageSize)
	}

	if c.KFBlockSize%c.SubsectorSize != 0 {
		return fmt.Errorf("config: kf_block_size %d must be a multiple of subsector_size %d", c.KFBlockSize, c.SubsectorSize)
	}

	if c.RAMAlignSize == 0 {
		return fmt.Errorf("config: ram_align_size must be non-zero")
	}

	return nil
}
