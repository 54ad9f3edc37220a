// Command kfdemo drives the flash feature catalog against an in-memory
// simulator, exercising boot scan, install, streamed copy, free, and
// re-scan without any real hardware.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zhukovaskychina/kf-flash-catalog/config"
	"github.com/zhukovaskychina/kf-flash-catalog/internal/catalog"
	"github.com/zhukovaskychina/kf-flash-catalog/internal/flash"
	"github.com/zhukovaskychina/kf-flash-catalog/logger"
	"github.com/zhukovaskychina/kf-flash-catalog/util"
)

func main() {
	cfgPath := flag.String("config", "", "path to an ini config file (defaults built in if empty)")
	flag.Parse()

	if err := logger.Init(logger.Config{LogLevel: "debug"}); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Errorf("config load failed: %v", err)
		os.Exit(1)
	}

	sim, err := flash.NewSimulator(cfg.FlashBase, cfg.FlashSize, cfg.PageSize, cfg.SubsectorSize, cfg.KFStart, cfg.KFBlockSize)
	if err != nil {
		logger.Errorf("simulator init failed: %v", err)
		os.Exit(1)
	}

	cat, err := catalog.New(sim, catalog.Options{
		MaxFeatures:  cfg.MaxFeatures,
		RAMAlign:     cfg.RAMAlignSize,
		RAMBase:      0x20000000,
		RAMSize:      cfg.RAMBufferSize,
		UsedMagic:    cfg.UsedMagic,
		RemovedMagic: cfg.RemovedMagic,
	})
	if err != nil {
		logger.Errorf("catalog init failed: %v", err)
		os.Exit(1)
	}

	n, err := cat.Rebuild()
	if err != nil {
		logger.Errorf("boot scan failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("boot scan: %d feature(s) found\n", n)

	payload := []byte("this is a demo feature image, streamed in page-sized pieces")
	fmt.Printf("installing a feature: %d ROM bytes, 256 RAM bytes\n", len(payload))
	fmt.Printf("expected content digest: 0x%x\n", util.HashCode(payload))

	h, err := cat.AllocateFeature(uint32(len(payload)), 256)
	if err != nil {
		logger.Errorf("allocate failed: %v", err)
		os.Exit(1)
	}

	romAddr, _ := cat.FeatureAddressROM(h)
	ramAddr, _ := cat.FeatureAddressRAM(h)
	fmt.Printf("installed handle=0x%x rom=0x%x ram=0x%x\n", uint32(h), romAddr, ramAddr)

	const chunkSize = 16
	for off := 0; off < len(payload); off += chunkSize {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		if err := cat.CopyToROM(romAddr+uint32(off), payload[off:end]); err != nil {
			logger.Errorf("copy to rom failed: %v", err)
			os.Exit(1)
		}
	}

	if err := cat.FlushCopyToROM(); err != nil {
		logger.Errorf("flush failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("streamed content digest: 0x%x\n", cat.StreamDigest())

	fmt.Println("freeing the feature")
	if err := cat.FreeFeature(h); err != nil {
		logger.Errorf("free failed: %v", err)
		os.Exit(1)
	}

	n, err = cat.Rebuild()
	if err != nil {
		logger.Errorf("re-scan after free failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("re-scan after free: %d feature(s) remain\n", n)
}
