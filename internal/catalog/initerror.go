package catalog

import "github.com/zhukovaskychina/kf-flash-catalog/logger"

// InitErrorCode enumerates the reasons a feature can fail its own
// initialization after being installed and copied to ROM (spec.md §4.9).
// The kernel reports these after attempting to bring a feature up; the
// catalog itself never produces them.
type InitErrorCode int

const (
	CorruptedContent InitErrorCode = iota
	IncompatibleKernelWrongUID
	TooManyInstalled
	AlreadyInstalled
	IncompatibleKernelWrongAddresses
	ROMOverlap
	RAMOverlap
	RAMAddressChanged
)

// String renders a human-readable label, used by logging and the demo
// binary.
func (c InitErrorCode) String() string {
	switch c {
	case CorruptedContent:
		return "corrupted content"
	case IncompatibleKernelWrongUID:
		return "incompatible kernel: wrong UID"
	case TooManyInstalled:
		return "too many features installed"
	case AlreadyInstalled:
		return "feature already installed"
	case IncompatibleKernelWrongAddresses:
		return "incompatible kernel: wrong addresses"
	case ROMOverlap:
		return "ROM region overlaps another feature"
	case RAMOverlap:
		return "RAM region overlaps another feature"
	case RAMAddressChanged:
		return "RAM address changed since install"
	default:
		return "unknown initialization error"
	}
}

// autoFreeCodes are the init errors that indicate the installed image
// itself is unusable — corrupt, built for the wrong kernel, or placed
// wrong — and so are never recoverable by leaving the slot USED. The
// remaining codes describe conditions the kernel can recover from without
// discarding the feature (a transient overlap, a stale cached address), so
// OnFeatureInitializationError only logs them.
var autoFreeCodes = map[InitErrorCode]bool{
	CorruptedContent:                 true,
	IncompatibleKernelWrongUID:       true,
	IncompatibleKernelWrongAddresses: true,
}

// OnFeatureInitializationError implements spec.md §4.9's post-init error
// handling: it always logs the failure, and for the codes in autoFreeCodes
// also frees the feature so a future scan doesn't keep presenting a
// handle that can never initialize successfully. code values outside the
// known enum are logged as unknown rather than silently ignored.
func (c *Catalog) OnFeatureInitializationError(h Handle, code InitErrorCode) error {
	logger.Warnf("feature init error: handle=0x%x code=%s", uint32(h), code)

	if !autoFreeCodes[code] {
		return nil
	}

	if err := c.FreeFeature(h); err != nil {
		return err
	}

	c.logf("auto-freed handle 0x%x after init error %s", uint32(h), code)

	return nil
}
