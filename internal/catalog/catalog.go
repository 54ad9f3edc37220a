// Package catalog implements the flash-backed feature catalog and
// installation engine of spec.md: slot layout, header encoding, the
// install/uninstall protocol, the page-buffered streaming copy-to-ROM
// writer, the RAM-region sub-allocator, and boot-time index compaction.
package catalog

import (
	"hash"

	"github.com/OneOfOne/xxhash"
	jujerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/kf-flash-catalog/internal/flash"
	"github.com/zhukovaskychina/kf-flash-catalog/logger"
)

// Catalog is the single owning object holding the process-wide mutable
// state spec.md's design notes describe as module-level globals in the
// original: the last-seen USED header, the live feature count, the
// staging page buffer, and the copy-to-ROM carry-over trackers. Callers
// must serialize calls to a Catalog themselves — it is not safe for
// concurrent use, by design (spec.md §5).
type Catalog struct {
	ctrl     flash.Controller
	geometry *flash.Geometry

	maxFeatures uint32
	ramAlign    uint32
	ramBase     uint32
	ramSize     uint32

	usedMagic    uint32
	removedMagic uint32

	// Cached view, rebuilt by Rebuild.
	lastFeaturePtr Handle
	nbFeatures     uint32

	// Staging page, reused by header writes and streamed content.
	pageBuf []byte

	// Copy-to-ROM carry-over tracker. pending is false when no partial
	// page is buffered. pageStartOffset is the offset within the page that
	// the current buffered run actually started dirtying — bytes before it
	// (e.g. a header sharing the same page) are read back from flash and
	// reprogrammed with their existing values when the page is flushed.
	pending           bool
	targetPageAddress uint32
	pageStartOffset   uint32
	writeBufferOffset uint32
	streamDigest      hash.Hash64
}

// Options configures a new Catalog. It mirrors the build-time constants of
// spec.md §6 that are not already owned by the flash.Controller (page
// size, subsector size, and KF bounds all come from the controller).
type Options struct {
	MaxFeatures  uint32
	RAMAlign     uint32
	RAMBase      uint32
	RAMSize      uint32
	UsedMagic    uint32
	RemovedMagic uint32
}

// New builds a Catalog over ctrl. It does not scan flash — call Rebuild to
// populate the cached view before issuing any other operation, matching
// the boot-time contract of spec.md §4.3.
func New(ctrl flash.Controller, opts Options) (*Catalog, error) {
	if opts.MaxFeatures == 0 {
		return nil, wrapErr("catalog.New", ErrConfigMaxFeaturesZero)
	}

	usedMagic := opts.UsedMagic
	if usedMagic == 0 {
		usedMagic = StatusUsed
	}

	removedMagic := opts.RemovedMagic
	if removedMagic == 0 {
		removedMagic = StatusRemoved
	}

	c := &Catalog{
		ctrl:         ctrl,
		geometry:     flash.NewGeometry(ctrl, opts.MaxFeatures, opts.RAMAlign),
		maxFeatures:  opts.MaxFeatures,
		ramAlign:     opts.RAMAlign,
		ramBase:      opts.RAMBase,
		ramSize:      opts.RAMSize,
		usedMagic:    usedMagic,
		removedMagic: removedMagic,
		pageBuf:      make([]byte, ctrl.PageSize()),
		streamDigest: xxhash.New64(),
	}

	return c, nil
}

// readHeader reads and decodes the header at the given slot base address.
// Memory-mapped mode must already be enabled; readHeader does not toggle
// it, since reads are expected to interleave freely with other reads.
func (c *Catalog) readHeader(addr uint32) (Header, error) {
	buf, err := c.ctrl.Read(addr, HeaderSize)
	if err != nil {
		return Header{}, jujerrors.Annotatef(err, "catalog: read header at 0x%x", addr)
	}

	return DecodeHeader(buf), nil
}

// withMMapDisabled disables memory-mapped mode, runs fn, and re-enables it
// regardless of fn's outcome — the bracketing discipline spec.md §5
// requires around every mutation. Control leaves with mmap disabled only
// when re-enabling itself fails; that failure then takes priority in the
// returned error since a caller proceeding with mmap disabled would
// silently read stale data.
func (c *Catalog) withMMapDisabled(fn func() error) error {
	if err := c.ctrl.DisableMMap(); err != nil {
		return wrapErr("catalog.withMMapDisabled", ErrMMapToggleFailed)
	}

	fnErr := fn()

	if err := c.ctrl.EnableMMap(); err != nil {
		return wrapErr("catalog.withMMapDisabled", ErrMMapToggleFailed)
	}

	return fnErr
}

func (c *Catalog) logf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// classify maps a header's status word to a State using this catalog's
// configured magic numbers, so a build with non-default USED_MAGIC /
// REMOVED_MAGIC values (spec.md §6) still classifies slots correctly.
func (c *Catalog) classify(h Header) State {
	switch h.Status {
	case c.usedMagic:
		return StateUsed
	case c.removedMagic:
		return StateRemoved
	default:
		return StateFree
	}
}
