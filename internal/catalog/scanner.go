package catalog

import (
	"encoding/binary"

	jujerrors "github.com/juju/errors"
)

// Rebuild implements the boot-time slot scanner of spec.md §4.3
// (count_allocated_features). It walks slots from the start of the KF area,
// classifying each by its header's status word, until it reaches a FREE
// slot or runs out of slots. USED slots are counted and assigned a dense,
// sequential feature_index; a slot whose stored feature_index has drifted
// from that sequence (because an earlier feature in the sequence was freed)
// is compacted in place. REMOVED slots are skipped and contribute no index.
//
// Rebuild resets the cached view before scanning, so a failed Rebuild
// leaves nbFeatures and the last-feature pointer at whatever partial state
// the scan reached — callers should treat a returned error as the catalog
// being unusable until a subsequent Rebuild succeeds.
func (c *Catalog) Rebuild() (uint32, error) {
	c.nbFeatures = 0
	c.lastFeaturePtr = 0

	var next uint32

	for slot := uint32(0); slot < c.maxFeatures; slot++ {
		base := c.geometry.SlotBase(slot)

		hdr, err := c.readHeader(base)
		if err != nil {
			return c.nbFeatures, jujerrors.Annotatef(err, "catalog: scan slot %d", slot)
		}

		switch c.classify(hdr) {
		case StateUsed:
			if hdr.FeatureIndex != next {
				c.logf("compacting slot %d: feature_index %d -> %d", slot, hdr.FeatureIndex, next)

				if err := c.rewriteFeatureIndex(base, next); err != nil {
					return c.nbFeatures, jujerrors.Annotatef(err, "catalog: compact slot %d", slot)
				}
			}

			c.nbFeatures++
			c.lastFeaturePtr = Handle(base)
			next++

		case StateRemoved:
			// Skipped: a removed slot holds no live feature_index.

		default:
			// First FREE slot: everything past it is assumed untouched.
			return c.nbFeatures, nil
		}
	}

	return c.nbFeatures, nil
}

// NbFeatures returns the cached live feature count populated by the last
// Rebuild and kept current by AllocateFeature and FreeFeature.
func (c *Catalog) NbFeatures() uint32 {
	return c.nbFeatures
}

// firstReusableSlot returns the slot AllocateFeature should claim for a new
// install: the first REMOVED slot found during a forward scan, so a
// previous feature's erased subsectors and header bytes are recycled
// instead of advancing into virgin flash, or — if none is found before the
// scan reaches a FREE slot — that FREE slot itself.
func (c *Catalog) firstReusableSlot() (uint32, bool) {
	var removedBase uint32
	haveRemoved := false

	for slot := uint32(0); slot < c.maxFeatures; slot++ {
		base := c.geometry.SlotBase(slot)

		hdr, err := c.readHeader(base)
		if err != nil {
			return 0, false
		}

		switch c.classify(hdr) {
		case StateRemoved:
			if !haveRemoved {
				removedBase = base
				haveRemoved = true
			}
		case StateFree:
			if haveRemoved {
				return removedBase, true
			}

			return base, true
		}
	}

	if haveRemoved {
		return removedBase, true
	}

	return 0, false
}

// firstFreeSlot returns the base address of the first FREE slot encountered
// during a forward scan, or ok=false if every slot is USED or REMOVED.
func (c *Catalog) firstFreeSlot() (uint32, bool) {
	for slot := uint32(0); slot < c.maxFeatures; slot++ {
		base := c.geometry.SlotBase(slot)

		hdr, err := c.readHeader(base)
		if err != nil {
			return 0, false
		}

		if c.classify(hdr) == StateFree {
			return base, true
		}
	}

	return 0, false
}

// rewriteFeatureIndex patches the feature_index field of the USED header at
// base to newIndex.
func (c *Catalog) rewriteFeatureIndex(base uint32, newIndex uint32) error {
	return c.patchHeaderField(base, offsetFeatureIndex, newIndex)
}

// patchHeaderField rewrites a single 4-byte field of the header at base.
// NOR flash writes can only clear bits, never set them, so a field change
// that would need to set a 0 bit back to 1 cannot be programmed over the
// existing content; patchHeaderField always goes through the safe path of
// reading back the whole containing subsector, patching the field in that
// copy, erasing the subsector, and reprogramming it page by page —
// preserving every other byte in the subsector, including any ROM content
// sharing it with the header.
func (c *Catalog) patchHeaderField(base uint32, fieldOffset uint32, value uint32) error {
	subSize := c.ctrl.SubsectorSize()
	subBase := c.ctrl.SubsectorBase(base)

	buf, err := c.ctrl.Read(subBase, int(subSize))
	if err != nil {
		return jujerrors.Annotatef(err, "catalog: read subsector at 0x%x for header patch", subBase)
	}

	off := base - subBase + fieldOffset
	binary.LittleEndian.PutUint32(buf[off:off+4], value)

	return c.withMMapDisabled(func() error {
		if err := c.ctrl.EraseSubsector(subBase); err != nil {
			return wrapErr("catalog.patchHeaderField", ErrFlashEraseFailed)
		}

		pageSize := int(c.ctrl.PageSize())

		for off := 0; off < len(buf); off += pageSize {
			end := off + pageSize
			if end > len(buf) {
				end = len(buf)
			}

			if err := c.ctrl.PageWrite(buf[off:end], subBase+uint32(off), end-off); err != nil {
				return wrapErr("catalog.patchHeaderField", ErrFlashWriteFailed)
			}
		}

		return nil
	})
}
