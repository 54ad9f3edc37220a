package catalog

// allocateRAM implements the RAM arena sub-allocator of spec.md §4.5 for the
// slot AllocateFeature is about to claim at slotBase (firstReusableSlot's
// result). It reuses that specific slot's recorded RAM region, literally
// preserved, when it is still REMOVED and large enough for the new request;
// reusing it avoids growing the arena's high-water mark at all. Failing
// that, it bump-allocates a fresh, alignment-rounded region from the
// current high-water mark.
func (c *Catalog) allocateRAM(slotBase uint32, size uint32) (uint32, error) {
	if addr, ok := c.reuseRemovedRAM(slotBase, size); ok {
		return addr, nil
	}

	return c.bumpAllocateRAM(size)
}

// reuseRemovedRAM checks only the header at slotBase — the specific slot
// AllocateFeature is about to claim — for a REMOVED RAM region that still
// fits inside the arena and is large enough to hold size bytes (spec.md's
// reuse policy: new size <= old size, and the region is scoped to the slot
// being reused, not any REMOVED slot in the catalog). A REMOVED region
// belonging to a different slot is never touched here: that slot's own
// header still claims it, and handing it out early would let two USED
// features share the same RAM at once.
func (c *Catalog) reuseRemovedRAM(slotBase uint32, size uint32) (uint32, bool) {
	hdr, err := c.readHeader(slotBase)
	if err != nil {
		return 0, false
	}

	if c.classify(hdr) != StateRemoved || hdr.RAMSize == 0 {
		return 0, false
	}

	if size <= hdr.RAMSize && c.ramRegionInBounds(hdr.RAMAddress, hdr.RAMSize) {
		return hdr.RAMAddress, true
	}

	return 0, false
}

// bumpAllocateRAM advances past the highest RAM region currently recorded
// by any USED header, aligns the result up to ramAlign, and fails with
// ErrRAMOverflow if the request would run past the arena.
func (c *Catalog) bumpAllocateRAM(size uint32) (uint32, error) {
	addr := c.ceilAlign(c.ramHighWaterMark())

	if addr < c.ramBase {
		addr = c.ramBase
	}

	if addr+size > c.ramBase+c.ramSize {
		return 0, wrapErr("catalog.bumpAllocateRAM", ErrRAMOverflow)
	}

	return addr, nil
}

// ramHighWaterMark returns the end address (exclusive) of the furthest RAM
// region recorded by any USED header, or ramBase if no USED feature holds
// RAM. Regions recorded by REMOVED headers are not counted.
func (c *Catalog) ramHighWaterMark() uint32 {
	high := c.ramBase

	for slot := uint32(0); slot < c.maxFeatures; slot++ {
		base := c.geometry.SlotBase(slot)

		hdr, err := c.readHeader(base)
		if err != nil {
			continue
		}

		switch c.classify(hdr) {
		case StateUsed:
			if end := hdr.RAMAddress + hdr.RAMSize; end > high {
				high = end
			}
		}
	}

	return high
}

func (c *Catalog) ramRegionInBounds(addr, size uint32) bool {
	return addr >= c.ramBase && size <= c.ramSize && addr+size <= c.ramBase+c.ramSize
}

// ceilAlign rounds addr up to the next multiple of ramAlign, leaving
// already-aligned addresses untouched.
func (c *Catalog) ceilAlign(addr uint32) uint32 {
	if c.ramAlign == 0 {
		return addr
	}

	rem := addr % c.ramAlign
	if rem == 0 {
		return addr
	}

	return addr + (c.ramAlign - rem)
}
