package catalog

// AllocateFeature implements the install engine of spec.md §4.6. It claims
// the first REMOVED slot it finds — recycling a previous feature's erased
// subsectors — or the first FREE slot if none is REMOVED, sub-allocates a
// RAM region for it (reusing a REMOVED slot's RAM region when the reuse
// policy of §4.5 allows it), and commits a new USED header. It does not
// write any ROM content itself; callers stream the feature's image in
// afterward with CopyToROM and FlushCopyToROM.
func (c *Catalog) AllocateFeature(romSize, ramSize uint32) (Handle, error) {
	capacity := c.geometry.SlotSize()
	if capacity < HeaderSize || romSize > capacity-HeaderSize {
		return 0, wrapErr("catalog.AllocateFeature", ErrROMTooLarge)
	}

	if ramSize > c.ramSize {
		return 0, wrapErr("catalog.AllocateFeature", ErrRAMTooLarge)
	}

	// Rebuild first, matching the original's allocateFeature calling
	// getAllocatedFeaturesCount() before picking a slot: it compacts every
	// USED slot's feature_index down to a dense sequence, so the new
	// feature's index (c.nbFeatures, assigned below) can never collide with
	// a stale, uncompacted index left behind by an earlier FreeFeature.
	if _, err := c.Rebuild(); err != nil {
		return 0, err
	}

	base, ok := c.firstReusableSlot()
	if !ok {
		return 0, wrapErr("catalog.AllocateFeature", ErrTooManyFeatures)
	}

	ramAddr, err := c.allocateRAM(base, ramSize)
	if err != nil {
		return 0, err
	}

	subsectorSize := c.ctrl.SubsectorSize()
	nbSubsectors := ceilDiv(HeaderSize+romSize, subsectorSize)

	hdr := Header{
		Status:       c.usedMagic,
		NbSubsectors: nbSubsectors,
		ROMAddress:   base + HeaderSize,
		ROMSize:      romSize,
		RAMAddress:   ramAddr,
		RAMSize:      ramSize,
		FeatureIndex: c.nbFeatures,
		Reserved:     0,
	}

	if err := c.commitNewHeader(base, nbSubsectors, hdr); err != nil {
		return 0, err
	}

	c.nbFeatures++
	c.lastFeaturePtr = Handle(base)

	return Handle(base), nil
}

// commitNewHeader erases the nbSubsectors subsectors starting at base and
// programs the header into the first page. The rest of that first page,
// and every subsequent page in the slot, are left erased for
// CopyToROM/FlushCopyToROM to stream into afterward.
func (c *Catalog) commitNewHeader(base uint32, nbSubsectors uint32, hdr Header) error {
	subsectorSize := c.ctrl.SubsectorSize()
	pageSize := c.ctrl.PageSize()

	return c.withMMapDisabled(func() error {
		for i := uint32(0); i < nbSubsectors; i++ {
			addr := base + i*subsectorSize
			if err := c.ctrl.EraseSubsector(addr); err != nil {
				return wrapErr("catalog.commitNewHeader", ErrFlashEraseFailed)
			}
		}

		page := make([]byte, pageSize)
		for i := range page {
			page[i] = 0xFF
		}

		encoded := EncodeHeader(hdr)
		copy(page, encoded[:])

		if err := c.ctrl.PageWrite(page, base, len(page)); err != nil {
			return wrapErr("catalog.commitNewHeader", ErrFlashWriteFailed)
		}

		return nil
	})
}

// FreeFeature implements uninstall (spec.md §4.7): the header word is the
// commit point, so freeing is a single status-field patch from USED to
// REMOVED. ROM and RAM content are left in place — ROM until the slot is
// reused and erased by a later AllocateFeature, RAM until reuseRemovedRAM
// claims it or the arena's high-water mark simply moves past it.
func (c *Catalog) FreeFeature(h Handle) error {
	if !h.Valid() {
		return wrapErr("catalog.FreeFeature", ErrInvalidHandle)
	}

	hdr, err := c.readHeader(uint32(h))
	if err != nil {
		return err
	}

	if c.classify(hdr) != StateUsed {
		return wrapErr("catalog.FreeFeature", ErrFeatureNotUsed)
	}

	if err := c.patchHeaderField(uint32(h), offsetStatus, c.removedMagic); err != nil {
		return err
	}

	if c.nbFeatures > 0 {
		c.nbFeatures--
	}

	return nil
}

// ceilDiv computes ceil(a/b) for positive b.
func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}

	return (a + b - 1) / b
}
