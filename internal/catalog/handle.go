package catalog

// Handle is the opaque identifier of an installed feature. In this design,
// per spec.md's design notes, it wraps the header's absolute flash
// address but is not meant to be arithmetic'd on by callers. The zero
// value is the invalid/"null" handle.
type Handle uint32

// Valid reports whether h is not the null handle.
func (h Handle) Valid() bool {
	return h != 0
}

// FeatureHandle implements get_feature_handle(i): it walks slots in order
// and returns the address of the USED slot whose FeatureIndex equals i,
// terminating at the first FREE slot. Returns the null handle if i is out
// of range or the USED slot with that index was never found (e.g. between
// a free-heavy catalog and a stale i).
func (c *Catalog) FeatureHandle(i uint32) Handle {
	if i >= c.nbFeatures {
		return 0
	}

	for slot := uint32(0); slot < c.maxFeatures; slot++ {
		base := c.geometry.SlotBase(slot)

		h, err := c.readHeader(base)
		if err != nil {
			return 0
		}

		switch c.classify(h) {
		case StateUsed:
			if h.FeatureIndex == i {
				return Handle(base)
			}
		case StateRemoved:
			// skip
		default:
			return 0
		}
	}

	return 0
}

// FeatureAddressROM implements get_feature_address_rom(h).
func (c *Catalog) FeatureAddressROM(h Handle) (uint32, bool) {
	hdr, err := c.readHeader(uint32(h))
	if err != nil || c.classify(hdr) != StateUsed {
		return 0, false
	}

	return hdr.ROMAddress, true
}

// FeatureAddressRAM implements get_feature_address_ram(h).
func (c *Catalog) FeatureAddressRAM(h Handle) (uint32, bool) {
	hdr, err := c.readHeader(uint32(h))
	if err != nil || c.classify(hdr) != StateUsed {
		return 0, false
	}

	return hdr.RAMAddress, true
}
