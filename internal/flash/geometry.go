package flash

// Geometry computes the pure, side-effect-free slot and RAM arithmetic of
// spec.md §4.2. It holds no flash state of its own — only the controller
// handle needed to ask for sizes and bounds — so two Geometry values over
// the same Controller and the same maxFeatures are always interchangeable.
type Geometry struct {
	ctrl        Controller
	maxFeatures uint32
	ramAlign    uint32
}

// NewGeometry builds a Geometry over ctrl for a catalog configured with
// maxFeatures slots and ramAlign-byte RAM alignment.
func NewGeometry(ctrl Controller, maxFeatures, ramAlign uint32) *Geometry {
	return &Geometry{ctrl: ctrl, maxFeatures: maxFeatures, ramAlign: ramAlign}
}

// AreaSize returns kf_end() - kf_start().
func (g *Geometry) AreaSize() uint32 {
	return g.ctrl.KFEnd() - g.ctrl.KFStart()
}

// SlotSize returns (kf_area_size() / subsector_size() / max_features) *
// subsector_size(), or 0 when max_features is 0.
func (g *Geometry) SlotSize() uint32 {
	if g.maxFeatures == 0 {
		return 0
	}

	subsectors := g.AreaSize() / g.ctrl.SubsectorSize()

	return (subsectors / g.maxFeatures) * g.ctrl.SubsectorSize()
}

// SlotBase returns the absolute base address of slot index i.
func (g *Geometry) SlotBase(i uint32) uint32 {
	return g.ctrl.KFStart() + i*g.SlotSize()
}

// NextSlot returns the slot base following ptr, or (0, false) when that
// slot would fall at or past kf_end().
func (g *Geometry) NextSlot(ptr uint32) (uint32, bool) {
	next := ptr + g.SlotSize()
	if next < g.ctrl.KFEnd() {
		return next, true
	}

	return 0, false
}

// NextAlignedRAM returns floor(addr, ramAlign) + ramAlign — the next
// RAM-aligned address strictly greater than addr.
func (g *Geometry) NextAlignedRAM(addr uint32) uint32 {
	floor := (addr / g.ramAlign) * g.ramAlign

	return floor + g.ramAlign
}
