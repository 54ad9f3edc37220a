package flash

import (
	"fmt"
)

// Simulator is an in-memory NOR flash emulator used by tests and
// cmd/kfdemo in place of a real board support package. It models the two
// properties that make NOR flash interesting: erase granularity (a whole
// subsector at a time, resetting bytes to 0xFF) coarser than write
// granularity (one page at a time), and the rule that a program operation
// can only ever clear bits, never set them — so a page may be written more
// than once between erases as long as each write only narrows the bits
// already there (e.g. a header write followed later by a write of the
// adjoining ROM bytes in the same page).
type Simulator struct {
	data []byte

	flashBase     uint32
	pageSize      uint32
	subsectorSize uint32
	kfStart       uint32
	kfEnd         uint32

	mmapEnabled bool

	// Fault injection for exercising the error paths of spec.md §7. Each
	// flag fires once and resets itself.
	FailNextErase      bool
	FailNextWrite      bool
	FailNextMMapToggle bool
}

// NewSimulator builds a Simulator covering [flashBase, flashBase+flashSize)
// with the given page/subsector sizes, designating [kfStart, kfStart+kfSize)
// as the KF region. flashBase and kfStart must both be subsector-aligned.
func NewSimulator(flashBase, flashSize, pageSize, subsectorSize, kfStart, kfSize uint32) (*Simulator, error) {
	if pageSize == 0 || subsectorSize == 0 || subsectorSize%pageSize != 0 {
		return nil, fmt.Errorf("flash: subsector_size must be a non-zero multiple of page_size")
	}

	if flashBase%subsectorSize != 0 || kfStart%subsectorSize != 0 {
		return nil, fmt.Errorf("flash: flash_base and kf_start must be subsector-aligned")
	}

	if kfStart < flashBase || kfStart+kfSize > flashBase+flashSize {
		return nil, fmt.Errorf("flash: kf region does not fit inside the flash device")
	}

	data := make([]byte, flashSize)
	for i := range data {
		data[i] = 0xFF
	}

	return &Simulator{
		data:          data,
		flashBase:     flashBase,
		pageSize:      pageSize,
		subsectorSize: subsectorSize,
		kfStart:       kfStart,
		kfEnd:         kfStart + kfSize,
		mmapEnabled:   true,
	}, nil
}

func (s *Simulator) Startup() error {
	s.mmapEnabled = true
	return nil
}

func (s *Simulator) EraseSubsector(addr uint32) error {
	if s.FailNextErase {
		s.FailNextErase = false
		return ErrEraseFailed
	}

	if addr%s.subsectorSize != 0 {
		return fmt.Errorf("%w: erase address 0x%x is not subsector-aligned", ErrEraseFailed, addr)
	}

	off, err := s.offset(addr, s.subsectorSize)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEraseFailed, err)
	}

	for i := uint32(0); i < s.subsectorSize; i++ {
		s.data[off+i] = 0xFF
	}

	return nil
}

func (s *Simulator) PageWrite(buf []byte, addr uint32, length int) error {
	if s.FailNextWrite {
		s.FailNextWrite = false
		return ErrWriteFailed
	}

	pageBase := s.PageBase(addr)
	if addr+uint32(length) > pageBase+s.pageSize {
		return ErrNotPageAligned
	}

	if uint32(length) > s.pageSize || length > len(buf) {
		return ErrWriteTooLarge
	}

	off, err := s.offset(addr, s.pageSize)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWriteFailed, err)
	}

	for i := 0; i < length; i++ {
		cur := s.data[off+uint32(i)]
		want := buf[i]

		if want&^cur != 0 {
			return fmt.Errorf("%w: write at 0x%x would set a bit not cleared by erase", ErrWriteFailed, addr+uint32(i))
		}

		s.data[off+uint32(i)] = cur & want
	}

	return nil
}

func (s *Simulator) Read(addr uint32, n int) ([]byte, error) {
	if !s.mmapEnabled {
		return nil, ErrMMapDisabled
	}

	off, err := s.offset(addr, uint32(n))
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, s.data[off:off+uint32(n)])

	return out, nil
}

func (s *Simulator) EnableMMap() error {
	if s.FailNextMMapToggle {
		s.FailNextMMapToggle = false
		return ErrMMapToggleFailed
	}

	s.mmapEnabled = true

	return nil
}

func (s *Simulator) DisableMMap() error {
	if s.FailNextMMapToggle {
		s.FailNextMMapToggle = false
		return ErrMMapToggleFailed
	}

	s.mmapEnabled = false

	return nil
}

func (s *Simulator) SubsectorBase(addr uint32) uint32 {
	rel := addr - s.flashBase
	return s.flashBase + (rel/s.subsectorSize)*s.subsectorSize
}

func (s *Simulator) PageBase(addr uint32) uint32 {
	rel := addr - s.flashBase
	return s.flashBase + (rel/s.pageSize)*s.pageSize
}

func (s *Simulator) SubsectorSize() uint32 { return s.subsectorSize }
func (s *Simulator) PageSize() uint32      { return s.pageSize }
func (s *Simulator) KFStart() uint32       { return s.kfStart }
func (s *Simulator) KFEnd() uint32         { return s.kfEnd }

// offset validates that [addr, addr+n) lies within the simulated device and
// returns its offset into data.
func (s *Simulator) offset(addr, n uint32) (uint32, error) {
	if addr < s.flashBase || addr+n > s.flashBase+uint32(len(s.data)) {
		return 0, fmt.Errorf("address range [0x%x, 0x%x) out of bounds", addr, addr+n)
	}

	return addr - s.flashBase, nil
}

var _ Controller = (*Simulator)(nil)
