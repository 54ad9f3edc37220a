// Package flash defines the contract the catalog uses to talk to the
// physical NOR flash controller, plus the pure geometry arithmetic layered
// on top of it. The contract itself is a boundary: spec.md treats the real
// controller as an external collaborator ("invoked, not specified here"),
// so this package only describes the shape a board support package must
// fill in, and ships an in-memory Simulator that fills it in for tests and
// the demo binary.
package flash

import "github.com/pkg/errors"

// Sentinel errors a Controller implementation may wrap with call-site
// context via github.com/pkg/errors.Wrap.
var (
	ErrEraseFailed      = errors.New("flash: erase failed")
	ErrWriteFailed      = errors.New("flash: page write failed")
	ErrMMapToggleFailed = errors.New("flash: memory-mapped mode toggle failed")
	ErrNotPageAligned   = errors.New("flash: write range crosses a page boundary")
	ErrWriteTooLarge    = errors.New("flash: write exceeds page size")
	ErrMMapDisabled     = errors.New("flash: read attempted while memory-mapped mode is disabled")
)

// Controller is the flash adapter contract of spec.md §4.1. Addresses are
// absolute, native-width addresses into the memory-mapped flash window.
//
// A program operation can only clear bits, never set them, so callers must
// erase the containing subsector before programming any byte for the first
// time after that erase; a page may be written more than once between
// erases as long as each write only narrows bits already cleared by an
// earlier write or the erase itself. Memory-mapped mode must be disabled
// before any mutating call and re-enabled before any subsequent read
// through the mapped window — Read enforces this by returning
// ErrMMapDisabled otherwise.
type Controller interface {
	Startup() error

	EraseSubsector(addr uint32) error
	PageWrite(buf []byte, addr uint32, length int) error

	// Read returns a copy of n bytes starting at addr, as read through the
	// memory-mapped window. It is the safe adapter spec.md's design notes
	// ask for in place of a raw pointer dereference of a header record.
	Read(addr uint32, n int) ([]byte, error)

	EnableMMap() error
	DisableMMap() error

	SubsectorBase(addr uint32) uint32
	PageBase(addr uint32) uint32

	SubsectorSize() uint32
	PageSize() uint32

	KFStart() uint32
	KFEnd() uint32
}
