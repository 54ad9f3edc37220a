package catalog

import "encoding/binary"

// HeaderSize is the fixed, 16-byte-aligned size of a feature header
// (spec.md §3). The header sits at the start of the slot's first page; the
// rest of the slot, beginning in that same page, is the feature's ROM image.
const HeaderSize = 32

// Status words. StatusFree is implicit: an all-ones status word means the
// slot has never been written since its last erase.
const (
	StatusFree    uint32 = 0xFFFFFFFF
	StatusUsed    uint32 = 0x181C77E8
	StatusRemoved uint32 = 0x003ADCA7
)

// Field byte offsets within an encoded header, used by code that needs to
// patch a single field of an already-encoded buffer in place (the scanner's
// index compaction, and feature removal).
const (
	offsetStatus       = 0
	offsetFeatureIndex = 24
)

// Header is the value-typed, 32-byte feature header record of spec.md §3.
// It is always little-endian on the wire, matching the field table there.
type Header struct {
	Status       uint32
	NbSubsectors uint32
	ROMAddress   uint32
	ROMSize      uint32
	RAMAddress   uint32
	RAMSize      uint32
	FeatureIndex uint32
	Reserved     uint32
}

// State classifies a header by its status word.
type State int

const (
	StateFree State = iota
	StateUsed
	StateRemoved
)

func (h Header) State() State {
	switch h.Status {
	case StatusUsed:
		return StateUsed
	case StatusRemoved:
		return StateRemoved
	default:
		return StateFree
	}
}

// EncodeHeader serializes h into a fresh HeaderSize-byte buffer.
func EncodeHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte

	binary.LittleEndian.PutUint32(buf[0:4], h.Status)
	binary.LittleEndian.PutUint32(buf[4:8], h.NbSubsectors)
	binary.LittleEndian.PutUint32(buf[8:12], h.ROMAddress)
	binary.LittleEndian.PutUint32(buf[12:16], h.ROMSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.RAMAddress)
	binary.LittleEndian.PutUint32(buf[20:24], h.RAMSize)
	binary.LittleEndian.PutUint32(buf[24:28], h.FeatureIndex)
	binary.LittleEndian.PutUint32(buf[28:32], h.Reserved)

	return buf
}

// DecodeHeader parses a HeaderSize-byte buffer into a Header. The caller is
// responsible for having read it through the memory-mapped window.
func DecodeHeader(buf []byte) Header {
	return Header{
		Status:       binary.LittleEndian.Uint32(buf[0:4]),
		NbSubsectors: binary.LittleEndian.Uint32(buf[4:8]),
		ROMAddress:   binary.LittleEndian.Uint32(buf[8:12]),
		ROMSize:      binary.LittleEndian.Uint32(buf[12:16]),
		RAMAddress:   binary.LittleEndian.Uint32(buf[16:20]),
		RAMSize:      binary.LittleEndian.Uint32(buf[20:24]),
		FeatureIndex: binary.LittleEndian.Uint32(buf[24:28]),
		Reserved:     binary.LittleEndian.Uint32(buf[28:32]),
	}
}
