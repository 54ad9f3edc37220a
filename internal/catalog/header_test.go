package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Status:       StatusUsed,
		NbSubsectors: 3,
		ROMAddress:   0x1000 + HeaderSize,
		ROMSize:      1024,
		RAMAddress:   0x2000,
		RAMSize:      8192,
		FeatureIndex: 2,
		Reserved:     0,
	}

	buf := EncodeHeader(h)
	assert.Equal(t, HeaderSize, len(buf))

	got := DecodeHeader(buf[:])
	assert.Equal(t, h, got)
}

func TestHeaderState(t *testing.T) {
	assert.Equal(t, StateUsed, Header{Status: StatusUsed}.State())
	assert.Equal(t, StateRemoved, Header{Status: StatusRemoved}.State())
	assert.Equal(t, StateFree, Header{Status: StatusFree}.State())
	assert.Equal(t, StateFree, Header{Status: 0}.State())
}
