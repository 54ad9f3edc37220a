// Package util holds small helpers used by the demo binary that don't
// belong to the catalog's own domain.
package util

import (
	"github.com/OneOfOne/xxhash"
)

// HashCode computes the xxhash64 digest of key. It is used by cmd/kfdemo to
// independently check a feature image against the catalog's streamed
// digest before installing it — a diagnostic, not part of the on-flash
// format.
func HashCode(key []byte) uint64 {
	h := xxhash.New64()
	h.Write(key)
	return h.Sum64()
}
