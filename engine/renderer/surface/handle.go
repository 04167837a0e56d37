package surface

import (
	"fmt"
)

// Handle references a surface owned by a Manager. The zero Handle is unbound.
//
// A handle stays valid until the surface is released or reallocated by a resize, after which
// the manager rejects it with ErrStaleHandle.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether the handle is unbound.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

func (h Handle) String() string {
	if h.IsZero() {
		return "surface(unbound)"
	}
	return fmt.Sprintf("surface(%d@%d)", h.index, h.generation)
}
