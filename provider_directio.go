package obstack

import "github.com/ncw/directio"

// directioProvider acquires memory through directio.AlignedBlock, the same
// primitive alexhholmes-boulder's storage layer uses to get page-aligned
// buffers for O_DIRECT file I/O. Here it serves a different purpose: a real,
// library-provided guarantee of alignment stricter than MaxAlign, rather
// than hand-rolled pointer arithmetic. The returned block is still ordinary
// GC-tracked Go memory, so Release is a no-op and arbitrary Go types
// (including ones holding pointers) remain safe to allocate in it.
type directioProvider struct{}

// NewDirectIOProvider returns a Provider whose units are directio's block
// size and whose blocks are aligned to the platform's direct-I/O alignment
// (always a multiple of MaxAlign).
func NewDirectIOProvider() Provider { return directioProvider{} }

func (directioProvider) UnitSize() int { return directio.BlockSize }

func (p directioProvider) Acquire(units int) []byte {
	if units <= 0 {
		return nil
	}
	return directio.AlignedBlock(units * p.UnitSize())
}

func (directioProvider) Release([]byte) {
	// directio.AlignedBlock returns regular Go memory; nothing to free.
}
