package obstack

import "unsafe"

// Provider is the abstract backing-memory capability an Arena is built on:
// it yields blocks of raw bytes aligned to MaxAlign and reclaims them on
// request. Arenas never allocate memory any other way.
//
// A Provider's unit is the granularity Acquire works in; UnitSize must
// itself be a multiple of MaxAlign so that a returned block's address is
// always max-aligned regardless of how many units were requested.
type Provider interface {
	// UnitSize returns the size in bytes of one allocation unit.
	UnitSize() int
	// Acquire returns n contiguous units of backing memory, or nil if the
	// request cannot be satisfied.
	Acquire(units int) []byte
	// Release returns a block previously returned by Acquire. Providers
	// backed by ordinary Go memory may treat this as a no-op; providers
	// backed by off-heap memory must actually free it here.
	Release(buf []byte)
}

// sliceProvider is the default Provider: ordinary garbage-collected Go
// memory, shaped into units whose natural alignment is MaxAlign.
type sliceProvider struct{}

func (sliceProvider) UnitSize() int { return int(MaxAlign) }

func (sliceProvider) Acquire(units int) []byte {
	if units <= 0 {
		return nil
	}
	backing := make([]maxAlignType, units)
	return unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), units*int(MaxAlign))
}

func (sliceProvider) Release([]byte) {
	// Go's garbage collector reclaims the backing array once unreferenced.
}

// nullProvider never hands out memory. It backs arenas constructed over an
// externally supplied buffer (placed mode), where the arena does not own
// the bytes and Acquire must never be called to obtain them.
type nullProvider struct{}

func (nullProvider) UnitSize() int      { return int(MaxAlign) }
func (nullProvider) Acquire(int) []byte { return nil }
func (nullProvider) Release([]byte)     {}

// DefaultProvider is the Provider used by New when no WithProvider option
// is given.
func DefaultProvider() Provider { return sliceProvider{} }
