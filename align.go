package obstack

import "unsafe"

// maxAlignType is a struct whose natural alignment equals the strictest
// scalar alignment the Go compiler will produce on the target platform.
// complex128 carries the widest alignment requirement among the basic
// types, so a struct built around it stands in for C's max_align_t.
type maxAlignType struct {
	_ complex128
}

// MaxAlign is the platform's strictest scalar alignment, in bytes. Every
// chunk header and every chunk payload start on a MaxAlign boundary.
const MaxAlign = unsafe.Alignof(maxAlignType{})

// alignUp rounds addr up to the next multiple of align, where align must be
// a power of two.
func alignUp(addr uintptr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// padTo returns the number of bytes needed to advance addr to the next
// multiple of align.
func padTo(addr uintptr, align uintptr) uintptr {
	return alignUp(addr, align) - addr
}

// isAligned reports whether addr already satisfies align.
func isAligned(addr uintptr, align uintptr) bool {
	return addr&(align-1) == 0
}
