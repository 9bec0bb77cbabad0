package obstack

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
)

// xorCookie masks every stored destructor tag before it is written into a
// chunk header, and unmasks it again on load. checksumCookie is folded into
// every chunk header's integrity checksum. Both are process-wide, drawn once
// from a real entropy source rather than the uninitialized-heap trick the
// original C++ implementation used, and are safe to read concurrently from
// any number of arenas since they never change after init.
var (
	xorCookie      uint64
	checksumCookie uint64
	cookiesOnce    sync.Once
)

func initCookies() {
	cookiesOnce.Do(func() {
		var buf [16]byte
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failing indicates a broken host environment;
			// there is no safe fallback that preserves the security
			// rationale, so the process is not viable.
			panic("obstack: failed to read entropy for pointer-security cookies: " + err.Error())
		}
		xorCookie = binary.LittleEndian.Uint64(buf[0:8])
		checksumCookie = binary.LittleEndian.Uint64(buf[8:16])
	})
}

func init() {
	initCookies()
}

// maskTag XORs a destructor tag with the process cookie. Applying it twice
// recovers the original value. Sentinel tags are kept as unmasked constants
// and masked at each comparison against the stored (masked) form.
func maskTag(tag uint64) uint64 {
	return tag ^ xorCookie
}

// makeChecksum combines a chunk's prev link and masked destructor tag with
// the process checksum cookie.
func makeChecksum(prev uintptr, maskedTag uint64) uint64 {
	return uint64(prev) ^ maskedTag ^ checksumCookie
}
