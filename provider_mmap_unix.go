//go:build unix

package obstack

import "golang.org/x/sys/unix"

// mmapProvider backs an arena with anonymous, page-aligned memory obtained
// directly from the kernel via mmap, the same syscall
// momentics-hioload-ws/internal/transport uses for its io_uring submission
// and completion rings. Unlike sliceProvider and directioProvider, the
// returned bytes are not tracked by the Go garbage collector: Release must
// actually munmap them, and this provider must not back arenas allocating
// types that contain Go pointers, since the collector cannot see or follow
// references stored off-heap.
type mmapProvider struct {
	pageSize int
}

// NewMmapProvider returns a Provider backed by anonymous private mmap
// pages. Only safe for arenas storing pointer-free payloads.
func NewMmapProvider() Provider {
	return mmapProvider{pageSize: unix.Getpagesize()}
}

func (p mmapProvider) UnitSize() int { return p.pageSize }

func (p mmapProvider) Acquire(units int) []byte {
	if units <= 0 {
		return nil
	}
	length := units * p.pageSize
	data, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil
	}
	return data
}

func (mmapProvider) Release(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Munmap(buf)
}
