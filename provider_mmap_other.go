//go:build !unix

package obstack

// NewMmapProvider is unavailable on non-unix build targets; it returns a
// Provider whose Acquire always fails rather than a compile error, so
// callers that select it dynamically (by flag or config) still build on
// every target. New panics when given this Provider, since its Acquire
// never yields memory.
func NewMmapProvider() Provider { return unsupportedProvider{} }

type unsupportedProvider struct{}

func (unsupportedProvider) UnitSize() int      { return int(MaxAlign) }
func (unsupportedProvider) Acquire(int) []byte { return nil }
func (unsupportedProvider) Release([]byte)     {}
