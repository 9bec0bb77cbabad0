package obstack

import "unsafe"

// config holds the options New and NewWithBuffer apply before constructing
// an Arena.
type config struct {
	provider Provider
	strict   bool
}

func newConfig(opts []Option) config {
	cfg := config{provider: DefaultProvider(), strict: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures an Arena at construction time.
type Option func(*config)

// WithProvider overrides the Provider an allocated-mode Arena acquires its
// backing memory from. Ignored by NewWithBuffer, which always uses the
// null provider since it never owns the memory it is given.
func WithProvider(p Provider) Option {
	return func(c *config) { c.provider = p }
}

// WithStrictChecks controls what happens when Dealloc is handed a pointer
// that fails validation (outside the arena, corrupted header, double free).
// true (the default) panics with a diagnostic, the debug-build posture the
// teacher's own code favors elsewhere (panic on use-after-release). false
// makes the call a silent no-op, the permitted release-build alternative.
func WithStrictChecks(strict bool) Option {
	return func(c *config) { c.strict = strict }
}

// Arena is a fixed-capacity, contiguous object-stack allocator. Objects are
// allocated by bumping a stack pointer and released in approximately
// reverse allocation order; out-of-order release tombstones a chunk without
// reclaiming its memory until every chunk above it is also released.
//
// An Arena is not safe for concurrent use: give each goroutine its own
// Arena (see Pool) rather than sharing one under a mutex.
type Arena struct {
	provider Provider
	backing  []byte
	owned    bool
	strict   bool

	basePtr   unsafe.Pointer
	capacity  uintptr
	topOffset uintptr
	topChunk  *chunkHeader

	destroyed bool
}

// New constructs an Arena with the given capacity in bytes, acquiring its
// backing memory from the configured Provider (sliceProvider by default).
// Panics if capacity is not positive or the provider cannot satisfy the
// request: both are programmer/environment errors, not ordinary results.
func New(capacity int, opts ...Option) *Arena {
	if capacity <= 0 {
		panic("obstack: capacity must be positive")
	}
	cfg := newConfig(opts)
	unit := cfg.provider.UnitSize()
	units := (capacity + unit - 1) / unit
	buf := cfg.provider.Acquire(units)
	if buf == nil {
		panic("obstack: provider failed to acquire backing memory")
	}
	return newArena(buf, cfg.provider, true, cfg.strict)
}

// NewWithBuffer constructs an Arena over caller-supplied memory (placed
// mode). The Arena never owns buf and never returns it to a provider, but
// every other operation behaves identically to an allocated-mode Arena.
// buf's starting address must already be aligned to MaxAlign; violating
// this is a programmer error.
func NewWithBuffer(buf []byte, opts ...Option) *Arena {
	if len(buf) == 0 {
		panic("obstack: supplied buffer is empty")
	}
	if !isAligned(uintptr(unsafe.Pointer(&buf[0])), MaxAlign) {
		panic("obstack: supplied buffer is not aligned to MaxAlign")
	}
	cfg := newConfig(opts)
	return newArena(buf, nullProvider{}, false, cfg.strict)
}

func newArena(buf []byte, provider Provider, owned bool, strict bool) *Arena {
	return &Arena{
		provider: provider,
		backing:  buf,
		owned:    owned,
		strict:   strict,
		basePtr:  unsafe.Pointer(&buf[0]),
		capacity: uintptr(len(buf)),
	}
}

func (a *Arena) ptrAt(offset uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(a.basePtr) + offset)
}

func (a *Arena) offsetOf(p unsafe.Pointer) uintptr {
	return uintptr(p) - uintptr(a.basePtr)
}

// reserve computes the padding needed to bring the bump pointer up to a
// max-aligned chunk-header start and reports whether size bytes of payload
// will still fit after that header. Go never requires a type's alignment
// to exceed MaxAlign, so the payload that follows a max-aligned header is
// always correctly aligned for T without any further arithmetic.
func (a *Arena) reserve(size uintptr) (pad uintptr, ok bool) {
	pad = padTo(a.topOffset+uintptr(a.basePtr), MaxAlign)
	need := pad + headerSize + size
	if a.topOffset+need > a.capacity {
		return 0, false
	}
	return pad, true
}

func (a *Arena) pushChunk(pad uintptr, realTag dtorTag) *chunkHeader {
	a.topOffset += pad
	h := newChunkHeader(a.ptrAt(a.topOffset), a.topChunk, realTag)
	a.topChunk = h
	a.topOffset += headerSize
	return h
}

// alloc is the shared implementation behind Alloc, AllocValue and AllocWith.
// init, if non-nil, is invoked on the zeroed payload before the allocation
// is committed; if it returns an error or panics, the arena is rolled back
// to its state before this call and the object never existed.
func alloc[T any](a *Arena, init func(*T) error) (*T, error) {
	var zero T
	size := unsafe.Sizeof(zero)
	pad, ok := a.reserve(size)
	if !ok {
		return nil, ErrCapacityExceeded
	}

	savedTop, savedChunk := a.topOffset, a.topChunk
	a.pushChunk(pad, thunkFor[T]())
	obj := (*T)(a.ptrAt(a.topOffset))
	*obj = zero
	a.topOffset += size

	if init == nil {
		return obj, nil
	}

	if err := runInit(init, obj); err != nil {
		a.topOffset, a.topChunk = savedTop, savedChunk
		return nil, err
	}
	return obj, nil
}

// runInit calls init, converting a panic into an error so alloc can roll
// back the arena the same way it would for a returned error. The original
// panic value is preserved inside the returned error's message.
func runInit[T any](init func(*T) error, obj *T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredError(r)
		}
	}()
	return init(obj)
}

// Alloc allocates a zero-valued T.
func Alloc[T any](a *Arena) (*T, error) {
	return alloc[T](a, nil)
}

// AllocValue allocates a T initialized by copying v into the arena.
func AllocValue[T any](a *Arena, v T) (*T, error) {
	return alloc[T](a, func(p *T) error {
		*p = v
		return nil
	})
}

// AllocWith allocates a zero-valued T and runs init on it before the
// allocation is committed. This is the forwarding-constructor capability
// spec Design Notes call for in place of the original's arity-exploded
// overload set: init can fail (return an error, or panic) and the arena
// will look exactly as it did before the call.
func AllocWith[T any](a *Arena, init func(*T) error) (*T, error) {
	return alloc[T](a, init)
}

// AllocArray allocates n contiguous, zero-valued elements of T. T must be
// trivially destructible (no pointers, interfaces, slices, maps, channels,
// functions or strings anywhere in its layout, recursively) since no
// constructor or destructor ever runs for array elements.
func AllocArray[T any](a *Arena, n int) ([]T, error) {
	if n < 0 {
		panic("obstack: negative array length")
	}
	if !isTriviallyDestructible[T]() {
		panic("obstack: T is not trivially destructible, cannot be used with AllocArray")
	}
	var zero T
	elemSize := unsafe.Sizeof(zero)
	if elemSize != 0 && uintptr(n) > a.capacity/elemSize {
		return nil, ErrCapacityExceeded
	}
	size := elemSize * uintptr(n)

	pad, ok := a.reserve(size)
	if !ok {
		return nil, ErrCapacityExceeded
	}
	a.pushChunk(pad, trivialArrayTag)
	ptr := a.ptrAt(a.topOffset)
	a.topOffset += size
	if n == 0 {
		return nil, nil
	}
	s := unsafe.Slice((*T)(ptr), n)
	clear(s)
	return s, nil
}

// Dealloc destructs *ptr and releases its chunk if that reclaims memory
// immediately (i.e. ptr is the top object). Otherwise the chunk is
// tombstoned and its bytes stay reserved until every object above it is
// also released. ptr must have been returned by an allocation on a; any
// other pointer is a programmer error (see WithStrictChecks).
func Dealloc[T any](a *Arena, ptr *T) error {
	return a.dealloc(unsafe.Pointer(ptr))
}

func (a *Arena) dealloc(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}
	h := payloadToHeader(ptr)
	if !a.checkHeader(h) {
		return nil
	}

	if fn := a.settle(h); fn != nil {
		fn(ptr)
	}
	return nil
}

// checkHeader validates h and, on failure, either panics or silently
// reports invalid (per WithStrictChecks). A chunk already tombstoned is
// always treated as invalid: double free is undefined behavior upstream,
// detected here via the free-marker check.
func (a *Arena) checkHeader(h *chunkHeader) bool {
	if !a.isValidHeader(h) {
		a.reportInvalid("invalid or out-of-range pointer passed to Dealloc")
		return false
	}
	if h.isFreed() {
		a.reportInvalid("double free detected")
		return false
	}
	return true
}

func (a *Arena) reportInvalid(msg string) {
	if a.strict {
		logInvalidPointer(msg)
		panic("obstack: " + msg)
	}
}

// settle marks h as destructed, reclaiming memory immediately if h was the
// top chunk (sweeping any tombstoned run now exposed above it), and returns
// the thunk that must still be invoked on the payload, or nil for a
// trivial-array chunk.
func (a *Arena) settle(h *chunkHeader) thunk {
	realTag := h.tag()
	h.markFreed()

	if h == a.topChunk {
		a.reclaim()
	}

	if realTag == trivialArrayTag {
		return nil
	}
	fn, ok := resolveThunk(realTag)
	if !ok {
		return nil
	}
	return fn
}

// reclaim rewinds topOffset/topChunk across every consecutive tombstoned
// chunk starting at the current top, in O(k) for a run of length k.
func (a *Arena) reclaim() {
	for a.topChunk != nil && a.topChunk.isFreed() {
		a.topOffset = a.offsetOf(unsafe.Pointer(a.topChunk))
		a.topChunk = a.topChunk.prev
	}
	if a.topChunk == nil {
		a.topOffset = 0
	}
}

func (a *Arena) isValidHeader(h *chunkHeader) bool {
	addr := uintptr(unsafe.Pointer(h))
	base := uintptr(a.basePtr)
	if addr < base || addr >= base+a.topOffset {
		return false
	}
	return h.verify()
}

// IsTop reports whether ptr is the most recently allocated live object on a.
func IsTop[T any](a *Arena, ptr *T) bool {
	return a.isTop(unsafe.Pointer(ptr))
}

func (a *Arena) isTop(ptr unsafe.Pointer) bool {
	if ptr == nil {
		return false
	}
	return payloadToHeader(ptr) == a.topChunk
}

// IsValid reports whether ptr names a live, uncorrupted chunk on a.
func IsValid[T any](a *Arena, ptr *T) bool {
	return a.isValid(unsafe.Pointer(ptr))
}

func (a *Arena) isValid(ptr unsafe.Pointer) bool {
	if ptr == nil {
		return false
	}
	h := payloadToHeader(ptr)
	return a.isValidHeader(h) && !h.isFreed()
}

// DeallocAll destructs and reclaims every live object on a, in top-to-base
// order. Chunks already tombstoned are skipped (no destructor call) but
// still reclaimed. A destructor panic is recovered and aggregated rather
// than aborting the sweep, so every chunk is still visited; the aggregated
// error (nil if nothing failed) is returned once the arena is fully empty.
func (a *Arena) DeallocAll() error {
	var errs error
	for a.topChunk != nil {
		h := a.topChunk
		realTag := h.tag()
		wasFreed := h.isFreed()
		h.markFreed()
		a.reclaim()

		if wasFreed || realTag == trivialArrayTag {
			continue
		}
		fn, ok := resolveThunk(realTag)
		if !ok {
			continue
		}
		payload := headerToPayload(h)
		collectTeardownErrors(&errs, func() { fn(payload) })
	}
	a.topOffset = 0
	return errs
}

// Destroy releases every live object (as DeallocAll) and then returns the
// arena's backing memory to its provider. The Arena must not be used again
// afterwards.
func (a *Arena) Destroy() error {
	if a.destroyed {
		return nil
	}
	err := a.DeallocAll()
	if a.owned {
		a.provider.Release(a.backing)
	}
	a.destroyed = true
	return err
}

// MaxOverhead is a static worst-case bound on the bytes consumed by headers
// and alignment padding across n allocations of any type, regardless of
// what those types are.
func MaxOverhead(n int) int {
	return n * int(headerSize+MaxAlign)
}

// Size returns the number of bytes currently allocated (including header
// and padding overhead) between the arena's base and its bump pointer.
func (a *Arena) Size() int { return int(a.topOffset) }

// Capacity returns the arena's total usable capacity in bytes.
func (a *Arena) Capacity() int { return int(a.capacity) }
