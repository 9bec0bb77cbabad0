package obstack

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

type tracked struct {
	calls *int
}

func (t *tracked) Destruct() { *t.calls++ }

// TestNonOverlappingAlignedAllocations covers universal property 1.
func TestNonOverlappingAlignedAllocations(t *testing.T) {
	a := New(16 * 1024)
	defer a.Destroy()

	type mixed struct {
		A int8
		B int64
		C [3]byte
	}

	seen := map[uintptr]bool{}
	for i := 0; i < 200; i++ {
		p, err := Alloc[mixed](a)
		require.NoError(t, err)
		addr := uintptr(unsafe.Pointer(p))
		require.False(t, seen[addr], "address reused while still live")
		seen[addr] = true
		require.True(t, isAligned(addr, unsafe.Alignof(mixed{})))
	}
}

// TestIsTopUniversalProperty covers universal property 2.
func TestIsTopUniversalProperty(t *testing.T) {
	a := New(4096)
	defer a.Destroy()

	p1, err := Alloc[int64](a)
	require.NoError(t, err)
	require.True(t, IsTop(a, p1))

	p2, err := Alloc[int64](a)
	require.NoError(t, err)
	require.False(t, IsTop(a, p1))
	require.True(t, IsTop(a, p2))
}

// TestDestructorInvokedExactlyOnce covers universal property 3 and S1.
func TestDestructorInvokedExactlyOnce(t *testing.T) {
	a := New(4096)
	defer a.Destroy()

	calls := 0
	p, err := Alloc[tracked](a)
	require.NoError(t, err)
	p.calls = &calls

	require.NoError(t, Dealloc(a, p))
	require.Equal(t, 1, calls)
	require.Equal(t, 0, a.Size())
}

// TestDeallocAllInvokesEveryDestructor covers universal property 4 and S2.
func TestDeallocAllInvokesEveryDestructor(t *testing.T) {
	a := New(16 * 1024)
	defer a.Destroy()

	calls := 0
	for i := 0; i < 10; i++ {
		p, err := Alloc[tracked](a)
		require.NoError(t, err)
		p.calls = &calls
	}

	require.NoError(t, a.DeallocAll())
	require.Equal(t, 10, calls)
	require.Equal(t, 0, a.Size())
}

// TestReverseOrderRelease covers S3: deallocating most-recent-first, every
// call reclaims immediately and the destructor count tracks the ordinal.
func TestReverseOrderRelease(t *testing.T) {
	a := New(16 * 1024)
	defer a.Destroy()

	calls := 0
	ptrs := make([]*tracked, 10)
	for i := range ptrs {
		p, err := Alloc[tracked](a)
		require.NoError(t, err)
		p.calls = &calls
		ptrs[i] = p
	}

	for i := len(ptrs) - 1; i >= 0; i-- {
		require.NoError(t, Dealloc(a, ptrs[i]))
		require.Equal(t, len(ptrs)-i, calls)
	}
	require.Equal(t, 0, a.Size())
}

// TestForwardOrderReleaseTombstones covers S4: deallocating oldest-first
// only reclaims once the top object is finally released.
func TestForwardOrderReleaseTombstones(t *testing.T) {
	a := New(16 * 1024)
	defer a.Destroy()

	calls := 0
	ptrs := make([]*tracked, 10)
	for i := range ptrs {
		p, err := Alloc[tracked](a)
		require.NoError(t, err)
		p.calls = &calls
		ptrs[i] = p
	}
	sizeAfterAlloc := a.Size()

	for i := 0; i < len(ptrs)-1; i++ {
		require.NoError(t, Dealloc(a, ptrs[i]))
		require.Equal(t, i+1, calls)
		require.Equal(t, sizeAfterAlloc, a.Size(), "non-top release must not reclaim")
	}

	require.NoError(t, Dealloc(a, ptrs[len(ptrs)-1]))
	require.Equal(t, len(ptrs), calls)
	require.Equal(t, 0, a.Size(), "releasing the top must sweep the whole tombstoned run")
}

// TestMixedAlignmentSequence covers S5.
func TestMixedAlignmentSequence(t *testing.T) {
	a := New(4096)
	defer a.Destroy()

	type stringlike struct{ s [24]byte }

	checkAligned := func(addr uintptr, align uintptr) {
		require.True(t, isAligned(addr, align), "address %x not aligned to %d", addr, align)
	}

	p1, err := Alloc[byte](a)
	require.NoError(t, err)
	checkAligned(uintptr(unsafe.Pointer(p1)), unsafe.Alignof(byte(0)))

	p2, err := Alloc[stringlike](a)
	require.NoError(t, err)
	checkAligned(uintptr(unsafe.Pointer(p2)), unsafe.Alignof(stringlike{}))

	p3, err := Alloc[float64](a)
	require.NoError(t, err)
	checkAligned(uintptr(unsafe.Pointer(p3)), unsafe.Alignof(float64(0)))

	p4, err := Alloc[byte](a)
	require.NoError(t, err)
	checkAligned(uintptr(unsafe.Pointer(p4)), unsafe.Alignof(byte(0)))

	p5, err := Alloc[int64](a)
	require.NoError(t, err)
	checkAligned(uintptr(unsafe.Pointer(p5)), unsafe.Alignof(int64(0)))

	p6, err := Alloc[float64](a)
	require.NoError(t, err)
	checkAligned(uintptr(unsafe.Pointer(p6)), unsafe.Alignof(float64(0)))

	p7, err := Alloc[[3]byte](a)
	require.NoError(t, err)
	checkAligned(uintptr(unsafe.Pointer(p7)), unsafe.Alignof([3]byte{}))

	p8, err := Alloc[stringlike](a)
	require.NoError(t, err)
	checkAligned(uintptr(unsafe.Pointer(p8)), unsafe.Alignof(stringlike{}))
}

// TestPlacedModeMatchesAllocatedMode covers S6: a caller-supplied buffer
// behaves identically to an allocated-mode arena and never touches a
// Provider's Acquire.
func TestPlacedModeMatchesAllocatedMode(t *testing.T) {
	buf := make([]maxAlignType, 512)
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), 512*int(MaxAlign))

	a := NewWithBuffer(raw)
	defer func() { _ = a.Destroy() }()

	require.Equal(t, nullProvider{}, a.provider)

	p1, err := Alloc[int64](a)
	require.NoError(t, err)
	*p1 = 1

	p2, err := Alloc[float64](a)
	require.NoError(t, err)
	*p2 = 2

	require.True(t, IsTop(a, p2))
	require.NoError(t, Dealloc(a, p2))
	require.NoError(t, Dealloc(a, p1))
	require.Equal(t, 0, a.Size())
}

// TestConstructionRollback covers S7: a failing initializer leaves size and
// top_chunk exactly as they were before the call.
func TestConstructionRollback(t *testing.T) {
	a := New(4096)
	defer a.Destroy()

	_, err := Alloc[int64](a)
	require.NoError(t, err)
	sizeBefore := a.Size()
	topBefore := a.topChunk

	boom := errors.New("construction failed")
	_, err = AllocWith[int64](a, func(p *int64) error {
		*p = 99
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, sizeBefore, a.Size())
	require.Same(t, topBefore, a.topChunk)
}

// TestConstructionRollbackOnPanic checks the same rollback guarantee when
// the initializer panics instead of returning an error.
func TestConstructionRollbackOnPanic(t *testing.T) {
	a := New(4096)
	defer a.Destroy()

	_, err := Alloc[int64](a)
	require.NoError(t, err)
	sizeBefore := a.Size()

	_, err = AllocWith[int64](a, func(p *int64) error {
		panic("boom")
	})
	require.Error(t, err)
	require.Equal(t, sizeBefore, a.Size())
}

// TestAllocationFailureLeavesStateUnchanged covers universal property 5.
func TestAllocationFailureLeavesStateUnchanged(t *testing.T) {
	a := New(64)
	defer a.Destroy()

	for {
		if _, err := Alloc[[8]byte](a); err != nil {
			break
		}
	}
	sizeBefore := a.Size()
	topBefore := a.topChunk

	_, err := Alloc[[8]byte](a)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, sizeBefore, a.Size())
	require.Same(t, topBefore, a.topChunk)
}

// TestAllocArrayContiguousAndAligned covers universal property 6.
func TestAllocArrayContiguousAndAligned(t *testing.T) {
	a := New(4096)
	defer a.Destroy()

	xs, err := AllocArray[int32](a, 64)
	require.NoError(t, err)
	require.Len(t, xs, 64)
	require.True(t, isAligned(uintptr(unsafe.Pointer(&xs[0])), unsafe.Alignof(int32(0))))

	base := uintptr(unsafe.Pointer(&xs[0]))
	for i := range xs {
		require.Equal(t, base+uintptr(i)*unsafe.Sizeof(int32(0)), uintptr(unsafe.Pointer(&xs[i])))
	}
}

// TestMaxOverheadIsUpperBound covers universal property 7.
func TestMaxOverheadIsUpperBound(t *testing.T) {
	a := New(1 << 20)
	defer a.Destroy()

	const n = 100
	sizeBefore := a.Size()
	for i := 0; i < n; i++ {
		_, err := Alloc[[3]byte](a)
		require.NoError(t, err)
	}
	payloadBytes := n * int(unsafe.Sizeof([3]byte{}))
	overhead := (a.Size() - sizeBefore) - payloadBytes
	require.LessOrEqual(t, overhead, MaxOverhead(n))
}

// TestInvalidPointerDeallocStrict checks that a pointer not sourced from
// the arena is rejected rather than corrupting arena state.
func TestInvalidPointerDeallocStrict(t *testing.T) {
	a := New(1024)
	defer a.Destroy()

	var stray int64
	require.Panics(t, func() { _ = Dealloc(a, &stray) })
}

func TestInvalidPointerDeallocLenient(t *testing.T) {
	a := New(1024, WithStrictChecks(false))
	defer a.Destroy()

	var stray int64
	require.NotPanics(t, func() { require.NoError(t, Dealloc(a, &stray)) })
}

// TestIsValid checks live vs. tombstoned pointers.
func TestIsValid(t *testing.T) {
	a := New(4096)
	defer a.Destroy()

	p, err := Alloc[int64](a)
	require.NoError(t, err)
	require.True(t, IsValid(a, p))

	q, err := Alloc[int64](a)
	require.NoError(t, err)
	require.NoError(t, Dealloc(a, p))
	require.False(t, IsValid(a, p))
	require.True(t, IsValid(a, q))
}

// TestNestedArenaDestruction demonstrates that arenas compose for free: a
// Destructor that owns a child Arena runs the child's full teardown when
// the parent chunk holding it is released.
type arenaOwner struct {
	child *Arena
}

func (o *arenaOwner) Destruct() {
	_ = o.child.Destroy()
}

func TestNestedArenaDestruction(t *testing.T) {
	parent := New(4096)
	defer parent.Destroy()

	childCalls := 0
	child := New(1024)
	cp, err := Alloc[tracked](child)
	require.NoError(t, err)
	cp.calls = &childCalls

	owner, err := Alloc[arenaOwner](parent)
	require.NoError(t, err)
	owner.child = child

	require.NoError(t, Dealloc(parent, owner))
	require.Equal(t, 1, childCalls)
}
