// Package obstack implements a fixed-capacity object-stack allocator.
//
// # Overview
//
// An object stack is a bump-pointer arena whose allocations carry a small
// per-object header recording enough information to run that object's
// destructor later. Objects are normally released in reverse allocation
// order (LIFO), the cheap case: the bytes are reclaimed immediately.
// Releasing an object that is not on top only tombstones its header; the
// bytes it occupied are not reclaimed until every object allocated after it
// has also been released. This is what makes out-of-order release safe
// without a general-purpose free list.
//
// # Basic Usage
//
//	a := obstack.New(64 * 1024) // fixed 64KiB capacity
//	defer a.Destroy()
//
//	p, err := obstack.Alloc[MyStruct](a)
//	if err != nil {
//		// capacity exhausted
//	}
//	defer obstack.Dealloc(a, p)
//
//	xs, err := obstack.AllocArray[int](a, 256)
//
// # Thread Safety
//
// An Arena is not safe for concurrent use. Give each goroutine its own
// Arena, acquired from a Pool if the allocation pattern is frequent enough
// to make reuse worthwhile:
//
//	pool := obstack.NewPool(64 * 1024)
//	item := pool.Acquire(workerID)
//	defer pool.Release(item)
//
// # Memory Layout
//
// An Arena owns one contiguous backing region supplied by a Provider
// (ordinary Go memory by default; see WithProvider for page-aligned or
// off-heap alternatives). Every object is preceded by a header padded up to
// MaxAlign, so headers and payloads never need type-specific alignment
// arithmetic beyond that one constant.
//
// # Important Notes
//
//   - AllocArray only accepts trivially destructible element types: no
//     pointers, interfaces, slices, maps, channels, functions or strings
//     anywhere in the type, recursively. No constructor or destructor ever
//     runs for array elements.
//   - A Provider backed by off-heap memory (see NewMmapProvider) must never
//     back an arena allocating types containing Go pointers: the garbage
//     collector cannot trace references stored outside the Go heap, and a
//     collected referent would leave a dangling pointer in arena memory it
//     has no way to detect.
//   - Dealloc on an invalid, corrupted, or already-freed pointer panics by
//     default; pass WithStrictChecks(false) to make it a silent no-op
//     instead.
package obstack
