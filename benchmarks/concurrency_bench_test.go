package obstack_test

import (
	"testing"

	"github.com/cleeus-go/obstack"
)

// BenchmarkArenaPerGoroutine measures the supported concurrency pattern:
// every goroutine owns its own Arena and never touches another's.
func BenchmarkArenaPerGoroutine(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		a := obstack.New(1 << 20)
		defer a.Destroy()

		for pb.Next() {
			if _, err := obstack.Alloc[int64](a); err != nil {
				a.DeallocAll()
			}
		}
	})
}

// BenchmarkPoolAcquireRelease measures the cost of cycling arenas through
// a Pool under concurrent load, the intended way to amortize Provider
// acquisition cost across many short-lived per-goroutine arenas.
func BenchmarkPoolAcquireRelease(b *testing.B) {
	pool := obstack.NewPool(64 * 1024)
	defer pool.Close()

	var nextKey uint64
	b.RunParallel(func(pb *testing.PB) {
		k := nextKey
		nextKey++
		for pb.Next() {
			item := pool.Acquire(k)
			for j := 0; j < 32; j++ {
				if _, err := obstack.Alloc[int64](item.Arena); err != nil {
					break
				}
			}
			pool.Release(item)
		}
	})
}

// BenchmarkPoolVsFreshArena compares reusing a Pool against constructing a
// fresh Arena (and therefore paying Provider.Acquire) on every iteration.
func BenchmarkPoolVsFreshArena(b *testing.B) {
	b.Run("Pool", func(b *testing.B) {
		pool := obstack.NewPool(64 * 1024)
		defer pool.Close()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			item := pool.Acquire(1)
			obstack.Alloc[int64](item.Arena)
			pool.Release(item)
		}
	})

	b.Run("FreshArena", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			a := obstack.New(64 * 1024)
			obstack.Alloc[int64](a)
			a.Destroy()
		}
	})
}
