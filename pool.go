package obstack

import (
	"sync"
	"weak"

	"github.com/hashicorp/go-multierror"
)

// Pool hands out exclusive-use Arenas sized for a particular workload,
// reusing already-allocated backing memory across a high-frequency
// acquire/release cycle instead of paying a fresh Provider.Acquire every
// time. Pool itself is safe for concurrent use, but each Arena it returns
// is not: a caller must finish with one and Release it before another
// goroutine can be handed the same Arena.
//
// Pooled items are held by weak pointers, so the garbage collector can
// reclaim an idle Arena under memory pressure instead of the pool pinning it
// forever; Acquire simply falls back to building a fresh one whenever that
// happens. Provider.Release is not called for a collected Arena, so only
// Go-heap backing memory is reclaimed that way; off-heap memory (such as
// NewMmapProvider's) is freed only when its Arena is destroyed, as Close
// does for the items still in the pool.
type Pool struct {
	mu       sync.Mutex
	free     []weak.Pointer[PoolItem]
	capacity int
	opts     []Option
}

// PoolItem wraps a pooled Arena together with the key it was last acquired
// for, mirroring wundergraph-go-arena's pool entry shape.
type PoolItem struct {
	Arena *Arena
	Key   uint64
}

// NewPool creates a Pool whose Arenas are all constructed with capacity and
// opts, applied identically to every pooled Arena regardless of key.
func NewPool(capacity int, opts ...Option) *Pool {
	return &Pool{capacity: capacity, opts: opts}
}

// Acquire returns an Arena ready for exclusive use by the caller, reusing a
// released one from the pool when available. key is opaque to Pool; callers
// typically pass a worker or shard id purely for their own bookkeeping.
func (p *Pool) Acquire(key uint64) *PoolItem {
	p.mu.Lock()
	for len(p.free) > 0 {
		last := len(p.free) - 1
		wp := p.free[last]
		p.free = p.free[:last]
		if item := wp.Value(); item != nil {
			p.mu.Unlock()
			item.Key = key
			return item
		}
	}
	p.mu.Unlock()

	return &PoolItem{
		Arena: New(p.capacity, p.opts...),
		Key:   key,
	}
}

// Release empties item's arena (via DeallocAll, so every live destructor
// still runs) and returns it to the pool for reuse. Any aggregated
// destructor error is returned to the caller rather than swallowed.
func (p *Pool) Release(item *PoolItem) error {
	err := item.Arena.DeallocAll()
	item.Key = 0

	p.mu.Lock()
	p.free = append(p.free, weak.Make(item))
	p.mu.Unlock()
	return err
}

// Close destroys every Arena still reachable from the pool, releasing their
// backing memory. Items already collected by the GC are simply skipped.
func (p *Pool) Close() error {
	p.mu.Lock()
	items := p.free
	p.free = nil
	p.mu.Unlock()

	var errs error
	for _, wp := range items {
		item := wp.Value()
		if item == nil {
			continue
		}
		if err := item.Arena.Destroy(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}
