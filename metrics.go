package obstack

// Metrics is a snapshot of an Arena's allocation statistics.
type Metrics struct {
	SizeInUse   int     // Bytes currently reserved between base and the bump pointer
	Capacity    int     // Total usable capacity in bytes
	LiveChunks  int     // Chunks currently allocated and not tombstoned
	Utilization float64 // SizeInUse / Capacity, 0.0 if Capacity is 0
}

// Metrics returns a snapshot of a's current allocation statistics. LiveChunks
// walks the chunk chain from the top, so it is O(chunks currently on the
// arena), not O(1).
func (a *Arena) Metrics() Metrics {
	live := 0
	for h := a.topChunk; h != nil; h = h.prev {
		if !h.isFreed() {
			live++
		}
	}
	return Metrics{
		SizeInUse:   a.Size(),
		Capacity:    a.Capacity(),
		LiveChunks:  live,
		Utilization: a.Utilization(),
	}
}

// Utilization returns the ratio of bytes currently in use to total capacity,
// 0.0 if the arena has no capacity.
func (a *Arena) Utilization() float64 {
	if a.capacity == 0 {
		return 0
	}
	return float64(a.topOffset) / float64(a.capacity)
}
