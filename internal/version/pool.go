package version

import "sync"

// RecyclePool caches payloads released by capacity eviction and deletion so
// that future payload requests can reuse them instead of allocating fresh.
//
// The pool is a pure performance device: it never changes observable store
// behavior, only the allocation rate. A limit of zero turns it into a no-op
// that always allocates.
type RecyclePool[P Recyclable[P]] struct {
	mu   sync.Mutex
	free []P
	// limit bounds len(free); zero disables caching.
	limit int
}

// NewRecyclePool creates a pool retaining at most limit released payloads.
func NewRecyclePool[P Recyclable[P]](limit int) *RecyclePool[P] {
	return &RecyclePool[P]{limit: limit}
}

// Cache hands a released payload to the pool. Payloads beyond the pool's
// limit are dropped for the garbage collector to reclaim.
func (p *RecyclePool[P]) Cache(payload P) {
	if p.limit == 0 {
		return
	}
	p.mu.Lock()
	if len(p.free) < p.limit {
		p.free = append(p.free, payload)
	}
	p.mu.Unlock()
}

// GetCopy returns a payload whose content equals the template's. It scans the
// pool from the most recently cached payload backward and reuses the first one
// that can absorb the template's shape; if none can, it allocates a fresh deep
// copy of the template.
func (p *RecyclePool[P]) GetCopy(template P) P {
	p.mu.Lock()
	for i := len(p.free) - 1; i >= 0; i-- {
		candidate := p.free[i]
		if !candidate.CopyFrom(template) {
			continue
		}
		p.free = append(p.free[:i], p.free[i+1:]...)
		p.mu.Unlock()
		return candidate
	}
	p.mu.Unlock()
	return template.Clone()
}

// Len reports how many released payloads the pool currently retains.
func (p *RecyclePool[P]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
