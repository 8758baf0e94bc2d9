package core

import "sync"

// registry holds the ordered handler sequence. Registration order is
// dispatch priority; entries are never removed or reordered. Appends may
// race with an active run loop, so reads work on a snapshot.
type registry struct {
	mu       sync.RWMutex
	handlers []Handler
}

func (r *registry) add(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// snapshot returns the handlers for one dispatch pass.
func (r *registry) snapshot() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
