// ABOUTME: TTL window tracking which facts were recently reinforced
// ABOUTME: Repeat boosts inside the window are dropped, making retries safe
package reinforce

import (
	"sync"
	"time"
)

// usageWindow remembers fact ids for a fixed TTL. It is safe for concurrent
// use and prunes lazily on writes, so memory stays bounded by the number of
// facts touched within one window.
type usageWindow struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func newUsageWindow(ttl time.Duration) *usageWindow {
	return &usageWindow{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Contains reports whether id was marked within the TTL.
func (w *usageWindow) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	at, ok := w.seen[id]
	if !ok {
		return false
	}
	if w.now().Sub(at) >= w.ttl {
		delete(w.seen, id)
		return false
	}
	return true
}

// Mark records ids as reinforced now, pruning expired entries while it holds
// the lock.
func (w *usageWindow) Mark(ids []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	for id, at := range w.seen {
		if now.Sub(at) >= w.ttl {
			delete(w.seen, id)
		}
	}
	for _, id := range ids {
		w.seen[id] = now
	}
}
