package api

import "sync"

// RecentIDs remembers the last N message ids in insertion order.
type RecentIDs struct {
	mu   sync.Mutex
	ring []string
	next int
	seen map[string]struct{}
}

func NewRecentIDs(capacity int) *RecentIDs {
	if capacity <= 0 {
		capacity = 100
	}
	return &RecentIDs{
		ring: make([]string, capacity),
		seen: make(map[string]struct{}, capacity),
	}
}

// Add records id and reports whether it was new. The oldest id is evicted
// once the ring is full.
func (r *RecentIDs) Add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seen[id]; dup {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.seen, old)
	}
	r.ring[r.next] = id
	r.seen[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ring)
	return true
}

func (r *RecentIDs) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[id]
	return ok
}

func (r *RecentIDs) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
