package session

import "sync"

// Admission enforces the per-owner cap on concurrently active game
// sessions. Check-and-increment is a single atomic step so two racing
// creations for the same owner can never push the count past the cap.
type Admission struct {
	mu     sync.Mutex
	limit  int
	active map[string]int
}

// NewAdmission creates an admission controller with the given cap.
func NewAdmission(limit int) *Admission {
	if limit < 1 {
		limit = 1
	}
	return &Admission{
		limit:  limit,
		active: make(map[string]int),
	}
}

// TryAcquire reserves one slot for owner. It reports false when the
// owner already holds the cap; the caller surfaces that as a
// capacity-exceeded error and must not retry automatically.
func (a *Admission) TryAcquire(owner string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active[owner] >= a.limit {
		return false
	}
	a.active[owner]++
	return true
}

// Release returns one slot for owner. Called on explicit close and on
// eviction.
func (a *Admission) Release(owner string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active[owner] <= 1 {
		delete(a.active, owner)
		return
	}
	a.active[owner]--
}

// Active returns the number of slots owner currently holds.
func (a *Admission) Active(owner string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active[owner]
}

// Limit returns the configured cap.
func (a *Admission) Limit() int {
	return a.limit
}
