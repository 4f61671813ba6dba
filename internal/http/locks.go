package http

import "sync"

// visitorLocks serializes cart read-modify-write per visitor in this process.
type visitorLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newVisitorLocks() *visitorLocks {
	return &visitorLocks{locks: make(map[string]*lockEntry)}
}

// Lock returns the matching unlock function.
func (v *visitorLocks) Lock(visitorID string) func() {
	v.mu.Lock()
	e, ok := v.locks[visitorID]
	if !ok {
		e = &lockEntry{}
		v.locks[visitorID] = e
	}
	e.refs++
	v.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		v.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(v.locks, visitorID)
		}
		v.mu.Unlock()
	}
}
