package booking

import "sync"

// resourceLocks hands out one mutex per resource id. Entries are dropped once
// no goroutine holds or waits on them.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[int64]*resourceLock
}

type resourceLock struct {
	mu   sync.Mutex
	refs int
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{locks: make(map[int64]*resourceLock)}
}

// Lock blocks until the caller holds resourceID's mutex and returns the
// matching unlock func.
func (l *resourceLocks) Lock(resourceID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[resourceID]
	if !ok {
		lock = &resourceLock{}
		l.locks[resourceID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, resourceID)
		}
		l.mu.Unlock()
	}
}
