package emergency

import "sync"

// kmutex serializes work per key without a global lock. Entries are
// refcounted and removed when the last holder unlocks, so the map does not
// grow with the number of sessions ever seen.
type kmutex struct {
	mu    sync.Mutex
	locks map[string]*kentry
}

type kentry struct {
	mu   sync.Mutex
	refs int
}

func newKmutex() *kmutex {
	return &kmutex{locks: make(map[string]*kentry)}
}

func (k *kmutex) lock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &kentry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *kmutex) unlock(key string) {
	k.mu.Lock()
	e := k.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
