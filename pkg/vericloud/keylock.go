package vericloud

import "sync"

// keyLock serializes operations on a single identifier. Concurrent writes
// to different identifiers proceed independently; an Update racing a Delete
// on the same identifier is forced into one order or the other.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyLockEntry)}
}

// Lock acquires the lock for key, creating it on first use.
func (kl *keyLock) Lock(key string) {
	kl.mu.Lock()
	entry, ok := kl.locks[key]
	if !ok {
		entry = &keyLockEntry{}
		kl.locks[key] = entry
	}
	entry.refs++
	kl.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the lock for key and drops the entry once no goroutine
// holds or waits on it, so the table does not grow with identifier churn.
func (kl *keyLock) Unlock(key string) {
	kl.mu.Lock()
	entry := kl.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()

	entry.mu.Unlock()
}
