package tracker

import "sync"

// KeyLock is a table of mutexes keyed by market identity, so refreshes that
// touch the same market serialize while unrelated markets proceed in
// parallel. Entries are reference-counted and removed when released.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLock creates an empty lock table.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyLockEntry)}
}

// Lock acquires the mutex for key, blocking while another holder has it. The
// returned function releases the lock and must be called exactly once.
func (kl *KeyLock) Lock(key string) (unlock func()) {
	kl.mu.Lock()
	e, ok := kl.locks[key]
	if !ok {
		e = &keyLockEntry{}
		kl.locks[key] = e
	}
	e.refs++
	kl.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		kl.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(kl.locks, key)
		}
		kl.mu.Unlock()
	}
}
