package service

import (
	"strconv"
	"sync"
)

// keyedMutex serializes work per key. Entries are dropped once no goroutine
// holds or waits for them, so the map only grows with live contention.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func projectKey(id uint64) string {
	return "project:" + strconv.FormatUint(id, 10)
}

// idempotencyKey scopes key to caller. The caller is length-prefixed because
// identities may themselves contain ':'.
func idempotencyKey(caller, key string) string {
	return strconv.Itoa(len(caller)) + ":" + caller + ":" + key
}
