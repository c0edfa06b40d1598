// Package lock provides per-key mutual exclusion for long running operations.
package lock

import (
	"sync"
)

// keyMutex wraps a mutex with a count of goroutines holding or waiting on it.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyedLock hands out one mutex per int64 key, typically a Telegram user ID.
// Entries are dropped once no goroutine holds or waits for them.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[int64]*keyMutex
}

// New creates a new KeyedLock instance.
func New() *KeyedLock {
	return &KeyedLock{locks: make(map[int64]*keyMutex)}
}

// acquire returns the mutex for key and registers the caller as a user of it.
func (kl *KeyedLock) acquire(key int64) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{}
		kl.locks[key] = m
	}
	m.refCount++
	return m
}

// release drops the caller's registration and forgets idle entries.
func (kl *KeyedLock) release(key int64, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m.refCount--
	if m.refCount <= 0 {
		delete(kl.locks, key)
	}
}

// Lock blocks until the lock for key is held.
func (kl *KeyedLock) Lock(key int64) {
	kl.acquire(key).mu.Lock()
}

// Unlock releases the lock for key. Unlocking an unknown key is a no-op.
func (kl *KeyedLock) Unlock(key int64) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	kl.release(key, m)
}

// TryLock acquires the lock for key without blocking.
// Returns true if the lock was acquired, false otherwise.
func (kl *KeyedLock) TryLock(key int64) bool {
	m := kl.acquire(key)
	if m.mu.TryLock() {
		return true
	}
	kl.release(key, m)
	return false
}

// WithLock executes fn while holding the lock for key.
func (kl *KeyedLock) WithLock(key int64, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held.
// This is a point-in-time check and may change immediately after.
func (kl *KeyedLock) IsLocked(key int64) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	_, ok := kl.locks[key]
	return ok
}
