package store

import (
	"context"
	"sync"
)

// Locker serializes work on a key. The planner holds the lock of a series
// while it deletes and regenerates its instances.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SeriesKey is the lock key for the recurring series rooted at parentID.
func SeriesKey(parentID string) string {
	return "series:" + parentID
}

// RecordKey is the lock key for a single record.
func RecordKey(collection, id string) string {
	return "record:" + collection + ":" + id
}

// KeyedMutex is an in-process Locker with one mutex per active key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.release(key, l)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
