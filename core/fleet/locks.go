package fleet

import (
	"context"
	"sync"
)

type lockKind uint8

const (
	carLock lockKind = iota
	requestLock
)

type lockKey struct {
	kind lockKind
	id   int64
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// keyedLocks hands out one context-aware mutex per entity. Entries are
// dropped once no goroutine holds or waits for them.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[lockKey]*lockEntry
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: map[lockKey]*lockEntry{}}
}

func (k *keyedLocks) lock(ctx context.Context, key lockKey) (func(), error) {
	k.mu.Lock()
	e := k.entries[key]
	if e == nil {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				k.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}
}

func (k *keyedLocks) release(key lockKey, e *lockEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
