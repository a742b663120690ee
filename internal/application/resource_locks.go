package application

import (
	"context"
	"sync"
)

// resourceLocks hands out one exclusive section per workstation. Entries are
// reference counted and removed once nobody holds or waits for them.
type resourceLocks struct {
	mu      sync.Mutex
	entries map[string]*resourceLock
}

type resourceLock struct {
	sem  chan struct{}
	refs int
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{entries: make(map[string]*resourceLock)}
}

// acquire blocks until the section for resourceID is free or ctx is done.
// The returned release function is safe to call more than once.
func (l *resourceLocks) acquire(ctx context.Context, resourceID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[resourceID]
	if !ok {
		entry = &resourceLock{sem: make(chan struct{}, 1)}
		l.entries[resourceID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(resourceID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.unref(resourceID, entry)
		})
	}, nil
}

func (l *resourceLocks) unref(resourceID string, entry *resourceLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, resourceID)
	}
}

// withLock runs fn inside the section for resourceID.
func (l *resourceLocks) withLock(ctx context.Context, resourceID string, fn func() error) error {
	release, err := l.acquire(ctx, resourceID)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (l *resourceLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
