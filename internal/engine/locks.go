package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// userLocks serializes turns per user. Distinct users proceed in parallel; a
// second message from the same user queues until the first turn releases.
type userLocks struct {
	mu    sync.Mutex
	guard map[string]*semaphore.Weighted
}

func newUserLocks() *userLocks {
	return &userLocks{guard: make(map[string]*semaphore.Weighted)}
}

func (l *userLocks) get(userID string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.guard[userID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.guard[userID] = sem
	}
	return sem
}

// acquire blocks until the user's guard is free or ctx is done. The returned
// release must be called exactly once.
func (l *userLocks) acquire(ctx context.Context, userID string) (func(), error) {
	sem := l.get(userID)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
