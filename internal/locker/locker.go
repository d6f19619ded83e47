// Package locker serializes job execution per target. A target (project or
// workspace) admits at most one holder at a time; waiters are granted the
// lock in FIFO order. Locks are process-local and vanish on restart.
package locker

import (
	"context"
	"fmt"
	"log"
	"sync"
)

type waiter struct {
	holderID string
	ready    chan struct{}
}

type targetLock struct {
	holder  string
	waiters []*waiter
}

type Locker struct {
	mu     sync.Mutex
	locks  map[string]*targetLock
	logger *log.Logger
}

func New(logger *log.Logger) *Locker {
	if logger == nil {
		logger = log.Default()
	}
	return &Locker{
		locks:  make(map[string]*targetLock),
		logger: logger,
	}
}

// Acquire blocks until no other holder is active for targetID, then registers
// holderID and returns a release callback. Release is idempotent and wakes
// exactly the next waiter in arrival order. Cancelling ctx while queued
// removes the waiter without disturbing the queue.
func (l *Locker) Acquire(ctx context.Context, targetID, holderID string) (func(), error) {
	if targetID == "" {
		return nil, fmt.Errorf("target id is required")
	}

	l.mu.Lock()
	lock, ok := l.locks[targetID]
	if !ok {
		l.locks[targetID] = &targetLock{holder: holderID}
		l.mu.Unlock()
		l.logger.Printf("lock acquired target=%s holder=%s", targetID, holderID)
		return l.releaseFunc(targetID, holderID), nil
	}

	w := &waiter{holderID: holderID, ready: make(chan struct{})}
	lock.waiters = append(lock.waiters, w)
	queued := len(lock.waiters)
	l.mu.Unlock()
	l.logger.Printf("lock contended target=%s holder=%s queued=%d", targetID, holderID, queued)

	select {
	case <-w.ready:
		l.logger.Printf("lock acquired target=%s holder=%s", targetID, holderID)
		return l.releaseFunc(targetID, holderID), nil
	case <-ctx.Done():
		l.abandonWaiter(targetID, w)
		return nil, fmt.Errorf("acquire lock for target %s: %w", targetID, ctx.Err())
	}
}

func (l *Locker) releaseFunc(targetID, holderID string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.release(targetID, holderID)
		})
	}
}

func (l *Locker) release(targetID, holderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[targetID]
	if !ok || lock.holder != holderID {
		return
	}
	if len(lock.waiters) == 0 {
		delete(l.locks, targetID)
		l.logger.Printf("lock released target=%s holder=%s", targetID, holderID)
		return
	}
	next := lock.waiters[0]
	lock.waiters = lock.waiters[1:]
	lock.holder = next.holderID
	close(next.ready)
	l.logger.Printf("lock released target=%s holder=%s next=%s", targetID, holderID, next.holderID)
}

func (l *Locker) abandonWaiter(targetID string, w *waiter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[targetID]
	if !ok {
		return
	}
	// The grant may have raced the cancellation. If the waiter already became
	// holder, hand the lock straight to the next in line.
	select {
	case <-w.ready:
		if lock.holder == w.holderID {
			if len(lock.waiters) == 0 {
				delete(l.locks, targetID)
				return
			}
			next := lock.waiters[0]
			lock.waiters = lock.waiters[1:]
			lock.holder = next.holderID
			close(next.ready)
		}
		return
	default:
	}
	for i, item := range lock.waiters {
		if item == w {
			lock.waiters = append(lock.waiters[:i], lock.waiters[i+1:]...)
			break
		}
	}
}

// IsLocked reports whether a holder is currently active for targetID.
func (l *Locker) IsLocked(targetID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.locks[targetID]
	return ok
}

// Holder returns the current holder id for targetID, or "" when unlocked.
func (l *Locker) Holder(targetID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[targetID]
	if !ok {
		return ""
	}
	return lock.holder
}

// ReleaseAll force-clears every lock and wakes every waiter. This is an
// escape hatch for an abandoned holder and is unsafe while jobs are running:
// all queued waiters are granted at once.
func (l *Locker) ReleaseAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for targetID, lock := range l.locks {
		for _, w := range lock.waiters {
			close(w.ready)
		}
		delete(l.locks, targetID)
		l.logger.Printf("lock force-cleared target=%s holder=%s waiters=%d", targetID, lock.holder, len(lock.waiters))
	}
}
