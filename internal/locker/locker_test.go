package locker

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

func newTestLocker() *Locker {
	return New(log.New(io.Discard, "", 0))
}

func TestMutualExclusion(t *testing.T) {
	l := newTestLocker()
	ctx := context.Background()

	release1, err := l.Acquire(ctx, "t1", "job-1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !l.IsLocked("t1") || l.Holder("t1") != "job-1" {
		t.Fatalf("expected job-1 to hold t1")
	}

	acquired := make(chan struct{})
	go func() {
		release2, err := l.Acquire(ctx, "t1", "job-2")
		if err != nil {
			t.Errorf("second acquire: %v", err)
			return
		}
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquire resolved while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second acquire did not resolve after release")
	}
}

func TestFIFOFairness(t *testing.T) {
	l := newTestLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "t1", "holder-0")
	if err != nil {
		t.Fatalf("initial acquire: %v", err)
	}

	var mu sync.Mutex
	var grants []string
	var wg sync.WaitGroup
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r, err := l.Acquire(ctx, "t1", id)
			if err != nil {
				t.Errorf("acquire %s: %v", id, err)
				return
			}
			mu.Lock()
			grants = append(grants, id)
			mu.Unlock()
			r()
		}(id)
		// Give each goroutine time to enqueue so arrival order is fixed.
		waitQueued(t, l, "t1", id)
	}

	release()
	wg.Wait()

	if len(grants) != 3 {
		t.Fatalf("grants=%d want=3", len(grants))
	}
	for i, id := range ids {
		if grants[i] != id {
			t.Fatalf("grant order %v, want %v", grants, ids)
		}
	}
}

func waitQueued(t *testing.T, l *Locker, targetID, holderID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		lock := l.locks[targetID]
		found := false
		if lock != nil {
			for _, w := range lock.waiters {
				if w.holderID == holderID {
					found = true
					break
				}
			}
		}
		l.mu.Unlock()
		if found {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("waiter %s never queued on %s", holderID, targetID)
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := newTestLocker()
	ctx := context.Background()

	release1, err := l.Acquire(ctx, "t1", "job-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	done := make(chan func(), 1)
	go func() {
		r, err := l.Acquire(ctx, "t1", "job-2")
		if err != nil {
			t.Errorf("second acquire: %v", err)
			return
		}
		done <- r
	}()
	waitQueued(t, l, "t1", "job-2")

	release1()
	release1() // second call must not release job-2's hold

	var release2 func()
	select {
	case release2 = <-done:
	case <-time.After(time.Second):
		t.Fatalf("job-2 never acquired")
	}
	if l.Holder("t1") != "job-2" {
		t.Fatalf("holder=%q want=job-2", l.Holder("t1"))
	}
	release2()
	if l.IsLocked("t1") {
		t.Fatalf("t1 still locked after final release")
	}
}

func TestAcquireCancelledWhileQueued(t *testing.T) {
	l := newTestLocker()

	release, err := l.Acquire(context.Background(), "t1", "job-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx, "t1", "job-2")
		errCh <- err
	}()
	waitQueued(t, l, "t1", "job-2")
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled acquire did not return")
	}

	// The abandoned waiter must not absorb the next grant.
	granted := make(chan struct{})
	go func() {
		r, err := l.Acquire(context.Background(), "t1", "job-3")
		if err != nil {
			t.Errorf("third acquire: %v", err)
			return
		}
		close(granted)
		r()
	}()
	waitQueued(t, l, "t1", "job-3")
	release()
	select {
	case <-granted:
	case <-time.After(time.Second):
		t.Fatalf("job-3 never granted after cancellation of job-2")
	}
}

func TestReleaseAllClearsEverything(t *testing.T) {
	l := newTestLocker()
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "t1", "job-1"); err != nil {
		t.Fatalf("acquire t1: %v", err)
	}
	if _, err := l.Acquire(ctx, "t2", "job-2"); err != nil {
		t.Fatalf("acquire t2: %v", err)
	}

	l.ReleaseAll()
	if l.IsLocked("t1") || l.IsLocked("t2") {
		t.Fatalf("locks survived ReleaseAll")
	}
}
