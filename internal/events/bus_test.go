package events

import (
	"testing"
	"time"

	"foundry/internal/domain"
)

func TestPublishDeliversToJobSubscribers(t *testing.T) {
	bus := New(8, 10*time.Millisecond)

	ch, cancel := bus.Subscribe("job-1")
	defer cancel()
	other, cancelOther := bus.Subscribe("job-2")
	defer cancelOther()

	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventProgress, Percent: 40})

	select {
	case ev := <-ch:
		if ev.JobID != "job-1" || ev.Percent != 40 {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.At.IsZero() {
			t.Fatalf("event timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}

	select {
	case ev := <-other:
		t.Fatalf("cross-job delivery: %+v", ev)
	default:
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := New(8, 0)
	// Must not panic or queue anything.
	bus.Publish("ghost", domain.ProgressEvent{Type: domain.EventProgress, Percent: 10})
	bus.Publish("ghost", domain.ProgressEvent{Type: domain.EventCompleted, Percent: 100})
	if n := bus.SubscriberCount("ghost"); n != 0 {
		t.Fatalf("subscribers=%d want=0", n)
	}
}

func TestTerminalEventDeregistersAfterGrace(t *testing.T) {
	bus := New(8, 5*time.Millisecond)

	ch, _ := bus.Subscribe("job-1")
	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventCompleted, Percent: 100})

	// The terminal event itself must still be readable.
	select {
	case ev := <-ch:
		if ev.Type != domain.EventCompleted {
			t.Fatalf("got %s want completed", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("terminal event not delivered")
	}

	waitFor(t, func() bool { return bus.SubscriberCount("job-1") == 0 })

	// Channel closes once the grace window ends.
	select {
	case _, open := <-ch:
		if open {
			t.Fatalf("expected channel close after grace window")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel never closed")
	}

	// A late emit for the same id with no subscribers is a no-op.
	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventProgress, Percent: 50})
}

func TestPublishClampsPercentToStreamHighWater(t *testing.T) {
	bus := New(8, 0)
	ch, cancel := bus.Subscribe("job-1")
	defer cancel()

	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventStarted, Percent: 0})
	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventProgress, Percent: 92})
	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventProgress, Percent: 0, Metadata: map[string]any{"retry_scheduled": true}})

	want := []int{0, 92, 92}
	for i, w := range want {
		ev := <-ch
		if ev.Percent != w {
			t.Fatalf("event %d percent=%d want=%d", i, ev.Percent, w)
		}
	}

	// A started event opens a new execution and resets the floor.
	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventStarted, Percent: 0})
	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventProgress, Percent: 40})
	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventFailed, Percent: 0})

	want = []int{0, 40, 40}
	for i, w := range want {
		ev := <-ch
		if ev.Percent != w {
			t.Fatalf("second execution event %d percent=%d want=%d", i, ev.Percent, w)
		}
	}
}

func TestCancelAfterAutoCleanupIsSafe(t *testing.T) {
	bus := New(8, 0)
	_, cancel := bus.Subscribe("job-1")
	bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventFailed, Percent: 30})
	waitFor(t, func() bool { return bus.SubscriberCount("job-1") == 0 })
	cancel()
	cancel()
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := New(1, 0)
	ch, cancel := bus.Subscribe("job-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventProgress, Percent: 10})
		bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventProgress, Percent: 20})
		bus.Publish("job-1", domain.ProgressEvent{Type: domain.EventProgress, Percent: 30})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber buffer")
	}

	ev := <-ch
	if ev.Percent != 10 {
		t.Fatalf("first buffered event percent=%d want=10", ev.Percent)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never met")
}
