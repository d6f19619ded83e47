// Package events is the in-process live-progress channel. Delivery is
// best-effort and fire-and-forget: publishing with no subscribers drops the
// event, a slow subscriber's full buffer drops the event, and nothing is
// replayed for late subscribers.
package events

import (
	"sync"
	"time"

	"foundry/internal/domain"
)

const defaultBuffer = 16

type subscriber struct {
	ch     chan domain.ProgressEvent
	closed bool
}

type Bus struct {
	mu      sync.Mutex
	subs    map[string]map[int]*subscriber
	lastPct map[string]int
	nextID  int
	buffer  int
	grace   time.Duration
}

// New creates a bus. grace is the delay between a terminal event and the
// automatic deregistration of that job's subscribers; the window lets a
// trailing consumer read the terminal event before its channel closes.
func New(buffer int, grace time.Duration) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if grace < 0 {
		grace = 0
	}
	return &Bus{
		subs:    make(map[string]map[int]*subscriber),
		lastPct: make(map[string]int),
		buffer:  buffer,
		grace:   grace,
	}
}

// Subscribe registers for a job's progress events. The returned cancel is
// idempotent and safe to call after the bus has already closed the channel.
func (b *Bus) Subscribe(jobID string) (<-chan domain.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan domain.ProgressEvent, b.buffer)}
	jobSubs, ok := b.subs[jobID]
	if !ok {
		jobSubs = make(map[int]*subscriber)
		b.subs[jobID] = jobSubs
	}
	id := b.nextID
	b.nextID++
	jobSubs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.dropLocked(jobID, id)
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of the job without blocking.
// Percent is clamped so a job's stream never moves backwards; a started event
// resets the floor for the next execution. A terminal event schedules removal
// of all the job's subscribers after the grace delay.
func (b *Bus) Publish(jobID string, ev domain.ProgressEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.JobID = jobID

	b.mu.Lock()
	switch {
	case ev.Type == domain.EventStarted:
		b.lastPct[jobID] = ev.Percent
	case ev.Percent < b.lastPct[jobID]:
		ev.Percent = b.lastPct[jobID]
	default:
		b.lastPct[jobID] = ev.Percent
	}
	for _, sub := range b.subs[jobID] {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
	b.mu.Unlock()

	if ev.Type.Terminal() {
		if b.grace == 0 {
			b.closeJob(jobID)
			return
		}
		time.AfterFunc(b.grace, func() {
			b.closeJob(jobID)
		})
	}
}

// SubscriberCount reports active subscribers for a job, for diagnostics and
// tests.
func (b *Bus) SubscriberCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}

func (b *Bus) closeJob(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lastPct, jobID)
	for id := range b.subs[jobID] {
		b.dropLocked(jobID, id)
	}
}

func (b *Bus) dropLocked(jobID string, id int) {
	jobSubs, ok := b.subs[jobID]
	if !ok {
		return
	}
	sub, ok := jobSubs[id]
	if !ok {
		return
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	delete(jobSubs, id)
	if len(jobSubs) == 0 {
		delete(b.subs, jobID)
	}
}
