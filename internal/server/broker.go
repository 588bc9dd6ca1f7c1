package server

import (
	"strings"
	"sync"
	"time"

	"ventureval/internal/pipeline"
)

// EventBroker fans progress events out to websocket subscribers, keeping the
// full event history per analysis so late subscribers replay from the start.
type EventBroker struct {
	mu        sync.RWMutex
	runs      map[string]*runEvents
	retention time.Duration
}

type runEvents struct {
	mu      sync.Mutex
	history []pipeline.ProgressEvent
	subs    map[chan pipeline.ProgressEvent]struct{}
	done    bool
}

func NewEventBroker(retention time.Duration) *EventBroker {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &EventBroker{
		runs:      make(map[string]*runEvents),
		retention: retention,
	}
}

// Allocate registers an analysis before its run starts.
func (b *EventBroker) Allocate(analysisID string) {
	id := strings.TrimSpace(analysisID)
	b.mu.Lock()
	if _, ok := b.runs[id]; !ok {
		b.runs[id] = &runEvents{subs: make(map[chan pipeline.ProgressEvent]struct{})}
	}
	b.mu.Unlock()
}

// Publish appends an event to the history and forwards it to subscribers.
// Slow subscribers lose the event; they still hold the history they replayed.
func (b *EventBroker) Publish(analysisID string, ev pipeline.ProgressEvent) {
	b.mu.RLock()
	run, ok := b.runs[strings.TrimSpace(analysisID)]
	b.mu.RUnlock()
	if !ok {
		return
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.done {
		return
	}
	run.history = append(run.history, ev)
	for ch := range run.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns the event history so far and a channel for subsequent
// events. The channel is closed when the run completes. cancel must be called
// when the subscriber goes away.
func (b *EventBroker) Subscribe(analysisID string) (history []pipeline.ProgressEvent, ch <-chan pipeline.ProgressEvent, cancel func(), ok bool) {
	b.mu.RLock()
	run, found := b.runs[strings.TrimSpace(analysisID)]
	b.mu.RUnlock()
	if !found {
		return nil, nil, nil, false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	history = append([]pipeline.ProgressEvent(nil), run.history...)
	sub := make(chan pipeline.ProgressEvent, 64)
	if run.done {
		close(sub)
		return history, sub, func() {}, true
	}
	run.subs[sub] = struct{}{}
	cancel = func() {
		run.mu.Lock()
		if _, still := run.subs[sub]; still {
			delete(run.subs, sub)
			close(sub)
		}
		run.mu.Unlock()
	}
	return history, sub, cancel, true
}

// Complete closes all subscriber channels and schedules history cleanup.
func (b *EventBroker) Complete(analysisID string) {
	id := strings.TrimSpace(analysisID)
	b.mu.RLock()
	run, ok := b.runs[id]
	b.mu.RUnlock()
	if !ok {
		return
	}
	run.mu.Lock()
	if !run.done {
		run.done = true
		for ch := range run.subs {
			delete(run.subs, ch)
			close(ch)
		}
	}
	run.mu.Unlock()

	time.AfterFunc(b.retention, func() {
		b.mu.Lock()
		delete(b.runs, id)
		b.mu.Unlock()
	})
}
