// Package timewheel maintains the min-heap of pending time/repeat
// fires, keyed by identity (event_id if present, else event_name).
package timewheel

import (
	"container/heap"
	"sync"
	"time"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Spec is the time-wheel node's resolved scheduling intent.
type Spec struct {
	Identity  string
	EventName string
	Payload   models.Payload
	FireAt    time.Time
	// Repeat carries the original spec string so a fired entry can
	// recompute its next occurrence from the fire instant.
	Repeat string
}

type entry struct {
	spec  Spec
	index int
}

// heapSlice implements container/heap.Interface over *entry, ordered by
// fire time — exactly the data shape container/heap exists for, so no
// ecosystem priority-queue package is pulled in for this.
type heapSlice []*entry

func (h heapSlice) Len() int            { return len(h) }
func (h heapSlice) Less(i, j int) bool  { return h[i].spec.FireAt.Before(h[j].spec.FireAt) }
func (h heapSlice) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *heapSlice) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *heapSlice) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Wheel is the mutex-guarded min-heap plus identity index.
type Wheel struct {
	mu       sync.Mutex
	heap     heapSlice
	byID     map[string]*entry
	wakeupCh chan struct{}
}

func New() *Wheel {
	return &Wheel{
		byID:     make(map[string]*entry),
		wakeupCh: make(chan struct{}, 1),
	}
}

// Schedule inserts spec, replacing any existing entry with the same
// identity (the old entry is cancelled first, same as a fresh insert).
func (w *Wheel) Schedule(spec Spec) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.byID[spec.Identity]; ok {
		heap.Remove(&w.heap, existing.index)
		delete(w.byID, spec.Identity)
	}

	e := &entry{spec: spec}
	heap.Push(&w.heap, e)
	w.byID[spec.Identity] = e

	logger.L().Debug("time wheel scheduled", "identity", spec.Identity, "fire_at", spec.FireAt)
	w.notify()
}

// Cancel removes the entry for identity, if present.
func (w *Wheel) Cancel(identity string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.byID[identity]
	if !ok {
		return
	}
	heap.Remove(&w.heap, e.index)
	delete(w.byID, identity)
}

// Size reports the number of distinct identities currently scheduled.
func (w *Wheel) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byID)
}

// Peek returns the earliest fire time without removing it, for computing
// how long the tick loop should block.
func (w *Wheel) Peek() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.heap) == 0 {
		return time.Time{}, false
	}
	return w.heap[0].spec.FireAt, true
}

// DueNow pops every entry whose FireAt is <= now.
func (w *Wheel) DueNow(now time.Time) []Spec {
	w.mu.Lock()
	defer w.mu.Unlock()

	var due []Spec
	for len(w.heap) > 0 && !w.heap[0].spec.FireAt.After(now) {
		e := heap.Pop(&w.heap).(*entry)
		delete(w.byID, e.spec.Identity)
		due = append(due, e.spec)
	}
	return due
}

// Entries returns a snapshot of every pending spec.
func (w *Wheel) Entries() []Spec {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Spec, 0, len(w.heap))
	for _, e := range w.heap {
		out = append(out, e.spec)
	}
	return out
}

// Wakeup signals the tick loop that a new, possibly-earlier entry arrived.
func (w *Wheel) Wakeup() <-chan struct{} { return w.wakeupCh }

func (w *Wheel) notify() {
	select {
	case w.wakeupCh <- struct{}{}:
	default:
	}
}
