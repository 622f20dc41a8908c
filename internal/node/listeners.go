package node

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dshills/statetrack/events"
)

// Listener receives the events a node emits.
type Listener func(ev events.Event) error

// Registration is one listener added to a node.
type Registration struct {
	list   *listeners
	fn     Listener
	active atomic.Bool
}

// Remove detaches the listener. It takes effect immediately, also for an event
// that is being delivered, and may be called more than once.
func (r *Registration) Remove() {
	if !r.active.CompareAndSwap(true, false) {
		return
	}
	r.list.remove(r)
}

// listeners is an ordered listener list.
type listeners struct {
	mu      sync.Mutex
	entries []*Registration
}

func (l *listeners) add(fn Listener) *Registration {
	r := &Registration{list: l, fn: fn}
	r.active.Store(true)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, r)
	return r
}

func (l *listeners) remove(r *Registration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e == r {
			l.entries = slices.Delete(l.entries, i, i+1)
			return
		}
	}
}

func (l *listeners) clear() {
	l.mu.Lock()
	entries := l.entries
	l.entries = nil
	l.mu.Unlock()

	for _, r := range entries {
		r.active.Store(false)
	}
}

func (l *listeners) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// deliver calls every listener still registered at its turn.
func (l *listeners) deliver(ev events.Event) error {
	l.mu.Lock()
	snapshot := make([]*Registration, len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	var errs []error
	for _, r := range snapshot {
		if !r.active.Load() {
			continue
		}
		if err := r.fn(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
