package dirty

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
)

// Registration is one listener added to a pair.
type Registration struct {
	list   *listeners
	fn     func() error
	active atomic.Bool
}

// Remove detaches the listener. It may be called more than once.
func (r *Registration) Remove() {
	if !r.active.CompareAndSwap(true, false) {
		return
	}
	r.list.mu.Lock()
	defer r.list.mu.Unlock()
	for i, e := range r.list.entries {
		if e == r {
			r.list.entries = slices.Delete(r.list.entries, i, i+1)
			return
		}
	}
}

type listeners struct {
	mu      sync.Mutex
	entries []*Registration
}

func (l *listeners) add(fn func() error) *Registration {
	r := &Registration{list: l, fn: fn}
	r.active.Store(true)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, r)
	return r
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

func (l *listeners) deliver() error {
	l.mu.Lock()
	snapshot := append([]*Registration(nil), l.entries...)
	l.mu.Unlock()

	var errs []error
	for _, r := range snapshot {
		if !r.active.Load() {
			continue
		}
		if err := r.fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
