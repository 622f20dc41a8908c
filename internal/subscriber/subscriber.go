// Package subscriber attaches to the change surface of one object and forwards
// its raw notifications.
package subscriber

import (
	"sync"
	"sync/atomic"

	"github.com/dshills/statetrack/observable"
)

// Handlers receive forwarded notifications. Either may be nil.
type Handlers struct {
	Property   func(e observable.PropertyChangedEventArgs) error
	Collection func(e observable.CollectionChangedEventArgs) error
}

// Subscriber holds the subscriptions made on one source.
type Subscriber struct {
	mu     sync.Mutex
	subs   []observable.Subscription
	active atomic.Bool
}

// Exposes reports whether source has a change surface Attach can use.
func Exposes(source any) bool {
	_, p := source.(observable.PropertyNotifier)
	_, c := source.(observable.CollectionNotifier)
	return p || c
}

// Attach subscribes to every change surface source exposes.
func Attach(source any, h Handlers) *Subscriber {
	s := &Subscriber{}
	s.active.Store(true)

	if pn, ok := source.(observable.PropertyNotifier); ok && h.Property != nil {
		s.subs = append(s.subs, pn.SubscribePropertyChanged(func(_ any, e observable.PropertyChangedEventArgs) error {
			if !s.active.Load() {
				return nil
			}
			return h.Property(e)
		}))
	}
	if cn, ok := source.(observable.CollectionNotifier); ok && h.Collection != nil {
		s.subs = append(s.subs, cn.SubscribeCollectionChanged(func(_ any, e observable.CollectionChangedEventArgs) error {
			if !s.active.Load() {
				return nil
			}
			return h.Collection(e)
		}))
	}
	return s
}

// Detach unsubscribes everything. It is idempotent; once it returns no
// handler is called again.
func (s *Subscriber) Detach() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Active reports whether the subscriber is still attached.
func (s *Subscriber) Active() bool {
	return s.active.Load()
}
