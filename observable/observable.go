package observable

import (
	"errors"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// Sentinel errors for observable collections.
var (
	// ErrIndexOutOfRange is returned when an index does not address an item.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrItemType is returned when an untyped item cannot be stored in a collection.
	ErrItemType = errors.New("item has wrong type for collection")
)

// Subscription represents an active handler registration.
type Subscription interface {
	// Unsubscribe detaches the handler. It is safe to call more than once and
	// takes effect immediately, even while a notification is being delivered.
	Unsubscribe()
}

// PropertyNotifier is implemented by objects that announce member changes.
type PropertyNotifier interface {
	SubscribePropertyChanged(handler PropertyChangedHandler) Subscription
}

// PropertyRaiser is implemented by objects that can be told to announce a member change.
// Notifier implements it, so every struct embedding Notifier does too.
type PropertyRaiser interface {
	NotifyPropertyChanged(sender any, name string) error
}

// CollectionNotifier is implemented by collections that announce item changes.
type CollectionNotifier interface {
	SubscribeCollectionChanged(handler CollectionChangedHandler) Subscription
}

// Collection is read access to an ordered collection.
type Collection interface {
	// Len returns the number of items.
	Len() int

	// Item returns the item at index i.
	Item(i int) any

	// ElemType returns the static item type. It must not depend on the receiver's
	// state so it can be called on a nil pointer.
	ElemType() reflect.Type
}

// MutableCollection is untyped write access to an ordered collection.
// Every method raises the matching collection notification.
type MutableCollection interface {
	Collection
	InsertItem(i int, v any) error
	RemoveItem(i int) error
	SetItem(i int, v any) error
	MoveItem(from, to int) error
	ClearItems() error
}

// subscription is the Subscription returned by observer lists.
type subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the handler.
func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// observer is one registered handler.
type observer[H any] struct {
	id      uint64
	handler H
	active  atomic.Bool
}

// observers is an ordered handler list. Handlers are called outside the lock
// in registration order.
type observers[H any] struct {
	mu      sync.Mutex
	entries []*observer[H]
	nextID  uint64
}

// add registers a handler and returns its subscription.
func (o *observers[H]) add(h H) Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	obs := &observer[H]{id: o.nextID, handler: h}
	obs.active.Store(true)
	o.entries = append(o.entries, obs)

	return &subscription{cancel: func() { o.remove(obs) }}
}

// remove unregisters a handler.
func (o *observers[H]) remove(obs *observer[H]) {
	obs.active.Store(false)

	o.mu.Lock()
	defer o.mu.Unlock()

	for i, e := range o.entries {
		if e == obs {
			o.entries = slices.Delete(o.entries, i, i+1)
			return
		}
	}
}

// snapshot returns the current handlers.
func (o *observers[H]) snapshot() []*observer[H] {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.entries) == 0 {
		return nil
	}
	out := make([]*observer[H], len(o.entries))
	copy(out, o.entries)
	return out
}

// clear unregisters every handler.
func (o *observers[H]) clear() {
	o.mu.Lock()
	entries := o.entries
	o.entries = nil
	o.mu.Unlock()

	for _, obs := range entries {
		obs.active.Store(false)
	}
}

// count returns the number of handlers.
func (o *observers[H]) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// deliver calls fn for every handler still active at its turn and joins the errors.
func deliver[H any](o *observers[H], fn func(H) error) error {
	var errs []error
	for _, obs := range o.snapshot() {
		if !obs.active.Load() {
			continue
		}
		if err := fn(obs.handler); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notifier is an embeddable property change notifier.
// The zero value is ready to use.
type Notifier struct {
	property observers[PropertyChangedHandler]
}

// SubscribePropertyChanged registers a handler for member changes.
func (n *Notifier) SubscribePropertyChanged(handler PropertyChangedHandler) Subscription {
	return n.property.add(handler)
}

// NotifyPropertyChanged calls every handler with the named member.
// Errors returned by handlers are joined and returned.
func (n *Notifier) NotifyPropertyChanged(sender any, name string) error {
	e := PropertyChangedEventArgs{PropertyName: name}
	return deliver(&n.property, func(h PropertyChangedHandler) error {
		return h(sender, e)
	})
}

// PropertyChangedObservers returns the number of registered handlers.
func (n *Notifier) PropertyChangedObservers() int {
	return n.property.count()
}

// ClearPropertyChanged unregisters every handler.
func (n *Notifier) ClearPropertyChanged() {
	n.property.clear()
}

// Event is a list of handlers receiving values of type T.
// The zero value is ready to use.
type Event[T any] struct {
	handlers observers[func(T) error]
}

// Subscribe registers a handler.
func (e *Event[T]) Subscribe(handler func(T) error) Subscription {
	return e.handlers.add(handler)
}

// Raise calls every handler with v and joins their errors.
func (e *Event[T]) Raise(v T) error {
	return deliver(&e.handlers, func(h func(T) error) error {
		return h(v)
	})
}

// Observers returns the number of registered handlers.
func (e *Event[T]) Observers() int {
	return e.handlers.count()
}

// Clear unregisters every handler.
func (e *Event[T]) Clear() {
	e.handlers.clear()
}

// Set assigns value to *field and raises a change for name if the value changed.
func Set[T comparable](n *Notifier, sender any, field *T, value T, name string) error {
	if *field == value {
		return nil
	}
	*field = value
	return n.NotifyPropertyChanged(sender, name)
}

// Assign assigns value to *field and always raises a change for name.
// Use it for members whose type is not comparable.
func Assign[T any](n *Notifier, sender any, field *T, value T, name string) error {
	*field = value
	return n.NotifyPropertyChanged(sender, name)
}
