package observable

import (
	"fmt"
	"iter"
	"reflect"
	"sync"
)

// List is an ordered collection that raises collection change notifications.
// The zero value is an empty list ready to use.
//
// Mutations are serialized by an internal lock that is released before
// handlers run, so handlers may read or mutate the list again.
type List[T any] struct {
	mu         sync.RWMutex
	items      []T
	collection observers[CollectionChangedHandler]
}

// NewList creates a list holding items.
func NewList[T any](items ...T) *List[T] {
	l := &List[T]{}
	if len(items) > 0 {
		l.items = append([]T(nil), items...)
	}
	return l
}

// SubscribeCollectionChanged registers a handler for item changes.
func (l *List[T]) SubscribeCollectionChanged(handler CollectionChangedHandler) Subscription {
	return l.collection.add(handler)
}

// CollectionChangedObservers returns the number of registered handlers.
func (l *List[T]) CollectionChangedObservers() int {
	return l.collection.count()
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// At returns the item at index i. It panics if i is out of range.
func (l *List[T]) At(i int) T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[i]
}

// Item returns the item at index i as an untyped value.
func (l *List[T]) Item(i int) any {
	return l.At(i)
}

// ElemType returns the item type.
func (l *List[T]) ElemType() reflect.Type {
	return reflect.TypeFor[T]()
}

// Items returns a copy of the items.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]T(nil), l.items...)
}

// All iterates over index/item pairs of a snapshot of the list.
func (l *List[T]) All() iter.Seq2[int, T] {
	items := l.Items()
	return func(yield func(int, T) bool) {
		for i, v := range items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// IndexOf returns the index of the first item equal to v, or -1.
// Pointers compare by identity.
func (l *List[T]) IndexOf(v T) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, item := range l.items {
		if sameItem(item, v) {
			return i
		}
	}
	return -1
}

// Add appends v.
func (l *List[T]) Add(v T) error {
	l.mu.Lock()
	index := len(l.items)
	l.items = append(l.items, v)
	l.mu.Unlock()

	return l.raise(NewAddArgs(index, v))
}

// Insert inserts v at index i.
func (l *List[T]) Insert(i int, v T) error {
	l.mu.Lock()
	if i < 0 || i > len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return fmt.Errorf("insert at %d of %d: %w", i, n, ErrIndexOutOfRange)
	}
	var zero T
	l.items = append(l.items, zero)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	l.mu.Unlock()

	return l.raise(NewAddArgs(i, v))
}

// RemoveAt removes the item at index i.
func (l *List[T]) RemoveAt(i int) error {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return fmt.Errorf("remove at %d of %d: %w", i, n, ErrIndexOutOfRange)
	}
	old := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()

	return l.raise(NewRemoveArgs(i, old))
}

// Remove removes the first item equal to v and reports whether one was found.
func (l *List[T]) Remove(v T) (bool, error) {
	i := l.IndexOf(v)
	if i < 0 {
		return false, nil
	}
	return true, l.RemoveAt(i)
}

// Set replaces the item at index i.
func (l *List[T]) Set(i int, v T) error {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return fmt.Errorf("set at %d of %d: %w", i, n, ErrIndexOutOfRange)
	}
	old := l.items[i]
	l.items[i] = v
	l.mu.Unlock()

	return l.raise(NewReplaceArgs(i, old, v))
}

// Move moves the item at index from to index to.
func (l *List[T]) Move(from, to int) error {
	l.mu.Lock()
	n := len(l.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		l.mu.Unlock()
		return fmt.Errorf("move %d to %d of %d: %w", from, to, n, ErrIndexOutOfRange)
	}
	item := l.items[from]
	if from < to {
		copy(l.items[from:to], l.items[from+1:to+1])
	} else {
		copy(l.items[to+1:from+1], l.items[to:from])
	}
	l.items[to] = item
	l.mu.Unlock()

	return l.raise(NewMoveArgs(from, to, item))
}

// Clear removes every item and raises a reset.
func (l *List[T]) Clear() error {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()

	return l.raise(NewResetArgs())
}

// Reset replaces the contents with items and raises a reset.
func (l *List[T]) Reset(items ...T) error {
	l.mu.Lock()
	l.items = append([]T(nil), items...)
	l.mu.Unlock()

	return l.raise(NewResetArgs())
}

// InsertItem inserts an untyped item at index i.
func (l *List[T]) InsertItem(i int, v any) error {
	item, err := l.convert(v)
	if err != nil {
		return err
	}
	return l.Insert(i, item)
}

// RemoveItem removes the item at index i.
func (l *List[T]) RemoveItem(i int) error {
	return l.RemoveAt(i)
}

// SetItem replaces the item at index i with an untyped item.
func (l *List[T]) SetItem(i int, v any) error {
	item, err := l.convert(v)
	if err != nil {
		return err
	}
	return l.Set(i, item)
}

// MoveItem moves an item.
func (l *List[T]) MoveItem(from, to int) error {
	return l.Move(from, to)
}

// ClearItems removes every item.
func (l *List[T]) ClearItems() error {
	return l.Clear()
}

// String renders the items.
func (l *List[T]) String() string {
	return fmt.Sprint(l.Items())
}

// convert asserts an untyped value to the item type. nil converts to the zero value.
func (l *List[T]) convert(v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	item, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%T into List[%s]: %w", v, l.ElemType(), ErrItemType)
	}
	return item, nil
}

// raise delivers a collection change to every handler.
func (l *List[T]) raise(e CollectionChangedEventArgs) error {
	return deliver(&l.collection, func(h CollectionChangedHandler) error {
		return h(l, e)
	})
}

// sameItem compares two items, pointers by identity.
func sameItem[T any](a, b T) bool {
	va := reflect.ValueOf(&a).Elem()
	vb := reflect.ValueOf(&b).Elem()
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}
