package typeinfo

import (
	"reflect"
	"sync"
	"time"

	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

// Kind is the engine's view of a type.
type Kind int

const (
	// Immutable values are compared and copied by value.
	Immutable Kind = iota
	// Struct is a pointer to a struct.
	Struct
	// Collection is an observable collection.
	Collection
	// Slice is a plain slice.
	Slice
	// Array is an array with mutable elements.
	Array
	// Map is a plain map.
	Map
	// ValueStruct is a struct value with mutable fields.
	ValueStruct
	// Interface is an interface type; the dynamic value decides.
	Interface
	// Unsupported covers functions, channels, unsafe pointers and pointers to
	// non-struct values.
	Unsupported
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Immutable:
		return "immutable"
	case Struct:
		return "struct"
	case Collection:
		return "collection"
	case Slice:
		return "slice"
	case Array:
		return "array"
	case Map:
		return "map"
	case ValueStruct:
		return "value struct"
	case Interface:
		return "interface"
	default:
		return "unsupported"
	}
}

// Complex reports whether values of the kind are subject to reference handling.
func (k Kind) Complex() bool {
	return k != Immutable
}

// Notifying reports whether values of the kind can announce their own changes.
func (k Kind) Notifying() bool {
	return k == Struct || k == Collection
}

var (
	propertyNotifierType   = reflect.TypeFor[observable.PropertyNotifier]()
	collectionNotifierType = reflect.TypeFor[observable.CollectionNotifier]()
	collectionType         = reflect.TypeFor[observable.Collection]()
	timeType               = reflect.TypeFor[time.Time]()
)

type settingsKey struct {
	t reflect.Type
	s *settings.Settings
}

var immutables sync.Map // settingsKey -> bool

// IsImmutable reports whether values of t never change once created: basic
// kinds, strings, time.Time, arrays of immutables, structs whose fields are all
// immutable, and types declared immutable in s.
func IsImmutable(t reflect.Type, s *settings.Settings) bool {
	if t == nil {
		return true
	}
	key := settingsKey{t, s}
	if v, ok := immutables.Load(key); ok {
		return v.(bool)
	}
	v := isImmutable(t, s)
	immutables.Store(key, v)
	return v
}

func isImmutable(t reflect.Type, s *settings.Settings) bool {
	if s != nil && s.IsImmutable(t) {
		return true
	}
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	case reflect.Array:
		return IsImmutable(t.Elem(), s)
	case reflect.Struct:
		for i := range t.NumField() {
			if !IsImmutable(t.Field(i).Type, s) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsNotifyingProperty reports whether t announces member changes.
func IsNotifyingProperty(t reflect.Type) bool {
	return t != nil && t.Implements(propertyNotifierType)
}

// IsNotifyingCollection reports whether t is an observable collection.
func IsNotifyingCollection(t reflect.Type) bool {
	return t != nil && t.Implements(collectionNotifierType) && t.Implements(collectionType)
}

// Classify returns the kind of t under s.
func Classify(t reflect.Type, s *settings.Settings) Kind {
	if IsImmutable(t, s) {
		return Immutable
	}
	if IsNotifyingCollection(t) {
		return Collection
	}
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return Unsupported
	case reflect.Interface:
		return Interface
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Struct {
			return Struct
		}
		return Unsupported
	case reflect.Slice:
		return Slice
	case reflect.Array:
		return Array
	case reflect.Map:
		return Map
	case reflect.Struct:
		return ValueStruct
	default:
		return Unsupported
	}
}

// ElemType returns the item type of a collection, slice, array or map, and nil
// for every other type.
func ElemType(t reflect.Type) reflect.Type {
	if IsNotifyingCollection(t) {
		c, ok := reflect.Zero(t).Interface().(observable.Collection)
		if !ok {
			return nil
		}
		return c.ElemType()
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return t.Elem()
	default:
		return nil
	}
}

// Indirect returns the struct value behind v, following one pointer.
// ok is false for nil pointers and non-struct values.
func Indirect(v reflect.Value) (reflect.Value, bool) {
	if !v.IsValid() {
		return v, false
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

// Dynamic unwraps interface values until a concrete value or an invalid
// value for nil is reached.
func Dynamic(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// Detach copies v out of the field or element it was read from, so the
// result keeps naming the same object after that field is assigned.
func Detach(v reflect.Value) reflect.Value {
	if !v.IsValid() || !v.CanAddr() || !v.CanInterface() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

// IsNil reports whether v holds no value.
func IsNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
