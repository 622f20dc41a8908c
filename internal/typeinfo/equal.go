package typeinfo

import (
	"reflect"
	"unsafe"
)

// Equal compares two immutable values. A type's Equal(T) bool method wins,
// then reflect.Value.Equal for comparable types, then reflect.DeepEqual.
func Equal(x, y reflect.Value) bool {
	x, y = Dynamic(x), Dynamic(y)
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Type() != y.Type() {
		return false
	}
	if x.Kind() == reflect.Pointer {
		if x.IsNil() || y.IsNil() {
			return x.IsNil() == y.IsNil()
		}
		if x.Pointer() == y.Pointer() {
			return true
		}
		if eq, ok := callEqual(x, y); ok {
			return eq
		}
		return Equal(x.Elem(), y.Elem())
	}
	if eq, ok := callEqual(x, y); ok {
		return eq
	}
	if x.Type().Comparable() {
		return x.Equal(y)
	}
	return reflect.DeepEqual(x.Interface(), y.Interface())
}

// callEqual calls x.Equal(y) when x's type has a method func (T) Equal(T) bool.
func callEqual(x, y reflect.Value) (eq, ok bool) {
	m := x.MethodByName("Equal")
	if !m.IsValid() {
		return false, false
	}
	mt := m.Type()
	if mt.NumIn() != 1 || mt.NumOut() != 1 || mt.In(0) != x.Type() || mt.Out(0).Kind() != reflect.Bool {
		return false, false
	}
	return m.Call([]reflect.Value{y})[0].Bool(), true
}

// ID identifies a reference value for loop detection.
type ID struct {
	Type reflect.Type
	Ptr  unsafe.Pointer
	Len  int
}

// Identity returns the identity of a pointer, map, slice or interface holding one.
// ok is false for nil and for values without identity.
func Identity(v reflect.Value) (ID, bool) {
	v = Dynamic(v)
	if !v.IsValid() {
		return ID{}, false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return ID{}, false
		}
		return ID{Type: v.Type(), Ptr: v.UnsafePointer()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return ID{}, false
		}
		return ID{Type: v.Type(), Ptr: v.UnsafePointer(), Len: v.Len()}, true
	default:
		return ID{}, false
	}
}

// Same reports whether two values are the same reference, or equal when they
// have no identity.
func Same(x, y reflect.Value) bool {
	xi, xok := Identity(x)
	yi, yok := Identity(y)
	if xok || yok {
		return xok && yok && xi == yi
	}
	return Equal(x, y)
}
