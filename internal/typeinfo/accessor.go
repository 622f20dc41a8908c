package typeinfo

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

// Sentinel errors for member access.
var (
	// ErrUnreadable is returned when a member sits behind a nil embedded pointer.
	ErrUnreadable = errors.New("member cannot be read")

	// ErrNotSettable is returned when a member cannot be written.
	ErrNotSettable = errors.New("member cannot be set")

	// ErrUnknownMember is returned for a name the type does not have.
	ErrUnknownMember = errors.New("unknown member")
)

var errorType = reflect.TypeFor[error]()

// Member is one tracked member of a struct type.
type Member struct {
	// Name is the field name.
	Name string

	// Type is the field type.
	Type reflect.Type

	index  []int
	setter *reflect.Method
}

// Accessor reads and writes the members of one struct type.
type Accessor struct {
	// Type is the struct type, without pointer.
	Type reflect.Type

	// Members lists members in declaration order.
	Members []*Member

	byName map[string]*Member
}

var accessors sync.Map // reflect.Type -> *Accessor

// AccessorFor returns the accessor for a struct type or a pointer to one.
// It returns nil for other types.
func AccessorFor(t reflect.Type) *Accessor {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if a, ok := accessors.Load(t); ok {
		return a.(*Accessor)
	}
	a, _ := accessors.LoadOrStore(t, buildAccessor(t))
	return a.(*Accessor)
}

func buildAccessor(t reflect.Type) *Accessor {
	a := &Accessor{Type: t, byName: make(map[string]*Member)}
	ptr := reflect.PointerTo(t)

	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		if f.Tag.Get("statetrack") == "-" {
			continue
		}
		m := &Member{Name: f.Name, Type: f.Type, index: f.Index}
		if method, ok := ptr.MethodByName("Set" + f.Name); ok && isSetter(method.Type, f.Type) {
			m.setter = &method
		}
		a.Members = append(a.Members, m)
		a.byName[f.Name] = m
	}
	return a
}

// isSetter accepts func(recv, T) and func(recv, T) error.
func isSetter(mt reflect.Type, field reflect.Type) bool {
	if mt.NumIn() != 2 || !field.AssignableTo(mt.In(1)) {
		return false
	}
	switch mt.NumOut() {
	case 0:
		return true
	case 1:
		return mt.Out(0) == errorType
	default:
		return false
	}
}

// Member returns the named member.
func (a *Accessor) Member(name string) (*Member, bool) {
	m, ok := a.byName[name]
	return m, ok
}

var membersCache sync.Map // settingsKey -> []*Member

// Members returns the members of t that s does not exclude.
func Members(t reflect.Type, s *settings.Settings) []*Member {
	a := AccessorFor(t)
	if a == nil {
		return nil
	}
	key := settingsKey{a.Type, s}
	if v, ok := membersCache.Load(key); ok {
		return v.([]*Member)
	}

	var out []*Member
	for _, m := range a.Members {
		if s.IsIgnoredMember(a.Type, m.Name) || s.IsIgnoredType(m.Type) {
			continue
		}
		out = append(out, m)
	}
	v, _ := membersCache.LoadOrStore(key, out)
	return v.([]*Member)
}

// IsTracked reports whether member name of owner type t is tracked under s.
func IsTracked(t reflect.Type, name string, s *settings.Settings) bool {
	for _, m := range Members(t, s) {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Get reads the member from owner, a struct or pointer to struct.
// ok is false when the owner is nil or an embedded pointer on the field path is nil.
func (m *Member) Get(owner reflect.Value) (v reflect.Value, ok bool) {
	sv, ok := Indirect(owner)
	if !ok {
		return reflect.Value{}, false
	}
	f, err := sv.FieldByIndexErr(m.index)
	if err != nil {
		return reflect.Value{}, false
	}
	return f, true
}

// Readable reports whether the member can be read on owner.
func (m *Member) Readable(owner reflect.Value) bool {
	_, ok := m.Get(owner)
	return ok
}

// Set writes v to the member of owner, a pointer to struct. The Set<Name>
// method is used when the type has one; otherwise the field is assigned and a
// change is raised when the owner is an observable.PropertyRaiser.
// An invalid v sets the zero value.
func (m *Member) Set(owner reflect.Value, v reflect.Value) error {
	if !v.IsValid() {
		v = reflect.Zero(m.Type)
	}
	if !v.Type().AssignableTo(m.Type) {
		if !v.Type().ConvertibleTo(m.Type) {
			return fmt.Errorf("%s: %s is not assignable to %s: %w", m.Name, v.Type(), m.Type, ErrNotSettable)
		}
		v = v.Convert(m.Type)
	}
	if owner.Kind() != reflect.Pointer || owner.IsNil() {
		return fmt.Errorf("%s: owner is not a non-nil pointer: %w", m.Name, ErrNotSettable)
	}

	if m.setter != nil {
		out := m.setter.Func.Call([]reflect.Value{owner, v})
		if len(out) == 1 && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}

	f, err := owner.Elem().FieldByIndexErr(m.index)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Name, ErrUnreadable)
	}
	if !f.CanSet() {
		return fmt.Errorf("%s: %w", m.Name, ErrNotSettable)
	}
	f.Set(v)

	if r, ok := owner.Interface().(observable.PropertyRaiser); ok {
		return r.NotifyPropertyChanged(owner.Interface(), m.Name)
	}
	return nil
}

// HasSetter reports whether writes go through a Set<Name> method.
func (m *Member) HasSetter() bool {
	return m.setter != nil
}
