// Package copier writes the state of one object graph into another.
//
// Writes go through typeinfo.Member.Set and observable.MutableCollection, so
// the target raises its own notifications. Under Structural handling existing
// target sub-objects of the right type are reused in place and new ones are
// constructed otherwise. References handling assigns the source references.
// StructuralWithReferenceLoops maps a source object already being copied to
// its target counterpart, which reproduces cycles.
package copier

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/dshills/statetrack/internal/compare"
	"github.com/dshills/statetrack/internal/loopguard"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/internal/verify"
	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

// Link pairs a source object with its target counterpart.
type Link struct {
	Source reflect.Value
	Target reflect.Value
}

// Copier performs one copy operation. The links it is created with are the
// source objects enclosing the copied position and their counterparts.
type Copier struct {
	settings *settings.Settings
	guard    *loopguard.Guard
	onPath   map[typeinfo.ID]reflect.Value
	path     string
}

// New creates a copier for a position below the given ancestors.
func New(s *settings.Settings, ancestors ...Link) *Copier {
	if s == nil {
		s = settings.Default(settings.Structural)
	}
	c := &Copier{
		settings: s,
		guard:    loopguard.New(s),
		onPath:   make(map[typeinfo.ID]reflect.Value),
	}
	for _, l := range ancestors {
		src := typeinfo.Dynamic(l.Source)
		c.guard.Enter(src, "")
		if id, ok := typeinfo.Identity(src); ok {
			c.onPath[id] = typeinfo.Dynamic(l.Target)
		}
		c.path = settings.TypeName(src.Type())
	}
	return c
}

// Copy makes target equal to source. Both must be non-nil pointers of the
// same type.
func Copy(source, target any, s *settings.Settings) error {
	sv, tv := reflect.ValueOf(source), reflect.ValueOf(target)
	if typeinfo.IsNil(sv) || typeinfo.IsNil(tv) {
		return trackerr.Misuse("copy", "", trackerr.ErrNilRoot)
	}
	if sv.Type() != tv.Type() {
		return trackerr.Misuse("copy", "", fmt.Errorf("%s into %s: %w", sv.Type(), tv.Type(), trackerr.ErrTypeMismatch))
	}
	return New(s).Object(sv, tv)
}

// Object copies every member or item of src into dst in place.
func (c *Copier) Object(src, dst reflect.Value) error {
	src, dst = typeinfo.Dynamic(src), typeinfo.Dynamic(dst)
	path := settings.TypeName(src.Type())
	k := typeinfo.Classify(src.Type(), c.settings)
	if k != typeinfo.Struct && k != typeinfo.Collection {
		return trackerr.Classify(path, src.Type(), c.settings, trackerr.ErrNotTrackable, "only struct pointers and collections are copied in place")
	}
	if _, err := c.guard.Enter(src, path); err != nil {
		return err
	}
	defer c.guard.Leave()
	return c.into(src, dst, k, path)
}

// Member copies member name of src into dst.
func (c *Copier) Member(src, dst reflect.Value, name string) error {
	src, dst = typeinfo.Dynamic(src), typeinfo.Dynamic(dst)
	m, ok := typeinfo.AccessorFor(src.Type()).Member(name)
	if !ok {
		return fmt.Errorf("%s.%s: %w", settings.TypeName(src.Type()), name, typeinfo.ErrUnknownMember)
	}
	return c.member(m, src, dst, c.memberPath(name))
}

// InsertItem copies item i of the src collection into dst at index i.
func (c *Copier) InsertItem(src, dst reflect.Value, i int) error {
	s, d, err := collections(src, dst)
	if err != nil {
		return err
	}
	if i < 0 || i >= s.Len() {
		return fmt.Errorf("insert at %d of %d: %w", i, s.Len(), observable.ErrIndexOutOfRange)
	}
	v, err := c.value(reflect.ValueOf(s.Item(i)), reflect.Value{}, c.itemPath(i))
	if err != nil {
		return err
	}
	return d.InsertItem(i, compare.Interface(v))
}

// RemoveItem removes item i of dst.
func (c *Copier) RemoveItem(dst reflect.Value, i int) error {
	d, ok := typeinfo.Dynamic(dst).Interface().(observable.MutableCollection)
	if !ok {
		return notMutable(dst)
	}
	return d.RemoveItem(i)
}

// ReplaceItem makes item i of dst equal to item i of src.
func (c *Copier) ReplaceItem(src, dst reflect.Value, i int) error {
	s, d, err := collections(src, dst)
	if err != nil {
		return err
	}
	if i < 0 || i >= s.Len() || i >= d.Len() {
		return fmt.Errorf("replace at %d: %w", i, observable.ErrIndexOutOfRange)
	}
	return c.item(s, d, i)
}

// MoveItem moves an item of dst.
func (c *Copier) MoveItem(dst reflect.Value, from, to int) error {
	d, ok := typeinfo.Dynamic(dst).Interface().(observable.MutableCollection)
	if !ok {
		return notMutable(dst)
	}
	return d.MoveItem(from, to)
}

// Items makes every item of dst equal to the items of src.
func (c *Copier) Items(src, dst reflect.Value) error {
	s, d, err := collections(src, dst)
	if err != nil {
		return err
	}
	return c.items(s, d)
}

func (c *Copier) memberPath(name string) string {
	return trackerr.JoinPath(c.path, name)
}

func (c *Copier) itemPath(i int) string {
	return trackerr.IndexPath(c.path, strconv.Itoa(i))
}

func collections(src, dst reflect.Value) (observable.Collection, observable.MutableCollection, error) {
	s, ok := typeinfo.Dynamic(src).Interface().(observable.Collection)
	if !ok {
		return nil, nil, trackerr.Classify("", src.Type(), nil, trackerr.ErrNotNotifying, "not a collection")
	}
	d, ok := typeinfo.Dynamic(dst).Interface().(observable.MutableCollection)
	if !ok {
		return nil, nil, notMutable(dst)
	}
	return s, d, nil
}

func notMutable(v reflect.Value) error {
	return trackerr.Classify("", v.Type(), nil, trackerr.ErrNotNotifying, "the target collection is not mutable")
}

// member copies one member and writes it only when the target value changes.
func (c *Copier) member(m *typeinfo.Member, src, dst reflect.Value, path string) error {
	sv, ok := m.Get(src)
	if !ok {
		return nil
	}
	dv, ok := m.Get(dst)
	if !ok {
		return nil
	}
	nv, err := c.value(sv, dv, path)
	if err != nil {
		return err
	}
	if unchanged(nv, dv) {
		return nil
	}
	return m.Set(dst, nv)
}

func (c *Copier) item(s observable.Collection, d observable.MutableCollection, i int) error {
	dv := reflect.ValueOf(d.Item(i))
	nv, err := c.value(reflect.ValueOf(s.Item(i)), dv, c.itemPath(i))
	if err != nil {
		return err
	}
	if unchanged(nv, dv) {
		return nil
	}
	return d.SetItem(i, compare.Interface(nv))
}

func (c *Copier) items(s observable.Collection, d observable.MutableCollection) error {
	n := s.Len()
	for i := range min(n, d.Len()) {
		if err := c.item(s, d, i); err != nil {
			return err
		}
	}
	for d.Len() > n {
		if err := d.RemoveItem(d.Len() - 1); err != nil {
			return err
		}
	}
	for i := d.Len(); i < n; i++ {
		v, err := c.value(reflect.ValueOf(s.Item(i)), reflect.Value{}, c.itemPath(i))
		if err != nil {
			return err
		}
		if err := d.InsertItem(i, compare.Interface(v)); err != nil {
			return err
		}
	}
	return nil
}

// unchanged reports whether writing nv over dv would change nothing.
func unchanged(nv, dv reflect.Value) bool {
	dv = typeinfo.Dynamic(dv)
	if typeinfo.IsNil(nv) || typeinfo.IsNil(dv) {
		return typeinfo.IsNil(nv) && typeinfo.IsNil(dv)
	}
	return typeinfo.Same(nv, dv)
}

// value returns the value to store in the target position currently holding
// dv. Complex values are copied into dv when it can be reused.
func (c *Copier) value(sv, dv reflect.Value, path string) (reflect.Value, error) {
	sv = typeinfo.Dynamic(sv)
	if typeinfo.IsNil(sv) {
		return reflect.Value{}, nil
	}

	s := c.settings
	t := sv.Type()
	k := typeinfo.Classify(t, s)
	switch {
	case k == typeinfo.Immutable:
		return sv, nil
	case k == typeinfo.Unsupported:
		return reflect.Value{}, trackerr.Classify(path, t, s, trackerr.ErrUnsupportedType, "")
	case s.ReferenceHandling() == settings.Throw:
		return reflect.Value{}, trackerr.Classify(path, t, s, trackerr.ErrNotTrackable, "")
	case !s.Recurses():
		return sv, nil
	}

	if id, ok := typeinfo.Identity(sv); ok {
		if mapped, ok := c.onPath[id]; ok && s.ToleratesLoops() {
			return mapped, nil
		}
	}
	descend, err := c.guard.Enter(sv, path)
	if err != nil {
		return reflect.Value{}, err
	}
	if !descend {
		return sv, nil
	}
	defer c.guard.Leave()

	dv = typeinfo.Dynamic(dv)
	switch k {
	case typeinfo.Struct, typeinfo.Collection:
		target := dv
		if typeinfo.IsNil(dv) || dv.Type() != t || typeinfo.Same(sv, dv) {
			target = reflect.New(t.Elem())
		}
		if err := c.into(sv, target, k, path); err != nil {
			return reflect.Value{}, err
		}
		return target, nil

	case typeinfo.ValueStruct:
		ptr := reflect.New(t)
		if err := c.into(sv, ptr, k, path); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil

	case typeinfo.Slice, typeinfo.Array:
		var out reflect.Value
		if k == typeinfo.Slice {
			out = reflect.MakeSlice(t, sv.Len(), sv.Len())
		} else {
			out = reflect.New(t).Elem()
		}
		for i := range sv.Len() {
			var old reflect.Value
			if dv.IsValid() && dv.Type() == t && i < dv.Len() {
				old = dv.Index(i)
			}
			v, err := c.value(sv.Index(i), old, trackerr.IndexPath(path, strconv.Itoa(i)))
			if err != nil {
				return reflect.Value{}, err
			}
			store(out.Index(i), v)
		}
		return out, nil

	case typeinfo.Map:
		out := reflect.MakeMapWithSize(t, sv.Len())
		for _, key := range verify.SortedKeys(sv) {
			var old reflect.Value
			if dv.IsValid() && dv.Type() == t {
				old = dv.MapIndex(key)
			}
			v, err := c.value(sv.MapIndex(key), old, trackerr.IndexPath(path, fmt.Sprint(key.Interface())))
			if err != nil {
				return reflect.Value{}, err
			}
			if !v.IsValid() {
				v = reflect.Zero(t.Elem())
			}
			out.SetMapIndex(key, v)
		}
		return out, nil
	}
	return sv, nil
}

// into copies the members or items of src into the existing object dst.
func (c *Copier) into(src, dst reflect.Value, k typeinfo.Kind, path string) error {
	if id, ok := typeinfo.Identity(src); ok {
		c.onPath[id] = dst
		defer delete(c.onPath, id)
	}
	saved := c.path
	c.path = path
	defer func() { c.path = saved }()

	if k == typeinfo.Collection {
		s, d, err := collections(src, dst)
		if err != nil {
			return err
		}
		return c.items(s, d)
	}
	for _, m := range typeinfo.Members(src.Type(), c.settings) {
		if err := c.member(m, src, dst, trackerr.JoinPath(path, m.Name)); err != nil {
			return err
		}
	}
	return nil
}

func store(dst, v reflect.Value) {
	if !v.IsValid() {
		dst.Set(reflect.Zero(dst.Type()))
		return
	}
	if !v.Type().AssignableTo(dst.Type()) && v.Type().ConvertibleTo(dst.Type()) {
		v = v.Convert(dst.Type())
	}
	dst.Set(v)
}
