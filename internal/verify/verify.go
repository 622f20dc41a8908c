// Package verify checks up front, without subscribing to anything, that an
// object graph or a type can be handled by a tracker under given settings.
//
// Live checks (Changes, Dirty, Synchronize) require every reachable complex
// value to announce its changes. One-shot checks (Comparable, Copyable) also
// accept plain slices, arrays, maps and struct values. Every check fails on the
// first offending member with a *trackerr.ClassificationError whose Path
// locates it from the root, for example Person.Pets[1].Owner.
package verify

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/dshills/statetrack/internal/loopguard"
	"github.com/dshills/statetrack/internal/subscriber"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

// Changes verifies that root can be tracked for changes.
func Changes(root any, s *settings.Settings) error {
	return walkRoot("track", root, s, true)
}

// Dirty verifies that x and y can be dirty tracked against each other.
func Dirty(x, y any, s *settings.Settings) error {
	if err := sameType("track dirty", x, y); err != nil {
		return err
	}
	if err := walkRoot("track dirty", x, s, true); err != nil {
		return err
	}
	return walkRoot("track dirty", y, s, true)
}

// Synchronize verifies that source can be synchronized into target.
func Synchronize(source, target any, s *settings.Settings) error {
	if err := sameType("synchronize", source, target); err != nil {
		return err
	}
	if typeinfo.Same(reflect.ValueOf(source), reflect.ValueOf(target)) {
		return trackerr.Misuse("synchronize", "", fmt.Errorf("source and target are the same object: %w", trackerr.ErrTypeMismatch))
	}
	if err := walkRoot("synchronize", source, s, true); err != nil {
		return err
	}
	return walkRoot("synchronize", target, s, true)
}

// Comparable verifies that x and y can be compared once.
func Comparable(x, y any, s *settings.Settings) error {
	if err := walkRoot("compare", x, s, false); err != nil {
		return err
	}
	return walkRoot("compare", y, s, false)
}

// Copyable verifies that source can be copied into target once.
func Copyable(source, target any, s *settings.Settings) error {
	if err := sameType("copy", source, target); err != nil {
		return err
	}
	if err := walkRoot("copy", source, s, false); err != nil {
		return err
	}
	return walkRoot("copy", target, s, false)
}

func sameType(op string, x, y any) error {
	if typeinfo.IsNil(reflect.ValueOf(x)) || typeinfo.IsNil(reflect.ValueOf(y)) {
		return trackerr.Misuse(op, "", trackerr.ErrNilRoot)
	}
	if tx, ty := reflect.TypeOf(x), reflect.TypeOf(y); tx != ty {
		return trackerr.Misuse(op, "", fmt.Errorf("%s and %s: %w", tx, ty, trackerr.ErrTypeMismatch))
	}
	return nil
}

// walker is one verification pass.
type walker struct {
	settings *settings.Settings
	guard    *loopguard.Guard
	live     bool
}

func walkRoot(op string, root any, s *settings.Settings, live bool) error {
	v := reflect.ValueOf(root)
	if typeinfo.IsNil(v) {
		return trackerr.Misuse(op, "", trackerr.ErrNilRoot)
	}
	w := &walker{settings: s, guard: loopguard.New(s), live: live}
	return w.walk(v, settings.TypeName(v.Type()), true)
}

func (w *walker) walk(v reflect.Value, path string, root bool) error {
	v = typeinfo.Dynamic(v)
	if typeinfo.IsNil(v) {
		return nil
	}
	s := w.settings
	k := typeinfo.Classify(v.Type(), s)

	switch {
	case k == typeinfo.Immutable:
		return nil
	case k == typeinfo.Unsupported:
		return trackerr.Classify(path, v.Type(), s, trackerr.ErrUnsupportedType, "")
	case !root && s.ReferenceHandling() == settings.Throw:
		return trackerr.Classify(path, v.Type(), s, trackerr.ErrNotTrackable, "")
	case !root && !s.Recurses():
		return nil
	case w.live && (!k.Notifying() || !subscriber.Exposes(v.Interface())):
		return trackerr.Classify(path, v.Type(), s, trackerr.ErrNotNotifying, notifyHint(k))
	}

	descend, err := w.guard.Enter(v, path)
	if err != nil {
		return err
	}
	if !descend {
		return nil
	}
	defer w.guard.Leave()

	switch k {
	case typeinfo.Struct, typeinfo.ValueStruct:
		for _, m := range typeinfo.Members(v.Type(), s) {
			mv, ok := m.Get(v)
			if !ok {
				continue
			}
			if err := w.walk(mv, trackerr.JoinPath(path, m.Name), false); err != nil {
				return err
			}
		}
	case typeinfo.Collection:
		c := v.Interface().(observable.Collection)
		for i := range c.Len() {
			if err := w.walk(reflect.ValueOf(c.Item(i)), trackerr.IndexPath(path, strconv.Itoa(i)), false); err != nil {
				return err
			}
		}
	case typeinfo.Slice, typeinfo.Array:
		for i := range v.Len() {
			if err := w.walk(v.Index(i), trackerr.IndexPath(path, strconv.Itoa(i)), false); err != nil {
				return err
			}
		}
	case typeinfo.Map:
		for _, key := range SortedKeys(v) {
			if err := w.walk(v.MapIndex(key), trackerr.IndexPath(path, fmt.Sprint(key.Interface())), false); err != nil {
				return err
			}
		}
	}
	return nil
}

func notifyHint(k typeinfo.Kind) string {
	switch k {
	case typeinfo.Slice, typeinfo.Array:
		return "use an observable.List"
	case typeinfo.Map, typeinfo.ValueStruct:
		return "use a pointer to a struct embedding observable.Notifier"
	case typeinfo.Struct:
		return "embed observable.Notifier"
	default:
		return ""
	}
}

// SortedKeys returns the keys of map v in a deterministic order.
func SortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})
	return keys
}

func lessKey(a, b reflect.Value) bool {
	a, b = typeinfo.Dynamic(a), typeinfo.Dynamic(b)
	if a.IsValid() && b.IsValid() && a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.String:
			return a.String() < b.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return a.Int() < b.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return a.Uint() < b.Uint()
		case reflect.Float32, reflect.Float64:
			return a.Float() < b.Float()
		case reflect.Bool:
			return !a.Bool() && b.Bool()
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
