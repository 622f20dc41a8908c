package verify

import (
	"reflect"

	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/settings"
)

// TypeChanges verifies that values of t can be tracked for changes. Interface
// members cannot be decided from the type and are checked when reached.
func TypeChanges(t reflect.Type, s *settings.Settings) error {
	return walkType(t, s, true)
}

// TypeDirty verifies that values of t can be dirty tracked.
func TypeDirty(t reflect.Type, s *settings.Settings) error {
	return walkType(t, s, true)
}

// TypeSynchronize verifies that values of t can be synchronized.
func TypeSynchronize(t reflect.Type, s *settings.Settings) error {
	return walkType(t, s, true)
}

// TypeComparable verifies that values of t can be compared and copied once.
func TypeComparable(t reflect.Type, s *settings.Settings) error {
	return walkType(t, s, false)
}

type typeWalker struct {
	settings *settings.Settings
	live     bool
	visiting map[reflect.Type]bool
}

func walkType(t reflect.Type, s *settings.Settings, live bool) error {
	if t == nil {
		return trackerr.Misuse("verify", "", trackerr.ErrNilRoot)
	}
	w := &typeWalker{settings: s, live: live, visiting: make(map[reflect.Type]bool)}
	return w.walk(t, settings.TypeName(t), true)
}

func (w *typeWalker) walk(t reflect.Type, path string, root bool) error {
	s := w.settings
	k := typeinfo.Classify(t, s)

	switch {
	case k == typeinfo.Immutable, k == typeinfo.Interface:
		return nil
	case k == typeinfo.Unsupported:
		return trackerr.Classify(path, t, s, trackerr.ErrUnsupportedType, "")
	case !root && s.ReferenceHandling() == settings.Throw:
		return trackerr.Classify(path, t, s, trackerr.ErrNotTrackable, "")
	case !root && !s.Recurses():
		return nil
	case w.live && !notifies(t, k):
		return trackerr.Classify(path, t, s, trackerr.ErrNotNotifying, notifyHint(k))
	}

	// A recursive type is not a loop by itself; loops are found on values.
	if w.visiting[t] {
		return nil
	}
	w.visiting[t] = true
	defer delete(w.visiting, t)

	switch k {
	case typeinfo.Struct, typeinfo.ValueStruct:
		for _, m := range typeinfo.Members(t, s) {
			if err := w.walk(m.Type, trackerr.JoinPath(path, m.Name), false); err != nil {
				return err
			}
		}
	case typeinfo.Collection, typeinfo.Slice, typeinfo.Array, typeinfo.Map:
		if elem := typeinfo.ElemType(t); elem != nil {
			return w.walk(elem, path+"[]", false)
		}
	}
	return nil
}

func notifies(t reflect.Type, k typeinfo.Kind) bool {
	switch k {
	case typeinfo.Struct:
		return typeinfo.IsNotifyingProperty(t)
	case typeinfo.Collection:
		return true
	default:
		return false
	}
}
