// Package compare builds a one-shot diff between two object graphs.
package compare

import (
	"reflect"
	"strconv"

	"github.com/dshills/statetrack/diff"
	"github.com/dshills/statetrack/internal/loopguard"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/internal/verify"
	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

// Diff returns the differences between x and y, or nil when they are equal.
func Diff(x, y any, s *settings.Settings) (*diff.ValueDiff, error) {
	c := &comparer{
		settings: s,
		guardX:   loopguard.New(s),
		guardY:   loopguard.New(s),
		onPath:   make(map[pairKey]*frame),
	}
	xv, yv := reflect.ValueOf(x), reflect.ValueOf(y)
	path := "<nil>"
	if xv.IsValid() {
		path = settings.TypeName(xv.Type())
	}
	n, _, err := c.compare(xv, yv, path, true)
	if err != nil {
		return nil, err
	}
	return n.finish(), nil
}

// Equal reports whether x and y have no differences.
func Equal(x, y any, s *settings.Settings) (bool, error) {
	d, err := Diff(x, y, s)
	if err != nil {
		return false, err
	}
	return d == nil, nil
}

type pairKey struct {
	x, y typeinfo.ID
}

// frame is a pair being compared. real is set once the pair is done and
// reports whether it has differences that do not go through a loop.
type frame struct {
	real bool
}

// node is a diff under construction. Loop markers are resolved in finish,
// once the real status of the pair they point back to is known.
type node struct {
	x, y any
	subs []sub
	leaf bool
	loop *frame
}

type sub struct {
	member string
	index  any
	item   bool
	n      *node
}

func (n *node) finish() *diff.ValueDiff {
	switch {
	case n == nil:
		return nil
	case n.loop != nil:
		if !n.loop.real {
			return nil
		}
		return diff.Loop(n.x, n.y)
	case n.leaf:
		return diff.New(n.x, n.y)
	}

	var subs []diff.SubDiff
	for _, s := range n.subs {
		d := s.n.finish()
		if d == nil {
			continue
		}
		if s.item {
			subs = append(subs, diff.Index(s.index, d))
		} else {
			subs = append(subs, diff.Member(s.member, d))
		}
	}
	if len(subs) == 0 {
		return nil
	}
	return diff.New(n.x, n.y, subs...)
}

type comparer struct {
	settings *settings.Settings
	guardX   *loopguard.Guard
	guardY   *loopguard.Guard
	onPath   map[pairKey]*frame
}

func leaf(x, y reflect.Value) *node {
	return &node{x: Interface(x), y: Interface(y), leaf: true}
}

// Interface returns v as an interface value, nil for an invalid value.
func Interface(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// compare returns the pending diff of a pair and whether it holds a
// difference that does not go through a reference loop.
func (c *comparer) compare(xv, yv reflect.Value, path string, root bool) (*node, bool, error) {
	xv, yv = typeinfo.Dynamic(xv), typeinfo.Dynamic(yv)
	xnil, ynil := typeinfo.IsNil(xv), typeinfo.IsNil(yv)
	switch {
	case xnil && ynil:
		return nil, false, nil
	case xnil || ynil || xv.Type() != yv.Type():
		return leaf(xv, yv), true, nil
	}

	s := c.settings
	t := xv.Type()
	k := typeinfo.Classify(t, s)
	switch {
	case k == typeinfo.Immutable:
		if typeinfo.Equal(xv, yv) {
			return nil, false, nil
		}
		return leaf(xv, yv), true, nil
	case k == typeinfo.Unsupported:
		return nil, false, trackerr.Classify(path, t, s, trackerr.ErrUnsupportedType, "")
	case !root && s.ReferenceHandling() == settings.Throw:
		return nil, false, trackerr.Classify(path, t, s, trackerr.ErrNotTrackable, "")
	case !root && !s.Recurses():
		if typeinfo.Same(xv, yv) {
			return nil, false, nil
		}
		return leaf(xv, yv), true, nil
	}

	xid, xok := typeinfo.Identity(xv)
	yid, yok := typeinfo.Identity(yv)
	if xok && yok && xid == yid {
		return nil, false, nil
	}

	if s.ToleratesLoops() {
		if xok && yok {
			key := pairKey{xid, yid}
			if f, ok := c.onPath[key]; ok {
				return &node{x: Interface(xv), y: Interface(yv), loop: f}, false, nil
			}
			f := &frame{}
			c.onPath[key] = f
			defer delete(c.onPath, key)
			n, real, err := c.descend(xv, yv, k, path)
			f.real = real
			return n, real, err
		}
		return c.descend(xv, yv, k, path)
	}

	if _, err := c.guardX.Enter(xv, path); err != nil {
		return nil, false, err
	}
	defer c.guardX.Leave()
	if _, err := c.guardY.Enter(yv, path); err != nil {
		return nil, false, err
	}
	defer c.guardY.Leave()
	return c.descend(xv, yv, k, path)
}

// descend compares the members or items of a pair of complex values.
func (c *comparer) descend(xv, yv reflect.Value, k typeinfo.Kind, path string) (*node, bool, error) {
	n := &node{x: Interface(xv), y: Interface(yv)}
	real := false

	add := func(s sub, r bool) {
		if s.n != nil {
			n.subs = append(n.subs, s)
		}
		real = real || r
	}

	switch k {
	case typeinfo.Struct, typeinfo.ValueStruct:
		for _, m := range typeinfo.Members(xv.Type(), c.settings) {
			mx, okx := m.Get(xv)
			my, oky := m.Get(yv)
			if !okx || !oky {
				continue
			}
			child, r, err := c.compare(mx, my, trackerr.JoinPath(path, m.Name), false)
			if err != nil {
				return nil, false, err
			}
			add(sub{member: m.Name, n: child}, r)
		}

	case typeinfo.Collection, typeinfo.Slice, typeinfo.Array:
		xs, ys := items(xv, k), items(yv, k)
		for i := range max(len(xs), len(ys)) {
			var child *node
			var r bool
			switch {
			case i >= len(xs):
				child, r = &node{x: diff.MissingItem, y: Interface(ys[i]), leaf: true}, true
			case i >= len(ys):
				child, r = &node{x: Interface(xs[i]), y: diff.MissingItem, leaf: true}, true
			default:
				var err error
				child, r, err = c.compare(xs[i], ys[i], trackerr.IndexPath(path, strconv.Itoa(i)), false)
				if err != nil {
					return nil, false, err
				}
			}
			add(sub{index: i, item: true, n: child}, r)
		}

	case typeinfo.Map:
		for _, key := range unionKeys(xv, yv) {
			mx, my := xv.MapIndex(key), yv.MapIndex(key)
			var child *node
			var r bool
			switch {
			case !mx.IsValid():
				child, r = &node{x: diff.MissingItem, y: Interface(my), leaf: true}, true
			case !my.IsValid():
				child, r = &node{x: Interface(mx), y: diff.MissingItem, leaf: true}, true
			default:
				var err error
				child, r, err = c.compare(mx, my, trackerr.IndexPath(path, diff.FormatValue(key.Interface())), false)
				if err != nil {
					return nil, false, err
				}
			}
			add(sub{index: key.Interface(), item: true, n: child}, r)
		}
	}

	if len(n.subs) == 0 {
		return nil, false, nil
	}
	return n, real, nil
}

// items returns the elements of a collection, slice or array.
func items(v reflect.Value, k typeinfo.Kind) []reflect.Value {
	if k == typeinfo.Collection {
		c := v.Interface().(observable.Collection)
		out := make([]reflect.Value, c.Len())
		for i := range out {
			out[i] = reflect.ValueOf(c.Item(i))
		}
		return out
	}
	out := make([]reflect.Value, v.Len())
	for i := range out {
		out[i] = v.Index(i)
	}
	return out
}

// unionKeys returns the keys of both maps in sorted order.
func unionKeys(x, y reflect.Value) []reflect.Value {
	merged := reflect.MakeMapWithSize(x.Type(), x.Len()+y.Len())
	zero := reflect.Zero(x.Type().Elem())
	for _, m := range []reflect.Value{x, y} {
		iter := m.MapRange()
		for iter.Next() {
			merged.SetMapIndex(iter.Key(), zero)
		}
	}
	return verify.SortedKeys(merged)
}
