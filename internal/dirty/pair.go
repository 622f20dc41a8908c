package dirty

import (
	"errors"
	"reflect"
	"sort"
	"strconv"

	"github.com/dshills/statetrack/diff"
	"github.com/dshills/statetrack/events"
	"github.com/dshills/statetrack/internal/compare"
	"github.com/dshills/statetrack/internal/logging"
	"github.com/dshills/statetrack/internal/node"
	"github.com/dshills/statetrack/internal/subscriber"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

// Pair keeps the diff between an object of the x graph and its counterpart
// in the y graph up to date.
type Pair struct {
	registry *Registry
	x, y     reflect.Value
	kind     typeinfo.Kind
	settings *settings.Settings

	xh, yh     *node.Handle
	xreg, yreg *node.Registration

	members map[string]*slot
	items   []*slot

	current *diff.ValueDiff
	parts   []part
	// real reports a difference that does not go through a reference loop.
	real bool

	listeners listeners
	parents   map[*Pair]int
	holders   map[*slot]struct{}

	// ready is closed once init has run; initErr is its result.
	ready   chan struct{}
	initErr error

	disposed bool
}

// slot is the comparison of one member or item. It holds either a leaf diff
// or a child pair; back slots point at an ancestor and take no reference.
type slot struct {
	owner  *Pair
	member string
	index  int

	leaf *diff.ValueDiff

	target *Pair
	handle *Handle
	back   bool
	marker *diff.ValueDiff
	reg    *Registration

	gone bool
}

type part struct {
	member string
	index  int
	d      *diff.ValueDiff
}

func newPair(r *Registry, x, y reflect.Value, s *settings.Settings) *Pair {
	return &Pair{
		registry: r,
		x:        x,
		y:        y,
		settings: s,
		members:  make(map[string]*slot),
		parents:  make(map[*Pair]int),
		holders:  make(map[*slot]struct{}),
		ready:    make(chan struct{}),
	}
}

// X returns the x side object.
func (p *Pair) X() any { return p.x.Interface() }

// Y returns the y side object.
func (p *Pair) Y() any { return p.y.Interface() }

// Diff returns the current differences, nil when the sides are equal.
func (p *Pair) Diff() *diff.ValueDiff { return p.current }

// IsDirty reports whether the sides differ.
func (p *Pair) IsDirty() bool { return p.current != nil }

// Disposed reports whether the pair was disposed.
func (p *Pair) Disposed() bool { return p.disposed }

// AddListener registers fn to run whenever the diff changes.
func (p *Pair) AddListener(fn func() error) *Registration {
	return p.listeners.add(fn)
}

// Child returns the pair comparing member name.
func (p *Pair) Child(name string) (*Pair, bool) {
	s, ok := p.members[name]
	if !ok || s.target == nil {
		return nil, false
	}
	return s.target, true
}

// Item returns the pair comparing item i.
func (p *Pair) Item(i int) (*Pair, bool) {
	if i < 0 || i >= len(p.items) || p.items[i] == nil || p.items[i].target == nil {
		return nil, false
	}
	return p.items[i].target, true
}

func (s *slot) diff() *diff.ValueDiff {
	switch {
	case s == nil:
		return nil
	case s.target == nil:
		return s.leaf
	case s.back:
		if s.target.real {
			return s.marker
		}
		return nil
	default:
		return s.target.current
	}
}

func (s *slot) isReal() bool {
	switch {
	case s == nil || s.back:
		return false
	case s.target == nil:
		return s.leaf != nil
	default:
		return s.target.real
	}
}

func (p *Pair) typeName() string {
	return settings.TypeName(p.x.Type())
}

func (p *Pair) init() error {
	xh, err := p.registry.nodes.Acquire(p.x.Interface(), p.settings)
	if err != nil {
		return err
	}
	p.xh = xh
	yh, err := p.registry.nodes.Acquire(p.y.Interface(), p.settings)
	if err != nil {
		return err
	}
	p.yh = yh
	p.kind = xh.Value().Kind()

	switch p.kind {
	case typeinfo.Struct:
		for _, m := range typeinfo.Members(p.x.Type(), p.settings) {
			if err := p.rebuildMember(m.Name, false); err != nil {
				return err
			}
		}
	case typeinfo.Collection:
		if err := p.rebuildItems(0); err != nil {
			return err
		}
	}

	p.xreg = xh.Value().AddListener(p.onEvent)
	if yh.Value() != xh.Value() {
		p.yreg = yh.Value().AddListener(p.onEvent)
	}

	if err := p.update(); err != nil {
		return err
	}

	log := logging.For("dirty")
	if log.Enabled(logging.LevelDebug) {
		log.WithFields(map[string]any{"type": p.typeName(), "dirty": p.IsDirty()}).Debug("comparing")
	}
	return nil
}

// onEvent reacts to a change of either side's own object. Changes below it
// reach this pair through the child pairs.
func (p *Pair) onEvent(ev events.Event) error {
	root, ok := ev.(events.Root)
	if !ok || p.disposed {
		return nil
	}

	var err error
	switch c := root.Change.(type) {
	case events.PropertyChange:
		if c.Member == "" {
			var errs []error
			for _, m := range typeinfo.Members(p.x.Type(), p.settings) {
				errs = append(errs, p.rebuildMember(m.Name, false))
			}
			err = errors.Join(errs...)
		} else {
			err = p.rebuildMember(c.Member, false)
		}
	case events.Add:
		err = p.rebuildItems(c.Index)
	case events.Remove:
		err = p.rebuildItems(c.Index)
	case events.Replace:
		err = p.rebuildItems(c.Index)
	case events.Move:
		err = p.rebuildItems(min(c.From, c.To))
	default:
		err = p.rebuildItems(0)
	}
	return errors.Join(err, p.update())
}

// rebuildMember compares member name again. A child pair for the same two
// objects is kept unless force is set.
func (p *Pair) rebuildMember(name string, force bool) error {
	if !typeinfo.IsTracked(p.x.Type(), name, p.settings) {
		return nil
	}
	m, ok := typeinfo.AccessorFor(p.x.Type()).Member(name)
	if !ok {
		return nil
	}
	old := p.members[name]
	prev := old
	if force {
		prev = nil
	}

	var next *slot
	var err error
	mx, okx := m.Get(p.x)
	my, oky := m.Get(p.y)
	if okx && oky {
		next, err = p.makeSlot(mx, my, name, -1, prev)
	}
	if next != nil {
		p.members[name] = next
	} else {
		delete(p.members, name)
	}
	if old != nil && old != next {
		old.release()
	}
	return err
}

// rebuildItems pairs the items again from index from on. Slots before it are
// kept as they are.
func (p *Pair) rebuildItems(from int) error {
	xs, ys := p.itemValues(p.x), p.itemValues(p.y)
	n := max(len(xs), len(ys))
	from = min(max(from, 0), n, len(p.items))

	items := make([]*slot, n)
	copy(items, p.items[:from])

	var errs []error
	kept := make(map[*slot]bool)
	for i := from; i < n; i++ {
		var prev *slot
		if i < len(p.items) {
			prev = p.items[i]
		}
		var next *slot
		switch {
		case i >= len(xs):
			next = p.leafSlot(diff.MissingItem, compare.Interface(ys[i]), "", i, prev)
		case i >= len(ys):
			next = p.leafSlot(compare.Interface(xs[i]), diff.MissingItem, "", i, prev)
		default:
			var err error
			next, err = p.makeSlot(xs[i], ys[i], "", i, prev)
			if err != nil {
				errs = append(errs, err)
			}
		}
		if next != nil {
			next.index = i
			kept[next] = true
		}
		items[i] = next
	}

	old := p.items[from:]
	p.items = items
	for _, s := range old {
		if s != nil && !kept[s] {
			s.release()
		}
	}
	return errors.Join(errs...)
}

func (p *Pair) itemValues(v reflect.Value) []reflect.Value {
	c := v.Interface().(observable.Collection)
	out := make([]reflect.Value, c.Len())
	for i := range out {
		out[i] = reflect.ValueOf(c.Item(i))
	}
	return out
}

// makeSlot compares two member or item values. It returns nil when they are
// equal, and prev when prev already compares the same two objects.
func (p *Pair) makeSlot(mx, my reflect.Value, member string, index int, prev *slot) (*slot, error) {
	xv, yv := typeinfo.Detach(typeinfo.Dynamic(mx)), typeinfo.Detach(typeinfo.Dynamic(my))
	xnil, ynil := typeinfo.IsNil(xv), typeinfo.IsNil(yv)
	switch {
	case xnil && ynil:
		return nil, nil
	case xnil || ynil || xv.Type() != yv.Type():
		return p.leafSlot(compare.Interface(xv), compare.Interface(yv), member, index, prev), nil
	}

	path := trackerr.JoinPath(p.typeName(), member)
	if index >= 0 {
		path = trackerr.IndexPath(p.typeName(), strconv.Itoa(index))
	}
	s := p.settings
	t := xv.Type()
	k := typeinfo.Classify(t, s)
	switch {
	case k == typeinfo.Immutable:
		if typeinfo.Equal(xv, yv) {
			return nil, nil
		}
		return p.leafSlot(xv.Interface(), yv.Interface(), member, index, prev), nil
	case k == typeinfo.Unsupported:
		return nil, trackerr.Classify(path, t, s, trackerr.ErrUnsupportedType, "")
	case s.ReferenceHandling() == settings.Throw:
		return nil, trackerr.Classify(path, t, s, trackerr.ErrNotTrackable, "")
	case !s.Recurses():
		if typeinfo.Same(xv, yv) {
			return nil, nil
		}
		return p.leafSlot(xv.Interface(), yv.Interface(), member, index, prev), nil
	}

	xid, xok := typeinfo.Identity(xv)
	yid, yok := typeinfo.Identity(yv)
	if xok && yok && xid == yid {
		return nil, nil
	}
	if !k.Notifying() || !subscriber.Exposes(xv.Interface()) {
		return nil, trackerr.Classify(path, t, s, trackerr.ErrNotNotifying, "")
	}
	if prev != nil && prev.target != nil && prev.target.compares(xv, yv) {
		return prev, nil
	}

	key := PairKey{xv.Interface(), yv.Interface(), s}
	r := p.registry
	r.mu.Lock()
	if target, ok := r.cache.Peek(key); ok && p.descendsFrom(target) {
		if !s.ToleratesLoops() {
			r.mu.Unlock()
			return nil, trackerr.Classify(path, t, s, trackerr.ErrReferenceLoop, "")
		}
		sl := &slot{owner: p, member: member, index: index, target: target, back: true, marker: diff.Loop(key.X, key.Y)}
		target.holders[sl] = struct{}{}
		r.mu.Unlock()
		return sl, nil
	}
	h, created, err := r.cache.GetOrCreate(key, func() (*Pair, error) {
		return newPair(r, xv, yv, s), nil
	})
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	child := h.Value()
	child.parents[p]++
	r.mu.Unlock()

	if err := r.await(h, created, p); err != nil {
		return nil, err
	}
	sl := &slot{owner: p, member: member, index: index, target: child, handle: h}
	sl.reg = child.listeners.add(sl.forward)
	return sl, nil
}

// leafSlot returns a slot holding the leaf diff x/y, reusing prev when it
// holds the same leaf.
func (p *Pair) leafSlot(x, y any, member string, index int, prev *slot) *slot {
	if prev != nil && prev.target == nil && prev.leaf != nil &&
		typeinfo.Same(reflect.ValueOf(prev.leaf.X), reflect.ValueOf(x)) &&
		typeinfo.Same(reflect.ValueOf(prev.leaf.Y), reflect.ValueOf(y)) {
		return prev
	}
	return &slot{owner: p, member: member, index: index, leaf: diff.New(x, y)}
}

// compares reports whether p compares exactly xv and yv.
func (p *Pair) compares(xv, yv reflect.Value) bool {
	return typeinfo.Same(p.x, xv) && typeinfo.Same(p.y, yv)
}

// descendsFrom reports whether target is p or one of its transitive parents.
// The caller holds the registry lock.
func (p *Pair) descendsFrom(target *Pair) bool {
	if target == p {
		return true
	}
	seen := map[*Pair]bool{p: true}
	queue := []*Pair{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for parent := range cur.parents {
			if parent == target {
				return true
			}
			if !seen[parent] {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return false
}

// dropParent removes one owned slot of parent. The caller holds the registry
// lock.
func (p *Pair) dropParent(parent *Pair) {
	p.parents[parent]--
	if p.parents[parent] <= 0 {
		delete(p.parents, parent)
	}
}

func (s *slot) release() {
	if s.gone {
		return
	}
	s.gone = true
	if s.reg != nil {
		s.reg.Remove()
	}
	if s.target == nil {
		return
	}
	r := s.owner.registry
	r.mu.Lock()
	if s.back {
		delete(s.target.holders, s)
		r.mu.Unlock()
		return
	}
	s.target.dropParent(s.owner)
	r.mu.Unlock()
	s.handle.Release()
}

// forward runs when the child pair's diff changed.
func (s *slot) forward() error {
	if s.gone || s.owner.disposed {
		return nil
	}
	return s.owner.update()
}

// update splices the slot diffs into a new diff. Listeners run only when the
// diff changed. When the pair starts or stops having real differences the
// back slots pointing at it add or drop their loop markers.
func (p *Pair) update() error {
	if p.disposed {
		return nil
	}
	changed, flipped := p.recompute()

	var errs []error
	if flipped {
		for _, h := range p.holderSlots(false) {
			if h.gone || h.owner.disposed {
				continue
			}
			errs = append(errs, h.owner.update())
		}
	}
	if changed {
		errs = append(errs, p.listeners.deliver())
	}
	return errors.Join(errs...)
}

func (p *Pair) recompute() (changed, flipped bool) {
	var parts []part
	real := false
	if p.kind == typeinfo.Struct {
		for _, m := range typeinfo.Members(p.x.Type(), p.settings) {
			s := p.members[m.Name]
			if d := s.diff(); d != nil {
				parts = append(parts, part{member: m.Name, index: -1, d: d})
			}
			real = real || s.isReal()
		}
	}
	for i, s := range p.items {
		if d := s.diff(); d != nil {
			parts = append(parts, part{index: i, d: d})
		}
		real = real || s.isReal()
	}

	if real != p.real {
		p.real = real
		flipped = true
	}
	if samePartsAs(p.parts, parts) {
		return false, flipped
	}
	p.parts = parts
	if len(parts) == 0 {
		p.current = nil
		return true, flipped
	}
	subs := make([]diff.SubDiff, len(parts))
	for i, pt := range parts {
		if pt.index >= 0 {
			subs[i] = diff.Index(pt.index, pt.d)
		} else {
			subs[i] = diff.Member(pt.member, pt.d)
		}
	}
	p.current = diff.New(p.x.Interface(), p.y.Interface(), subs...)
	return true, flipped
}

func samePartsAs(a, b []part) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// holderSlots returns the back slots pointing at p in a stable order, and
// forgets them when reset is set.
func (p *Pair) holderSlots(reset bool) []*slot {
	p.registry.mu.Lock()
	out := make([]*slot, 0, len(p.holders))
	for s := range p.holders {
		out = append(out, s)
	}
	if reset {
		p.holders = make(map[*slot]struct{})
	}
	p.registry.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].member != out[j].member {
			return out[i].member < out[j].member
		}
		return out[i].index < out[j].index
	})
	return out
}

// Dispose releases the child pairs and both nodes, then re-resolves the back
// slots of pairs that still point here. It is called by the registry when the
// last handle is released.
func (p *Pair) Dispose() {
	if p.disposed {
		return
	}
	p.disposed = true
	if p.xreg != nil {
		p.xreg.Remove()
	}
	if p.yreg != nil {
		p.yreg.Remove()
	}
	p.listeners.clear()

	for name, s := range p.members {
		s.release()
		delete(p.members, name)
	}
	for _, s := range p.items {
		if s != nil {
			s.release()
		}
	}
	p.items = nil
	if p.xh != nil {
		p.xh.Release()
	}
	if p.yh != nil {
		p.yh.Release()
	}

	for _, s := range p.holderSlots(true) {
		s.gone = true
		if s.owner.disposed {
			continue
		}
		if err := s.owner.rebind(s); err != nil {
			logging.For("dirty").WithField("type", s.owner.typeName()).Warn("re-resolving back-reference: %v", err)
		}
	}

	log := logging.For("dirty")
	if log.Enabled(logging.LevelDebug) {
		log.WithField("type", p.typeName()).Debug("disposed")
	}
}

// rebind compares a back slot's position again after its target went away.
func (p *Pair) rebind(old *slot) error {
	var err error
	if old.index < 0 {
		if cur, ok := p.members[old.member]; !ok || cur != old {
			return nil
		}
		delete(p.members, old.member)
		err = p.rebuildMember(old.member, true)
	} else {
		if old.index >= len(p.items) || p.items[old.index] != old {
			return nil
		}
		p.items[old.index] = nil
		err = p.rebuildItems(old.index)
	}
	return errors.Join(err, p.update())
}
