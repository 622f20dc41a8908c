package node

import (
	"reflect"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/dshills/statetrack/events"
	"github.com/dshills/statetrack/internal/logging"
	"github.com/dshills/statetrack/internal/subscriber"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

// seq stamps every mutation observed by any node.
var seq atomic.Uint64

// Node tracks one notifying object.
type Node struct {
	registry *Registry
	source   any
	value    reflect.Value
	kind     typeinfo.Kind
	settings *settings.Settings

	members map[string]*edge
	items   []*edge

	subscriber *subscriber.Subscriber
	listeners  listeners

	// parents counts owned edges pointing at this node.
	parents map[*Node]int
	// holders are back-reference edges pointing at this node.
	holders map[*edge]struct{}
	// inFlight holds the mutation stamps being emitted by this node.
	inFlight []uint64

	// ready is closed once init has run; initErr is its result.
	ready   chan struct{}
	initErr error

	disposed bool
}

// edge connects a node to the child tracking one member or item.
type edge struct {
	owner  *Node
	member string
	index  int
	target *Node
	handle *Handle
	back   bool
	reg    *Registration
	gone   bool
}

func newNode(r *Registry, source any, v reflect.Value, k typeinfo.Kind, s *settings.Settings) *Node {
	return &Node{
		registry: r,
		source:   source,
		value:    v,
		kind:     k,
		settings: s,
		members:  make(map[string]*edge),
		parents:  make(map[*Node]int),
		holders:  make(map[*edge]struct{}),
		ready:    make(chan struct{}),
	}
}

// Source returns the tracked object.
func (n *Node) Source() any { return n.source }

// Value returns the tracked object as a reflect.Value.
func (n *Node) Value() reflect.Value { return n.value }

// Kind returns typeinfo.Struct or typeinfo.Collection.
func (n *Node) Kind() typeinfo.Kind { return n.kind }

// Settings returns the settings the node tracks under.
func (n *Node) Settings() *settings.Settings { return n.settings }

// Disposed reports whether the node was disposed.
func (n *Node) Disposed() bool { return n.disposed }

// AddListener registers fn for the node's events, after earlier listeners.
func (n *Node) AddListener(fn Listener) *Registration {
	return n.listeners.add(fn)
}

// Listeners returns the number of registered listeners.
func (n *Node) Listeners() int {
	return n.listeners.len()
}

// Child returns the node tracking member name.
func (n *Node) Child(name string) (*Node, bool) {
	e, ok := n.members[name]
	if !ok {
		return nil, false
	}
	return e.target, true
}

// Item returns the node tracking item i.
func (n *Node) Item(i int) (*Node, bool) {
	if i < 0 || i >= len(n.items) || n.items[i] == nil {
		return nil, false
	}
	return n.items[i].target, true
}

// IsBackReference reports whether member name refers back to an ancestor.
func (n *Node) IsBackReference(name string) bool {
	e, ok := n.members[name]
	return ok && e.back
}

// Children returns the number of child edges, back-references included.
func (n *Node) Children() int {
	count := len(n.members)
	for _, e := range n.items {
		if e != nil {
			count++
		}
	}
	return count
}

func (n *Node) typeName() string {
	return settings.TypeName(n.value.Type())
}

func (n *Node) memberPath(name string) string {
	return trackerr.JoinPath(n.typeName(), name)
}

func (n *Node) itemPath(i int) string {
	return trackerr.IndexPath(n.typeName(), strconv.Itoa(i))
}

// init builds the children and subscribes. On failure every child built so
// far is released and nothing stays subscribed.
func (n *Node) init() error {
	switch n.kind {
	case typeinfo.Struct:
		for _, m := range typeinfo.Members(n.value.Type(), n.settings) {
			v, ok := m.Get(n.value)
			if !ok {
				continue
			}
			e, err := n.attach(v, m.Name, -1)
			if err != nil {
				n.releaseChildren()
				return err
			}
			if e != nil {
				n.members[m.Name] = e
			}
		}
	case typeinfo.Collection:
		c := n.source.(observable.Collection)
		count := c.Len()
		n.items = make([]*edge, count)
		for i := range count {
			e, err := n.attach(reflect.ValueOf(c.Item(i)), "", i)
			if err != nil {
				n.releaseChildren()
				return err
			}
			n.items[i] = e
		}
	}

	handlers := subscriber.Handlers{}
	if n.kind == typeinfo.Struct {
		handlers.Property = n.onProperty
	} else {
		handlers.Collection = n.onCollection
	}
	n.subscriber = subscriber.Attach(n.source, handlers)

	log := logging.For("node")
	if log.Enabled(logging.LevelDebug) {
		log.WithFields(map[string]any{"type": n.typeName(), "children": n.Children()}).Debug("tracking")
	}
	return nil
}

// attach creates the edge for a member or item value, or returns nil when the
// value needs no child. index is -1 for members.
func (n *Node) attach(v reflect.Value, member string, index int) (*edge, error) {
	v = typeinfo.Dynamic(v)
	if typeinfo.IsNil(v) {
		return nil, nil
	}
	path := n.memberPath(member)
	if index >= 0 {
		path = n.itemPath(index)
	}

	s := n.settings
	k := typeinfo.Classify(v.Type(), s)
	switch {
	case k == typeinfo.Immutable:
		return nil, nil
	case k == typeinfo.Unsupported:
		return nil, trackerr.Classify(path, v.Type(), s, trackerr.ErrUnsupportedType, "")
	case s.ReferenceHandling() == settings.Throw:
		return nil, trackerr.Classify(path, v.Type(), s, trackerr.ErrNotTrackable, "")
	case !s.Recurses():
		return nil, nil
	case !k.Notifying() || !subscriber.Exposes(v.Interface()):
		return nil, trackerr.Classify(path, v.Type(), s, trackerr.ErrNotNotifying, "")
	}

	source := v.Interface()
	key := Key{source, s}
	r := n.registry

	// The loop check and the parent link are one step, so builds racing
	// around a cycle see each other's edges.
	r.mu.Lock()
	if target, ok := r.cache.Peek(key); ok && n.descendsFrom(target) {
		if !s.ToleratesLoops() {
			r.mu.Unlock()
			return nil, trackerr.Classify(path, v.Type(), s, trackerr.ErrReferenceLoop, "")
		}
		e := &edge{owner: n, member: member, index: index, target: target, back: true}
		target.holders[e] = struct{}{}
		r.mu.Unlock()
		e.reg = target.AddListener(e.forward)
		return e, nil
	}
	h, created, err := r.cache.GetOrCreate(key, func() (*Node, error) {
		return newNode(r, source, reflect.ValueOf(source), k, s), nil
	})
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	child := h.Value()
	child.parents[n]++
	r.mu.Unlock()

	if err := r.await(h, created, n); err != nil {
		return nil, err
	}
	e := &edge{owner: n, member: member, index: index, target: child, handle: h}
	e.reg = child.AddListener(e.forward)
	return e, nil
}

// descendsFrom reports whether target is n or one of its transitive parents.
// The caller holds the registry lock.
func (n *Node) descendsFrom(target *Node) bool {
	if target == n {
		return true
	}
	seen := map[*Node]bool{n: true}
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for p := range cur.parents {
			if p == target {
				return true
			}
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return false
}

// dropParent removes one owned edge from p. The caller holds the registry lock.
func (n *Node) dropParent(p *Node) {
	n.parents[p]--
	if n.parents[p] <= 0 {
		delete(n.parents, p)
	}
}

// release detaches the edge and drops its reference.
func (e *edge) release() {
	if e.gone {
		return
	}
	e.gone = true
	if e.reg != nil {
		e.reg.Remove()
	}
	r := e.owner.registry
	r.mu.Lock()
	if e.back {
		delete(e.target.holders, e)
		r.mu.Unlock()
		return
	}
	e.target.dropParent(e.owner)
	r.mu.Unlock()
	e.handle.Release()
}

// forward re-emits a child's event wrapped relative to the owner.
func (e *edge) forward(ev events.Event) error {
	if e.gone || e.owner.disposed {
		return nil
	}
	o := e.owner
	if e.index >= 0 {
		return o.emit(events.ItemGraph{Source: o.source, Index: e.index, Inner: ev})
	}
	return o.emit(events.PropertyGraph{Source: o.source, Member: e.member, Inner: ev})
}

// emit delivers ev to the listeners. A mutation that comes back to a node
// that is already emitting it went around a reference loop and stops here.
func (n *Node) emit(ev events.Event) error {
	root, _ := events.Origin(ev)
	for _, s := range n.inFlight {
		if s == root.Seq {
			return nil
		}
	}
	n.inFlight = append(n.inFlight, root.Seq)
	defer func() { n.inFlight = n.inFlight[:len(n.inFlight)-1] }()

	return n.listeners.deliver(ev)
}

// emitRoot emits a change of the node's own object.
func (n *Node) emitRoot(c events.Change) error {
	return n.emit(events.Root{Source: n.source, Change: c, Seq: seq.Add(1)})
}

func (n *Node) releaseChildren() {
	for name, e := range n.members {
		e.release()
		delete(n.members, name)
	}
	for _, e := range n.items {
		if e != nil {
			e.release()
		}
	}
	n.items = nil
}

// Dispose detaches the node from its object, releases its children and wakes
// the holders of back-references to it. It is called by the registry when the
// last handle is released.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.disposed = true
	if n.subscriber != nil {
		n.subscriber.Detach()
	}
	n.listeners.clear()
	n.releaseChildren()

	n.registry.mu.Lock()
	holders := make([]*edge, 0, len(n.holders))
	for e := range n.holders {
		holders = append(holders, e)
	}
	n.holders = make(map[*edge]struct{})
	n.registry.mu.Unlock()
	sort.Slice(holders, func(i, j int) bool { return holders[i].index < holders[j].index })

	for _, e := range holders {
		e.gone = true
		if e.owner.disposed {
			continue
		}
		if err := e.owner.rebind(e); err != nil {
			logging.For("node").WithField("type", e.owner.typeName()).Warn("re-resolving back-reference: %v", err)
		}
	}

	log := logging.For("node")
	if log.Enabled(logging.LevelDebug) {
		log.WithField("type", n.typeName()).Debug("disposed")
	}
}

// rebind resolves a back-reference again after its target went away.
func (n *Node) rebind(old *edge) error {
	if old.index < 0 {
		if cur, ok := n.members[old.member]; !ok || cur != old {
			return nil
		}
		delete(n.members, old.member)
		return n.refreshMember(old.member, true)
	}
	if old.index >= len(n.items) || n.items[old.index] != old {
		return nil
	}
	n.items[old.index] = nil
	c := n.source.(observable.Collection)
	e, err := n.attach(reflect.ValueOf(c.Item(old.index)), "", old.index)
	if err != nil {
		return err
	}
	n.items[old.index] = e
	return nil
}
