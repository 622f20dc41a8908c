package node

import (
	"errors"
	"reflect"
	"slices"

	"github.com/dshills/statetrack/events"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/observable"
)

// onProperty handles a member change of a struct node.
func (n *Node) onProperty(e observable.PropertyChangedEventArgs) error {
	if n.disposed {
		return nil
	}

	var errs []error
	if e.AllProperties() {
		for _, m := range typeinfo.Members(n.value.Type(), n.settings) {
			if err := n.refreshMember(m.Name, false); err != nil {
				errs = append(errs, err)
			}
		}
	} else {
		if !typeinfo.IsTracked(n.value.Type(), e.PropertyName, n.settings) {
			return nil
		}
		if err := n.refreshMember(e.PropertyName, false); err != nil {
			errs = append(errs, err)
		}
	}

	if err := n.emitRoot(events.PropertyChange{Member: e.PropertyName}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// refreshMember makes the child of member name reflect its current value.
// The new child is acquired before the old one is released so a subtree that
// stays reachable is not torn down. force rebuilds even when the identity is
// unchanged.
func (n *Node) refreshMember(name string, force bool) error {
	a := typeinfo.AccessorFor(n.value.Type())
	m, ok := a.Member(name)
	if !ok {
		return nil
	}
	old := n.members[name]

	v, readable := m.Get(n.value)
	if !readable {
		if old != nil {
			delete(n.members, name)
			old.release()
		}
		return nil
	}

	if old != nil && !force {
		newID, okNew := typeinfo.Identity(v)
		oldID, okOld := typeinfo.Identity(old.target.value)
		if okNew && okOld && newID == oldID {
			return nil
		}
	}

	e, err := n.attach(v, name, -1)
	if err != nil {
		if old != nil {
			delete(n.members, name)
			old.release()
		}
		return err
	}
	if e != nil {
		n.members[name] = e
	} else {
		delete(n.members, name)
	}
	if old != nil {
		old.release()
	}
	return nil
}

// onCollection handles an item change of a collection node.
func (n *Node) onCollection(e observable.CollectionChangedEventArgs) error {
	if n.disposed {
		return nil
	}
	c := n.source.(observable.Collection)

	var errs []error
	var changes []events.Change

	switch e.Action {
	case observable.ActionAdd:
		at := e.NewIndex
		if at < 0 || at > len(n.items) {
			errs = append(errs, n.rebuildItems())
			changes = append(changes, events.Reset{})
			break
		}
		for j := range max(len(e.NewItems), 1) {
			i := at + j
			var ed *edge
			if i < c.Len() {
				var err error
				if ed, err = n.attach(reflect.ValueOf(c.Item(i)), "", i); err != nil {
					errs = append(errs, err)
				}
			}
			n.items = slices.Insert(n.items, i, ed)
			changes = append(changes, events.Add{Index: i})
		}
		n.reindex(at)

	case observable.ActionRemove:
		at := e.OldIndex
		if at < 0 || at >= len(n.items) {
			errs = append(errs, n.rebuildItems())
			changes = append(changes, events.Reset{})
			break
		}
		for range max(len(e.OldItems), 1) {
			if at >= len(n.items) {
				break
			}
			if ed := n.items[at]; ed != nil {
				ed.release()
			}
			n.items = slices.Delete(n.items, at, at+1)
			changes = append(changes, events.Remove{Index: at})
		}
		n.reindex(at)

	case observable.ActionReplace:
		i := e.NewIndex
		if i < 0 || i >= len(n.items) || i >= c.Len() {
			errs = append(errs, n.rebuildItems())
			changes = append(changes, events.Reset{})
			break
		}
		old := n.items[i]
		ed, err := n.attach(reflect.ValueOf(c.Item(i)), "", i)
		if err != nil {
			errs = append(errs, err)
		}
		n.items[i] = ed
		if old != nil {
			old.release()
		}
		changes = append(changes, events.Replace{Index: i})

	case observable.ActionMove:
		from, to := e.OldIndex, e.NewIndex
		if from < 0 || from >= len(n.items) || to < 0 || to >= len(n.items) {
			errs = append(errs, n.rebuildItems())
			changes = append(changes, events.Reset{})
			break
		}
		ed := n.items[from]
		n.items = slices.Delete(n.items, from, from+1)
		n.items = slices.Insert(n.items, to, ed)
		n.reindex(min(from, to))
		changes = append(changes, events.Move{From: from, To: to})

	default:
		errs = append(errs, n.rebuildItems())
		changes = append(changes, events.Reset{})
	}

	for _, ch := range changes {
		if err := n.emitRoot(ch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// rebuildItems re-reads every item. New children are acquired before the old
// ones are released.
func (n *Node) rebuildItems() error {
	c := n.source.(observable.Collection)
	old := n.items
	n.items = make([]*edge, c.Len())

	var errs []error
	for i := range n.items {
		ed, err := n.attach(reflect.ValueOf(c.Item(i)), "", i)
		if err != nil {
			errs = append(errs, err)
		}
		n.items[i] = ed
	}
	for _, ed := range old {
		if ed != nil {
			ed.release()
		}
	}
	return errors.Join(errs...)
}

// reindex updates the index of every item edge from position from on.
func (n *Node) reindex(from int) {
	for i := from; i < len(n.items); i++ {
		if ed := n.items[i]; ed != nil {
			ed.index = i
		}
	}
}
