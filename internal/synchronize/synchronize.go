// Package synchronize keeps a target object graph a copy of a source graph.
//
// The source is tracked through the shared node registry. Every event it emits
// names the path from the source root to the mutated object; the synchronizer
// follows the same path on the target and applies the leaf change there with
// the copier. The target is tracked too, and any target change the
// synchronizer did not make itself is rejected with ErrTargetModified.
package synchronize

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dshills/statetrack/events"
	"github.com/dshills/statetrack/internal/copier"
	"github.com/dshills/statetrack/internal/logging"
	"github.com/dshills/statetrack/internal/node"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/internal/verify"
	"github.com/dshills/statetrack/observable"
	"github.com/dshills/statetrack/settings"
)

// Synchronizer applies source changes to the target.
type Synchronizer struct {
	settings *settings.Settings
	source   reflect.Value
	target   reflect.Value

	sh, th     *node.Handle
	sreg, treg *node.Registration

	// applying counts nested applications; target events are expected
	// while it is positive.
	applying int
	// done holds the target objects the latest mutations were applied to.
	done  map[uint64]map[typeinfo.ID]bool
	order []uint64

	log      *logging.Logger
	disposed bool
}

// New verifies both graphs, copies source into target and starts applying
// source changes.
func New(nodes *node.Registry, source, target any, s *settings.Settings) (*Synchronizer, error) {
	if s == nil {
		s = settings.Default(settings.Structural)
	}
	if err := verify.Synchronize(source, target, s); err != nil {
		return nil, err
	}

	sy := &Synchronizer{
		settings: s,
		source:   reflect.ValueOf(source),
		target:   reflect.ValueOf(target),
		done:     make(map[uint64]map[typeinfo.ID]bool),
		log:      logging.For("sync").WithField("type", settings.TypeName(reflect.TypeOf(source))),
	}
	if err := copier.New(s).Object(sy.source, sy.target); err != nil {
		return nil, err
	}

	sh, err := nodes.Acquire(source, s)
	if err != nil {
		return nil, err
	}
	th, err := nodes.Acquire(target, s)
	if err != nil {
		sh.Release()
		return nil, err
	}
	sy.sh, sy.th = sh, th
	sy.sreg = sh.Value().AddListener(sy.onSource)
	sy.treg = th.Value().AddListener(sy.onTarget)

	sy.log.Debug("synchronizing")
	return sy, nil
}

// Disposed reports whether Dispose was called.
func (sy *Synchronizer) Disposed() bool {
	return sy.disposed
}

// Dispose stops synchronizing. It may be called more than once.
func (sy *Synchronizer) Dispose() {
	if sy.disposed {
		return
	}
	sy.disposed = true
	sy.sreg.Remove()
	sy.treg.Remove()
	sy.sh.Release()
	sy.th.Release()
	sy.log.Debug("disposed")
}

// onTarget rejects target changes made by anyone but the synchronizer.
func (sy *Synchronizer) onTarget(ev events.Event) error {
	if sy.disposed || sy.applying > 0 {
		return nil
	}
	return trackerr.Misuse("synchronize", ev.String(), trackerr.ErrTargetModified)
}

// onSource applies a source change to the target.
func (sy *Synchronizer) onSource(ev events.Event) error {
	if sy.disposed {
		return nil
	}
	root, ok := events.Origin(ev)
	if !ok {
		return nil
	}

	links, err := sy.walk(ev)
	if err != nil {
		return err
	}
	last := links[len(links)-1]

	if id, ok := typeinfo.Identity(last.Target); ok && !sy.first(root.Seq, id) {
		return nil
	}

	sy.applying++
	defer func() { sy.applying-- }()

	if err := sy.apply(root.Change, last, links); err != nil {
		return fmt.Errorf("applying %s: %w", ev, err)
	}
	if sy.log.Enabled(logging.LevelDebug) {
		sy.log.WithField("change", ev.String()).Debug("applied")
	}
	return nil
}

// remembered bounds the mutations whose targets are remembered. Copies of
// one mutation arrive while it is being delivered.
const remembered = 64

// first records that mutation seq reached target id and reports whether it
// had not before.
func (sy *Synchronizer) first(seq uint64, id typeinfo.ID) bool {
	applied, ok := sy.done[seq]
	if !ok {
		applied = make(map[typeinfo.ID]bool)
		sy.done[seq] = applied
		sy.order = append(sy.order, seq)
		if len(sy.order) > remembered {
			delete(sy.done, sy.order[0])
			sy.order = sy.order[1:]
		}
	}
	if applied[id] {
		return false
	}
	applied[id] = true
	return true
}

// walk follows the event path on both graphs and returns the objects along
// it, the mutated one last.
func (sy *Synchronizer) walk(ev events.Event) ([]copier.Link, error) {
	src, dst := sy.source, sy.target
	links := []copier.Link{{Source: src, Target: dst}}

	var path strings.Builder
	path.WriteString(settings.TypeName(src.Type()))
	for _, st := range events.Path(ev) {
		if st.IsItem() {
			fmt.Fprintf(&path, "[%d]", st.Index)
			sc, ok1 := src.Interface().(observable.Collection)
			dc, ok2 := dst.Interface().(observable.Collection)
			if !ok1 || !ok2 || st.Index >= sc.Len() || st.Index >= dc.Len() {
				return nil, trackerr.Misuse("synchronize", path.String(), trackerr.ErrNotReachable)
			}
			src, dst = reflect.ValueOf(sc.Item(st.Index)), reflect.ValueOf(dc.Item(st.Index))
		} else {
			path.WriteString("." + st.Member)
			m, ok := typeinfo.AccessorFor(src.Type()).Member(st.Member)
			if !ok {
				return nil, trackerr.Misuse("synchronize", path.String(), trackerr.ErrNotReachable)
			}
			var ok1, ok2 bool
			src, ok1 = m.Get(src)
			dst, ok2 = m.Get(dst)
			if !ok1 || !ok2 {
				return nil, trackerr.Misuse("synchronize", path.String(), trackerr.ErrNotReachable)
			}
		}

		src, dst = typeinfo.Dynamic(src), typeinfo.Dynamic(dst)
		if typeinfo.IsNil(src) || typeinfo.IsNil(dst) || src.Type() != dst.Type() {
			return nil, trackerr.Misuse("synchronize", path.String(), trackerr.ErrNotReachable)
		}
		links = append(links, copier.Link{Source: src, Target: dst})
	}
	return links, nil
}

func (sy *Synchronizer) apply(c events.Change, at copier.Link, links []copier.Link) error {
	cp := copier.New(sy.settings, links...)
	src, dst := at.Source, at.Target

	switch ch := c.(type) {
	case events.PropertyChange:
		if ch.Member != "" {
			return cp.Member(src, dst, ch.Member)
		}
		var errs []error
		for _, m := range typeinfo.Members(src.Type(), sy.settings) {
			errs = append(errs, cp.Member(src, dst, m.Name))
		}
		return errors.Join(errs...)
	case events.Add:
		return cp.InsertItem(src, dst, ch.Index)
	case events.Remove:
		return cp.RemoveItem(dst, ch.Index)
	case events.Replace:
		return cp.ReplaceItem(src, dst, ch.Index)
	case events.Move:
		return cp.MoveItem(dst, ch.From, ch.To)
	default:
		return cp.Items(src, dst)
	}
}
