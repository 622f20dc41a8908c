package statetrack

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dshills/statetrack/events"
	"github.com/dshills/statetrack/internal/logging"
	"github.com/dshills/statetrack/internal/node"
	"github.com/dshills/statetrack/internal/verify"
	"github.com/dshills/statetrack/observable"
)

// ChangeTracker reports every change in the graph below a root object.
// It raises a "Changes" property change whenever the counter moves.
type ChangeTracker struct {
	observable.Notifier

	id      uuid.UUID
	handle  *node.Handle
	reg     *node.Registration
	changed observable.Event[events.Event]
	seen    recent
	changes int
	log     *logging.Logger

	disposed bool
}

// Track starts tracking changes below root.
func Track(root any, opts ...Option) (*ChangeTracker, error) {
	cfg := newConfig(opts)
	if err := verify.Changes(root, cfg.settings); err != nil {
		return nil, err
	}
	h, err := cfg.nodes.Acquire(root, cfg.settings)
	if err != nil {
		return nil, err
	}

	t := &ChangeTracker{id: uuid.New(), handle: h}
	t.log = logging.For("tracker").WithField("id", t.id)
	t.reg = h.Value().AddListener(t.onEvent)
	t.log.Debug("tracking changes")
	return t, nil
}

// ID returns the tracker's identifier.
func (t *ChangeTracker) ID() uuid.UUID {
	return t.id
}

// Changes returns the number of mutations seen. A mutation that reaches the
// root along several paths counts once.
func (t *ChangeTracker) Changes() int {
	return t.changes
}

// SubscribeChanged registers a handler for every mutation. Errors it returns
// are returned to the mutating caller.
func (t *ChangeTracker) SubscribeChanged(handler func(events.Event) error) observable.Subscription {
	return t.changed.Subscribe(handler)
}

func (t *ChangeTracker) onEvent(ev events.Event) error {
	if t.disposed {
		return nil
	}
	if root, ok := events.Origin(ev); ok && !t.seen.add(root.Seq) {
		return nil
	}
	t.changes++
	if t.log.Enabled(logging.LevelDebug) {
		t.log.WithField("change", ev.String()).Debug("changed")
	}
	return errors.Join(t.changed.Raise(ev), t.NotifyPropertyChanged(t, "Changes"))
}

// Dispose stops tracking and drops every handler. It may be called more than
// once.
func (t *ChangeTracker) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.reg.Remove()
	t.handle.Release()
	t.changed.Clear()
	t.ClearPropertyChanged()
	t.log.Debug("disposed")
}
