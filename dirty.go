package statetrack

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dshills/statetrack/diff"
	"github.com/dshills/statetrack/internal/dirty"
	"github.com/dshills/statetrack/internal/logging"
	"github.com/dshills/statetrack/internal/verify"
	"github.com/dshills/statetrack/observable"
)

// DirtyTracker keeps the differences between two graphs up to date.
// It raises "IsDirty" and "Diff" property changes when they change.
type DirtyTracker struct {
	observable.Notifier

	id     uuid.UUID
	handle *dirty.Handle
	reg    *dirty.Registration
	diff   *diff.ValueDiff
	log    *logging.Logger

	disposed bool
}

// TrackDirty starts comparing x with y. Both must have the same type.
func TrackDirty(x, y any, opts ...Option) (*DirtyTracker, error) {
	cfg := newConfig(opts)
	if err := verify.Dirty(x, y, cfg.settings); err != nil {
		return nil, err
	}
	h, err := cfg.pairs.Acquire(x, y, cfg.settings)
	if err != nil {
		return nil, err
	}

	t := &DirtyTracker{id: uuid.New(), handle: h, diff: h.Value().Diff()}
	t.log = logging.For("tracker").WithField("id", t.id)
	t.reg = h.Value().AddListener(t.onDiff)
	t.log.Debug("tracking differences")
	return t, nil
}

// ID returns the tracker's identifier.
func (t *DirtyTracker) ID() uuid.UUID {
	return t.id
}

// IsDirty reports whether the graphs differ.
func (t *DirtyTracker) IsDirty() bool {
	return t.diff != nil
}

// Diff returns the current differences, or nil. A returned diff is never
// modified afterwards.
func (t *DirtyTracker) Diff() *diff.ValueDiff {
	return t.diff
}

func (t *DirtyTracker) onDiff() error {
	if t.disposed {
		return nil
	}
	d := t.handle.Value().Diff()
	if d == t.diff {
		return nil
	}
	wasDirty := t.diff != nil
	t.diff = d

	var errs []error
	if wasDirty != (d != nil) {
		errs = append(errs, t.NotifyPropertyChanged(t, "IsDirty"))
	}
	errs = append(errs, t.NotifyPropertyChanged(t, "Diff"))
	return errors.Join(errs...)
}

// Dispose stops tracking and drops every handler. It may be called more than
// once. The last diff stays available.
func (t *DirtyTracker) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.reg.Remove()
	t.handle.Release()
	t.ClearPropertyChanged()
	t.log.Debug("disposed")
}
