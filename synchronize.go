package statetrack

import (
	"github.com/google/uuid"

	"github.com/dshills/statetrack/internal/synchronize"
)

// Synchronizer keeps a target graph a copy of a source graph. Changing the
// target directly while it runs is an error returned to the mutating caller.
type Synchronizer struct {
	id   uuid.UUID
	sync *synchronize.Synchronizer
}

// Synchronize copies source into target and keeps applying source changes
// until Dispose.
func Synchronize(source, target any, opts ...Option) (*Synchronizer, error) {
	cfg := newConfig(opts)
	sy, err := synchronize.New(cfg.nodes, source, target, cfg.settings)
	if err != nil {
		return nil, err
	}
	return &Synchronizer{id: uuid.New(), sync: sy}, nil
}

// ID returns the synchronizer's identifier.
func (s *Synchronizer) ID() uuid.UUID {
	return s.id
}

// Dispose stops synchronizing. It may be called more than once.
func (s *Synchronizer) Dispose() {
	s.sync.Dispose()
}
