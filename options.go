package statetrack

import (
	"github.com/dshills/statetrack/internal/dirty"
	"github.com/dshills/statetrack/internal/node"
	"github.com/dshills/statetrack/settings"
)

// Option configures a tracker or a one-shot operation.
type Option func(*config)

type config struct {
	settings *settings.Settings
	handling *settings.ReferenceHandling
	nodes    *node.Registry
	pairs    *dirty.Registry
}

// WithSettings sets the settings to track under.
func WithSettings(s *settings.Settings) Option {
	return func(c *config) {
		c.settings = s
	}
}

// WithReferenceHandling overrides the reference handling. Other settings given
// with WithSettings are kept.
func WithReferenceHandling(h settings.ReferenceHandling) Option {
	return func(c *config) {
		c.handling = &h
	}
}

// withRegistry isolates the engine state, for tests.
func withRegistry(nodes *node.Registry) Option {
	return func(c *config) {
		c.nodes = nodes
		c.pairs = dirty.NewRegistry(nodes)
	}
}

func newConfig(opts []Option) *config {
	c := &config{nodes: node.Default, pairs: dirty.Default}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.settings == nil && c.handling == nil:
		c.settings = settings.Default(settings.Structural)
	case c.settings == nil:
		c.settings = settings.Default(*c.handling)
	case c.handling != nil && *c.handling != c.settings.ReferenceHandling():
		c.settings = rehandle(c.settings, *c.handling)
	}
	return c
}

// rehandle returns s with another reference handling.
func rehandle(s *settings.Settings, h settings.ReferenceHandling) *settings.Settings {
	var opts []settings.Option
	for _, name := range s.IgnoredTypes() {
		opts = append(opts, settings.IgnoreTypeName(name))
	}
	for _, name := range s.IgnoredMembers() {
		opts = append(opts, settings.IgnoreMemberName(name))
	}
	for _, name := range s.ImmutableTypes() {
		opts = append(opts, settings.ImmutableTypeName(name))
	}
	return settings.New(h, opts...)
}
