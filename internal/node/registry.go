package node

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dshills/statetrack/internal/cache"
	"github.com/dshills/statetrack/internal/subscriber"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/settings"
)

// Key identifies a node: the tracked object and the settings it is tracked under.
type Key struct {
	Source   any
	Settings *settings.Settings
}

// String renders the key for logging.
func (k Key) String() string {
	return fmt.Sprintf("%T@%p", k.Source, k.Source)
}

// Handle is one reference to a shared node.
type Handle = cache.Handle[Key, *Node]

// Registry owns the live nodes of one engine instance.
type Registry struct {
	cache *cache.Cache[Key, *Node]

	// mu guards the parents and holders of every node in the registry.
	mu sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{cache: cache.New[Key, *Node]("nodes")}
}

// Default is the process-wide registry trackers use unless told otherwise.
var Default = NewRegistry()

// Acquire returns a handle to the node tracking source under s, building the
// node and its reachable subgraph when there is none. The caller must release
// the handle.
func (r *Registry) Acquire(source any, s *settings.Settings) (*Handle, error) {
	if s == nil {
		s = settings.Default(settings.Structural)
	}
	v := reflect.ValueOf(source)
	if typeinfo.IsNil(v) {
		return nil, trackerr.Misuse("track", "", trackerr.ErrNilRoot)
	}

	k := typeinfo.Classify(v.Type(), s)
	switch {
	case k == typeinfo.Unsupported:
		return nil, trackerr.Classify("", v.Type(), s, trackerr.ErrUnsupportedType, "")
	case !k.Notifying() || !subscriber.Exposes(source):
		return nil, trackerr.Classify("", v.Type(), s, trackerr.ErrNotNotifying, "the root must notify changes")
	}

	h, created, err := r.cache.GetOrCreate(Key{source, s}, func() (*Node, error) {
		return newNode(r, source, v, k, s), nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.await(h, created, nil); err != nil {
		return nil, err
	}
	return h, nil
}

// await builds the node of h when created, or waits until the goroutine that
// created it has built it. If building failed, the owned edge from parent is
// dropped, h is released and the build error is returned to every acquirer.
//
// A node being built on the calling goroutine is always an ancestor of the
// one asking for it, so it is found as a back-reference and never awaited.
func (r *Registry) await(h *Handle, created bool, parent *Node) error {
	n := h.Value()
	if created {
		n.initErr = n.init()
		close(n.ready)
	} else {
		<-n.ready
	}
	if n.initErr == nil {
		return nil
	}
	if parent != nil {
		r.mu.Lock()
		n.dropParent(parent)
		r.mu.Unlock()
	}
	h.Release()
	return n.initErr
}

// Peek returns the live node for source under s without taking a reference.
func (r *Registry) Peek(source any, s *settings.Settings) (*Node, bool) {
	return r.cache.Peek(Key{source, s})
}

// Len returns the number of live nodes.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Refs returns the number of owners of the node for source under s.
func (r *Registry) Refs(source any, s *settings.Settings) int {
	return r.cache.Refs(Key{source, s})
}
