// Package dirty maintains a live diff between two object graphs.
//
// A Pair compares one object of the x graph with its counterpart in the y
// graph. Pairs are cached per (x, y, settings) like nodes, and each pair holds
// the shared nodes of both sides. A pair reacts only to changes of its own two
// objects: it re-compares the changed member, or re-pairs the items of a
// collection from the first affected index, and splices the cached diffs of
// its child pairs into a new diff. Children tell their parents only when their
// diff actually changed, so one edit recomputes one path to the root.
package dirty

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dshills/statetrack/internal/cache"
	"github.com/dshills/statetrack/internal/node"
	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/settings"
)

// PairKey identifies a pair.
type PairKey struct {
	X        any
	Y        any
	Settings *settings.Settings
}

// String renders the key for logging.
func (k PairKey) String() string {
	return fmt.Sprintf("%T@%p/%p", k.X, k.X, k.Y)
}

// Handle is one reference to a shared pair.
type Handle = cache.Handle[PairKey, *Pair]

// Registry owns the live pairs of one engine instance.
type Registry struct {
	nodes *node.Registry
	cache *cache.Cache[PairKey, *Pair]

	// mu guards the parents and holders of every pair in the registry.
	mu sync.Mutex
}

// NewRegistry creates a pair registry whose pairs share nodes from nodes.
func NewRegistry(nodes *node.Registry) *Registry {
	return &Registry{nodes: nodes, cache: cache.New[PairKey, *Pair]("pairs")}
}

// Default is the process-wide pair registry built on node.Default.
var Default = NewRegistry(node.Default)

// Nodes returns the node registry the pairs use.
func (r *Registry) Nodes() *node.Registry {
	return r.nodes
}

// Acquire returns a handle to the pair comparing x and y under s.
func (r *Registry) Acquire(x, y any, s *settings.Settings) (*Handle, error) {
	if s == nil {
		s = settings.Default(settings.Structural)
	}
	if reflect.TypeOf(x) != reflect.TypeOf(y) {
		return nil, trackerr.Misuse("track dirty", "", fmt.Errorf("%T and %T: %w", x, y, trackerr.ErrTypeMismatch))
	}

	h, created, err := r.cache.GetOrCreate(PairKey{x, y, s}, func() (*Pair, error) {
		return newPair(r, reflect.ValueOf(x), reflect.ValueOf(y), s), nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.await(h, created, nil); err != nil {
		return nil, err
	}
	return h, nil
}

// await builds the pair of h when created, or waits for the goroutine that
// created it. A failed build is reported to every acquirer.
func (r *Registry) await(h *Handle, created bool, parent *Pair) error {
	p := h.Value()
	if created {
		p.initErr = p.init()
		close(p.ready)
	} else {
		<-p.ready
	}
	if p.initErr == nil {
		return nil
	}
	if parent != nil {
		r.mu.Lock()
		p.dropParent(parent)
		r.mu.Unlock()
	}
	h.Release()
	return p.initErr
}

// Len returns the number of live pairs.
func (r *Registry) Len() int {
	return r.cache.Len()
}
