// Package loopguard detects reference loops during one traversal.
//
// A Guard is created per pass (a verification walk, a diff, a copy) and threaded
// explicitly through the recursive calls; it is never shared between passes.
package loopguard

import (
	"reflect"

	"github.com/dshills/statetrack/internal/trackerr"
	"github.com/dshills/statetrack/internal/typeinfo"
	"github.com/dshills/statetrack/settings"
)

// Guard is a stack of identities currently being visited.
type Guard struct {
	settings *settings.Settings
	stack    []typeinfo.ID
	depth    map[typeinfo.ID]int
}

// New creates a guard for one traversal under s.
func New(s *settings.Settings) *Guard {
	return &Guard{settings: s, depth: make(map[typeinfo.ID]int)}
}

// Enter pushes the identity of v. A value without identity always descends.
// When v is already on the stack, StructuralWithReferenceLoops returns
// descend=false and every other handling returns an ErrReferenceLoop
// classification error locating path.
func (g *Guard) Enter(v reflect.Value, path string) (descend bool, err error) {
	id, ok := typeinfo.Identity(v)
	if !ok {
		g.stack = append(g.stack, typeinfo.ID{})
		return true, nil
	}
	if _, seen := g.depth[id]; seen {
		if g.settings.ToleratesLoops() {
			return false, nil
		}
		return false, trackerr.Classify(path, id.Type, g.settings, trackerr.ErrReferenceLoop, "")
	}
	g.depth[id] = len(g.stack)
	g.stack = append(g.stack, id)
	return true, nil
}

// Leave pops the identity pushed by the matching Enter.
func (g *Guard) Leave() {
	n := len(g.stack)
	if n == 0 {
		return
	}
	id := g.stack[n-1]
	g.stack = g.stack[:n-1]
	if id != (typeinfo.ID{}) {
		delete(g.depth, id)
	}
}

// Contains reports whether v is on the stack.
func (g *Guard) Contains(v reflect.Value) bool {
	id, ok := typeinfo.Identity(v)
	if !ok {
		return false
	}
	_, seen := g.depth[id]
	return seen
}

// Level returns the stack position of v, or -1.
func (g *Guard) Level(v reflect.Value) int {
	id, ok := typeinfo.Identity(v)
	if !ok {
		return -1
	}
	d, seen := g.depth[id]
	if !seen {
		return -1
	}
	return d
}

// Depth returns the number of entries on the stack.
func (g *Guard) Depth() int {
	return len(g.stack)
}
