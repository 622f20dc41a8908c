// Package events defines the structured change payloads produced by statetrack
// trackers.
//
// A mutation of a tracked object is described by a leaf Change (PropertyChange,
// Add, Remove, Replace, Move or Reset) wrapped in a Root naming the object that
// changed. As the notification travels up the tracked graph every parent wraps it
// again: PropertyGraph when it arrived through a member, ItemGraph when it arrived
// through a collection index. The event a tracker receives therefore spells out
// the path from the tracked root to the mutated object:
//
//	PropertyGraph{Member: "Pets", Inner:
//	    ItemGraph{Index: 2, Inner:
//	        Root{Change: PropertyChange{Member: "Name"}}}}
//
// renders as "Pets[2].Name".
package events

import (
	"strconv"
	"strings"
)

// Change is a leaf change of a single object.
type Change interface {
	change()
	String() string
}

// PropertyChange reports that a member of an object changed.
// An empty Member means every member may have changed.
type PropertyChange struct {
	Member string
}

// Add reports that an item was inserted at Index.
type Add struct {
	Index int
}

// Remove reports that the item at Index was removed.
type Remove struct {
	Index int
}

// Replace reports that the item at Index was replaced.
type Replace struct {
	Index int
}

// Move reports that an item moved from From to To.
type Move struct {
	From int
	To   int
}

// Reset reports that a collection must be re-read entirely.
type Reset struct{}

func (PropertyChange) change() {}
func (Add) change()            {}
func (Remove) change()         {}
func (Replace) change()        {}
func (Move) change()           {}
func (Reset) change()          {}

func (c PropertyChange) String() string {
	if c.Member == "" {
		return "*"
	}
	return c.Member
}

func (c Add) String() string     { return "[" + strconv.Itoa(c.Index) + "] added" }
func (c Remove) String() string  { return "[" + strconv.Itoa(c.Index) + "] removed" }
func (c Replace) String() string { return "[" + strconv.Itoa(c.Index) + "] replaced" }
func (c Move) String() string {
	return "[" + strconv.Itoa(c.From) + "] moved to [" + strconv.Itoa(c.To) + "]"
}
func (Reset) String() string { return "reset" }

// Event is a change observed by a tracker.
type Event interface {
	// EventSource returns the object that raised this level of the event.
	EventSource() any

	// String renders the path from the receiving tracker to the change.
	String() string

	event()
}

// Root is a change of the object that raised it.
type Root struct {
	// Source is the mutated object.
	Source any

	// Change describes the mutation.
	Change Change

	// Seq is a process-wide stamp identifying the mutation. Copies of one
	// mutation that reach a tracker along several paths share it.
	Seq uint64
}

// PropertyGraph is a change that happened below a member of Source.
type PropertyGraph struct {
	Source any
	Member string
	Inner  Event
}

// ItemGraph is a change that happened below an item of Source.
type ItemGraph struct {
	Source any
	Index  int
	Inner  Event
}

func (Root) event()          {}
func (PropertyGraph) event() {}
func (ItemGraph) event()     {}

// EventSource returns the mutated object.
func (e Root) EventSource() any { return e.Source }

// EventSource returns the object owning Member.
func (e PropertyGraph) EventSource() any { return e.Source }

// EventSource returns the collection owning Index.
func (e ItemGraph) EventSource() any { return e.Source }

func (e Root) String() string          { return render(e) }
func (e PropertyGraph) String() string { return render(e) }
func (e ItemGraph) String() string     { return render(e) }

// Step is one hop of an event path.
type Step struct {
	// Member is set for a member hop.
	Member string

	// Index is set for an item hop; it is -1 for member hops.
	Index int
}

// IsItem reports whether the step goes through a collection index.
func (s Step) IsItem() bool {
	return s.Index >= 0
}

// Path returns the hops from the receiving tracker down to the mutated object.
// The mutated object's own change is not part of the path.
func Path(ev Event) []Step {
	var steps []Step
	for ev != nil {
		switch e := ev.(type) {
		case PropertyGraph:
			steps = append(steps, Step{Member: e.Member, Index: -1})
			ev = e.Inner
		case ItemGraph:
			steps = append(steps, Step{Index: e.Index})
			ev = e.Inner
		default:
			return steps
		}
	}
	return steps
}

// Origin returns the Root at the bottom of an event.
func Origin(ev Event) (Root, bool) {
	for ev != nil {
		switch e := ev.(type) {
		case Root:
			return e, true
		case PropertyGraph:
			ev = e.Inner
		case ItemGraph:
			ev = e.Inner
		default:
			return Root{}, false
		}
	}
	return Root{}, false
}

// render writes the path followed by the leaf change.
func render(ev Event) string {
	var b strings.Builder
	for _, st := range Path(ev) {
		if st.IsItem() {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(st.Index))
			b.WriteString("]")
			continue
		}
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(st.Member)
	}

	root, ok := Origin(ev)
	if !ok || root.Change == nil {
		return b.String()
	}
	switch c := root.Change.(type) {
	case PropertyChange:
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(c.String())
	default:
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(c.String())
	}
	return b.String()
}
