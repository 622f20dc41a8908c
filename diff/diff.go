// Package diff holds the difference tree produced by comparing two object
// graphs.
//
// A nil *ValueDiff means the graphs are equal. Otherwise the tree mirrors the
// shape of the graphs: a ValueDiff with no sub-diffs is a leaf where the two
// values differ, MemberDiff descends into a struct member and IndexDiff into a
// collection item or map entry. Equal subtrees are never materialized.
//
// Diff trees are immutable once built. A tracker that recomputes its diff
// builds a new tree, so a tree obtained earlier stays valid.
//
// The textual rendering prints the root type, then the path to every
// difference:
//
//	ComplexType Value x: 2 y: 1
//
// or, with several differences, one per indented line:
//
//	Person
//	  Name x: Ann y: Bob
//	  Pets [1] Name x: Rex y: missing item
package diff

import (
	"reflect"
	"strconv"
)

// missingItem marks the side of an index diff beyond the shorter collection.
type missingItem struct{}

func (missingItem) String() string { return "missing item" }

// MissingItem is the value reported for an index that exists on one side only.
var MissingItem any = missingItem{}

// IsMissing reports whether v is MissingItem.
func IsMissing(v any) bool {
	_, ok := v.(missingItem)
	return ok
}

// SubDiff is a MemberDiff or an IndexDiff.
type SubDiff interface {
	// Label renders the step to the sub-diff: a member name or [index].
	Label() string

	// Value returns the difference below the step.
	Value() *ValueDiff
}

// MemberDiff is a difference below a struct member.
type MemberDiff struct {
	Member string
	Diff   *ValueDiff
}

// Label returns the member name.
func (m *MemberDiff) Label() string { return m.Member }

// Value returns the member's diff.
func (m *MemberDiff) Value() *ValueDiff { return m.Diff }

// IndexDiff is a difference below a collection item or map entry.
type IndexDiff struct {
	Index any
	Diff  *ValueDiff
}

// Label returns the index in brackets.
func (d *IndexDiff) Label() string {
	switch i := d.Index.(type) {
	case int:
		return "[" + strconv.Itoa(i) + "]"
	default:
		return "[" + formatValue(i) + "]"
	}
}

// Value returns the item's diff.
func (d *IndexDiff) Value() *ValueDiff { return d.Diff }

// ValueDiff is the difference between two values.
type ValueDiff struct {
	X     any
	Y     any
	Diffs []SubDiff

	loop bool
}

// New returns a diff between x and y. Without sub-diffs it is a leaf.
func New(x, y any, diffs ...SubDiff) *ValueDiff {
	return &ValueDiff{X: x, Y: y, Diffs: diffs}
}

// Loop returns the marker for a position that refers back to an ancestor
// already being compared.
func Loop(x, y any) *ValueDiff {
	return &ValueDiff{X: x, Y: y, loop: true}
}

// Member returns a sub-diff for a struct member.
func Member(name string, d *ValueDiff) *MemberDiff {
	return &MemberDiff{Member: name, Diff: d}
}

// Index returns a sub-diff for an item or map entry.
func Index(i any, d *ValueDiff) *IndexDiff {
	return &IndexDiff{Index: i, Diff: d}
}

// IsReferenceLoop reports whether d marks a reference loop.
func (d *ValueDiff) IsReferenceLoop() bool {
	return d != nil && d.loop
}

// IsLeaf reports whether d is a difference between two values with no
// structure below it.
func (d *ValueDiff) IsLeaf() bool {
	return d != nil && !d.loop && len(d.Diffs) == 0
}

// MemberDiff returns the diff below member name, or nil.
func (d *ValueDiff) MemberDiff(name string) *ValueDiff {
	if d == nil {
		return nil
	}
	for _, sd := range d.Diffs {
		if m, ok := sd.(*MemberDiff); ok && m.Member == name {
			return m.Diff
		}
	}
	return nil
}

// IndexDiff returns the diff below item index i, or nil.
func (d *ValueDiff) IndexDiff(i any) *ValueDiff {
	if d == nil {
		return nil
	}
	for _, sd := range d.Diffs {
		if ix, ok := sd.(*IndexDiff); ok && reflect.DeepEqual(ix.Index, i) {
			return ix.Diff
		}
	}
	return nil
}

// Leaves returns the number of leaf differences in the tree.
func (d *ValueDiff) Leaves() int {
	if d == nil || d.loop {
		return 0
	}
	if len(d.Diffs) == 0 {
		return 1
	}
	n := 0
	for _, sd := range d.Diffs {
		n += sd.Value().Leaves()
	}
	return n
}

// Equal reports whether two diff trees describe the same differences.
func Equal(a, b *ValueDiff) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
