// Package typeinfo classifies Go types for the tracking engine.
//
// Every value reached by a tracker falls in one Kind. Immutable values are
// compared and copied by value and never subscribed to. Pointers to structs and
// observable collections are the notifying building blocks of a live graph.
// Slices, arrays, maps and non-immutable struct values can be compared and
// copied but cannot announce their own changes, so live trackers reject them
// under structural handling.
//
// Member access is resolved once per struct type into an Accessor and cached.
// An Accessor lists the members of a type in declaration order and reads or
// writes them through the type's Set<Name> methods when present.
package typeinfo
