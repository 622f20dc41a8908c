// Package node builds and maintains the live subscription graph behind every
// tracker.
//
// A Node wraps one notifying object (a pointer to a struct that embeds
// observable.Notifier, or an observable collection) under one Settings value.
// On initialization it creates a child node for every complex member or item
// that the settings recurse into, then subscribes to the object's change
// surface. When the object raises a change the node rebuilds only the affected
// child, emits an events.Root to its listeners, and every parent re-emits the
// event wrapped in an events.PropertyGraph or events.ItemGraph.
//
// # Sharing
//
// Nodes live in a Registry, a reference-counted cache keyed by object identity
// and Settings. Two trackers over the same object share one node and therefore
// one set of subscriptions. A node is disposed when its last handle is
// released: it detaches from the object, releases its children and drops its
// listeners.
//
// # Reference loops
//
// When a member refers back to the node itself or to one of its transitive
// parents, the edge is recorded as an unowned back-reference: it forwards events
// but holds no reference count, so the owned graph stays acyclic and releasing
// the root always tears the whole graph down. A node that is disposed while
// back-references still point at it hands them back to their holders, which
// resolve the member again. Under Structural handling a back-reference is a
// reference-loop classification error.
//
// # Concurrency
//
// The registry may be used from several goroutines. The nodes of one object
// graph are updated synchronously on the goroutine that mutates the graph;
// mutating one graph from several goroutines at once is not supported.
package node
