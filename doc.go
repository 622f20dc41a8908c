// Package statetrack tracks changes in live object graphs.
//
// Objects take part by announcing their own changes: structs embed
// observable.Notifier and raise a change from their setters, collections are
// observable.List values. On top of that the package offers three kinds of
// trackers:
//
//   - Track counts and reports every change below a root object.
//   - TrackDirty keeps a diff between two parallel graphs up to date.
//   - Synchronize keeps a target graph a copy of a source graph.
//
// Trackers share one engine. Every notifying object reachable from a tracked
// root is subscribed to exactly once per settings value, however many trackers
// reach it, and the subscription goes away with the last tracker that needs
// it. Reference loops are handled according to settings.ReferenceHandling.
//
// The engine is synchronous: a tracker is updated before the mutating call
// returns, and errors raised while updating (for example a direct change of a
// synchronizer's target) are returned by that call.
//
// One-shot counterparts work on plain values too: DiffBy, EqualBy and Copy.
// The Verify functions check up front that a graph or a type can be tracked.
package statetrack
